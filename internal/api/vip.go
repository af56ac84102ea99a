package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mmeshcher/salon-client/internal/model"
)

// VipStatus возвращает состояние VIP-подписки или nil, если пользователь не подписывался.
func (c *Client) VipStatus(ctx context.Context) (*model.VipStatus, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/vip/status", nil, &raw); err != nil {
		return nil, err
	}
	return decodeData[*model.VipStatus](raw, "vipStatus")
}

// VipBenefits возвращает список преимуществ VIP.
func (c *Client) VipBenefits(ctx context.Context) ([]model.VipBenefit, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/vip/benefits", nil, &raw); err != nil {
		return nil, err
	}
	return decodeData[[]model.VipBenefit](raw, "benefits")
}

// SubscribeVip оформляет подписку и возвращает новый статус.
func (c *Client) SubscribeVip(ctx context.Context, planType, paymentMethod string) (*model.VipStatus, error) {
	body := map[string]string{"planType": planType, "paymentMethod": paymentMethod}

	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodPost, "/vip/subscribe", body, &raw); err != nil {
		return nil, err
	}
	return decodeData[*model.VipStatus](raw, "vipStatus")
}

// CancelVip отменяет подписку и возвращает статус после отмены, если бэкенд его прислал.
func (c *Client) CancelVip(ctx context.Context, reason string) (*model.VipStatus, error) {
	body := map[string]string{"reason": reason}

	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodPost, "/vip/cancel", body, &raw); err != nil {
		return nil, err
	}
	return decodeData[*model.VipStatus](raw, "vipStatus")
}

// VipHistory возвращает историю подписок.
func (c *Client) VipHistory(ctx context.Context) ([]model.VipHistoryEntry, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/vip/history", nil, &raw); err != nil {
		return nil, err
	}
	return decodeData[[]model.VipHistoryEntry](raw, "history")
}

// VipStats возвращает статистику экономии по подписке.
func (c *Client) VipStats(ctx context.Context) (*model.VipStats, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/vip/stats", nil, &raw); err != nil {
		return nil, err
	}
	return decodeData[*model.VipStats](raw, "stats")
}
