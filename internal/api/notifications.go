package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/mmeshcher/salon-client/internal/model"
)

// NotificationSettings возвращает настройки уведомлений.
func (c *Client) NotificationSettings(ctx context.Context) (*model.NotificationSettings, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/users/notification-settings", nil, &raw); err != nil {
		return nil, err
	}
	return decodeData[*model.NotificationSettings](raw, "settings")
}

// UpdateNotificationSettings сохраняет настройки уведомлений.
func (c *Client) UpdateNotificationSettings(ctx context.Context, s model.NotificationSettings) error {
	return c.Do(ctx, http.MethodPut, "/users/notification-settings", s, nil)
}

// Notifications возвращает уведомления пользователя.
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/notifications", nil, &raw); err != nil {
		return nil, err
	}
	return decodeData[[]model.Notification](raw, "notifications")
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (c *Client) MarkNotificationRead(ctx context.Context, id model.ID) error {
	return c.Do(ctx, http.MethodPut, "/notifications/"+url.PathEscape(id.String())+"/read", nil, nil)
}

// MarkAllNotificationsRead отмечает все уведомления прочитанными.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.Do(ctx, http.MethodPost, "/notifications/read-all", nil, nil)
}

// DeleteNotification удаляет уведомление.
func (c *Client) DeleteNotification(ctx context.Context, id model.ID) error {
	return c.Do(ctx, http.MethodDelete, "/notifications/"+url.PathEscape(id.String()), nil, nil)
}
