package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/mmeshcher/salon-client/internal/model"
)

// Services возвращает каталог услуг.
func (c *Client) Services(ctx context.Context) ([]model.Service, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/services", nil, &raw); err != nil {
		return nil, err
	}
	return decodeData[[]model.Service](raw, "services")
}

// Service возвращает услугу по идентификатору.
func (c *Client) Service(ctx context.Context, id model.ID) (*model.Service, error) {
	var raw json.RawMessage
	if err := c.Do(ctx, http.MethodGet, "/services/"+url.PathEscape(id.String()), nil, &raw); err != nil {
		return nil, err
	}
	return decodeData[*model.Service](raw, "service")
}
