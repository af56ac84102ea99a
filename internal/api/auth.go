package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"go.uber.org/zap"

	"github.com/mmeshcher/salon-client/internal/model"
)

type authResponse struct {
	Token        string     `json:"token"`
	RefreshToken string     `json:"refreshToken"`
	User         model.User `json:"user"`
}

// Login выполняет вход и сохраняет выданные токены.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*model.User, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

// Register регистрирует пользователя и сохраняет выданные токены.
func (c *Client) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	return c.authenticate(ctx, "/auth/register", reg)
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*model.User, error) {
	var resp authResponse
	if err := c.Do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%s: empty token in response", path)
	}

	// Бэкенд может не выдавать отдельный refresh-токен, тогда сохраняется токен доступа.
	refresh := resp.RefreshToken
	if refresh == "" {
		refresh = resp.Token
	}

	if err := c.SetTokens(ctx, model.Tokens{AccessToken: resp.Token, RefreshToken: refresh}); err != nil {
		return nil, err
	}

	user := resp.User
	return &user, nil
}

// Logout сообщает бэкенду о выходе и всегда очищает локальные токены.
func (c *Client) Logout(ctx context.Context) {
	if c.AccessToken() != "" {
		if err := c.Do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
			c.logger.Debug("server logout failed", zap.Error(err))
		}
	}
	c.ClearTokens(ctx)
}

// Profile возвращает профиль текущего пользователя.
func (c *Client) Profile(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.Do(ctx, http.MethodGet, "/auth/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile изменяет профиль и возвращает обновлённого пользователя.
func (c *Client) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (*model.User, error) {
	var user model.User
	if err := c.Do(ctx, http.MethodPut, "/auth/profile", upd, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UploadAvatar загружает аватар в поле avatar формы multipart.
func (c *Client) UploadAvatar(ctx context.Context, filename, contentType string, file io.Reader) (*model.User, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="avatar"; filename=%q`, filename))
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy avatar: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	var user model.User
	if err := c.do(ctx, http.MethodPost, "/auth/avatar", &buf, w.FormDataContentType(), &user); err != nil {
		return nil, err
	}
	return &user, nil
}
