package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/mystery-box/client/internal/auth"
	"github.com/mystery-box/client/internal/http/dto"
	"go.uber.org/zap"
)

const PathAuthTelegram = "/auth/telegram"

// AuthClient exchanges Telegram initData for a box API session token.
type AuthClient struct {
	transport *Transport
	log       *zap.Logger
}

func NewAuthClient(transport *Transport, log *zap.Logger) *AuthClient {
	return &AuthClient{transport: transport, log: log}
}

func (c *AuthClient) Exchange(ctx context.Context, initData string) (string, error) {
	var resp dto.AuthResponse
	req := dto.AuthTelegramRequest{InitData: initData}
	if err := c.transport.call(ctx, http.MethodPost, PathAuthTelegram, callOptions{body: req}, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", errors.New("box api did not return a token")
	}
	return resp.Token, nil
}

// TokenSource returns a caching token source backed by Exchange.
func (c *AuthClient) TokenSource(initData string) *auth.CachingTokenSource {
	if user, err := auth.ParseInitDataUser(initData); err == nil {
		c.log.Info("authenticating with telegram initData",
			zap.Int64("telegram_user_id", user.ID),
			zap.String("username", user.Username))
	} else {
		c.log.Warn("initData could not be parsed locally", zap.Error(err))
	}

	return auth.NewCachingTokenSource(func(ctx context.Context) (string, error) {
		return c.Exchange(ctx, initData)
	})
}
