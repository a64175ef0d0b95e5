package events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/mystery-box/client/internal/auth"
	"go.uber.org/zap"
)

// WSSubscriber receives events pushed by the box API websocket hub.
type WSSubscriber struct {
	url    string
	tokens auth.TokenSource
	dialer *websocket.Dialer
	log    *zap.Logger
}

func NewWSSubscriber(wsURL string, tokens auth.TokenSource, log *zap.Logger) *WSSubscriber {
	return &WSSubscriber{
		url:    wsURL,
		tokens: tokens,
		dialer: websocket.DefaultDialer,
		log:    log,
	}
}

func (s *WSSubscriber) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	u, err := url.Parse(s.url)
	if err != nil {
		return fmt.Errorf("invalid websocket url: %w", err)
	}
	q := u.Query()
	if s.tokens != nil {
		token, err := s.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire session token: %w", err)
		}
		q.Set("token", token)
	}
	if stream != "" {
		q.Set("stream", stream)
	}
	u.RawQuery = q.Encode()

	conn, _, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket unavailable: %w", err)
	}

	// unblock ReadMessage when the subscription ends
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go func() {
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("websocket subscription closed", zap.Error(err))
				}
				return
			}
			var event Event
			if err := json.Unmarshal(data, &event); err != nil {
				s.log.Error("failed to unmarshal event", zap.Error(err))
				continue
			}
			if event.Type == "" {
				continue
			}
			handler(event)
		}
	}()

	return nil
}
