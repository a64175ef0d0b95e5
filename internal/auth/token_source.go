package auth

import (
	"context"
	"sync"
	"time"
)

// TokenSource supplies the bearer token for box API requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops a cached token, e.g. after the server answered 401.
	Invalidate()
}

// StaticToken is a fixed token, typically from API_TOKEN.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

func (StaticToken) Invalidate() {}

// ExchangeFunc obtains a fresh session token from the remote side.
type ExchangeFunc func(ctx context.Context) (string, error)

// DefaultExpirySkew re-authenticates this long before exp.
const DefaultExpirySkew = 30 * time.Second

// CachingTokenSource calls exchange once and reuses the token until it is
// about to expire or is invalidated. Tokens without exp live until Invalidate.
type CachingTokenSource struct {
	exchange ExchangeFunc
	skew     time.Duration
	now      func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewCachingTokenSource(exchange ExchangeFunc) *CachingTokenSource {
	return &CachingTokenSource{
		exchange: exchange,
		skew:     DefaultExpirySkew,
		now:      time.Now,
	}
}

func (s *CachingTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.expiresAt.IsZero() || s.now().Add(s.skew).Before(s.expiresAt)) {
		return s.token, nil
	}

	token, err := s.exchange(ctx)
	if err != nil {
		return "", err
	}

	s.token = token
	s.expiresAt = time.Time{}
	if exp, ok, err := ExpiresAt(token); err == nil && ok {
		s.expiresAt = exp
	}
	return s.token, nil
}

func (s *CachingTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}
