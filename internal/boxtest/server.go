// Package boxtest runs an in-process box API for tests and local runs.
package boxtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/mystery-box/client/internal/auth"
	"github.com/mystery-box/client/internal/events"
	"github.com/mystery-box/client/internal/middleware"
	"github.com/mystery-box/client/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Routes served by the fake.
const (
	RouteAuthTelegram     = "/auth/telegram"
	RouteBoxStatus        = "/box/status"
	RouteBoxPayWithCoins  = "/box/pay-with-coins"
	RouteBoxRewards       = "/box/rewards"
	RouteBoxReward        = "/box/reward"
	RouteStarsInvoiceLink = "/stars/invoice-link"
	// RouteStarsPay stands in for the Telegram invoice page: opening it pays
	// the invoice.
	RouteStarsPay = "/stars/pay"
	RouteWS       = "/ws"
)

const (
	DefaultAddr      = "127.0.0.1:0"
	DefaultBotToken  = "123456:box-test-token"
	DefaultJWTSecret = "box-test-secret"
	DefaultPrice     = 100
	DefaultStream    = "events:payment"
)

type Options struct {
	Addr        string
	BotToken    string
	JWTSecret   string
	TokenTTL    time.Duration
	InitDataTTL time.Duration
	Coins       int64
	Price       int64
	CanPlay     bool
	Rewards     []models.Reward
	// InvoiceLink defaults to RouteStarsPay on the server itself.
	InvoiceLink string
	// Stream is the pub/sub channel payment events are published on.
	Stream string
	// Redis, when set, receives payment events and backs rate limiting of
	// pay and claim calls.
	Redis     *redis.Client
	RateLimit int
	Log       *zap.Logger
}

// Request is what the fake saw of one call.
type Request struct {
	RequestID      string
	IdempotencyKey string
	Authorization  string
}

// Server is a fake box API, by default bound to 127.0.0.1 on a random port.
type Server struct {
	URL string

	opts      Options
	app       *fiber.App
	ln        net.Listener
	hub       *wsHub
	publisher events.Publisher
	log       *zap.Logger

	mu        sync.Mutex
	coins     int64
	canPlay   bool
	rewards   []models.Reward
	users     map[int64]uuid.UUID
	calls     map[string]int
	requests  map[string][]Request
	failNext  map[string][]int
	claims    [][]int64
	processed map[string]processedCall
}

type processedCall struct {
	status int
	body   any
}

func New(opts Options) (*Server, error) {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.BotToken == "" {
		opts.BotToken = DefaultBotToken
	}
	if opts.JWTSecret == "" {
		opts.JWTSecret = DefaultJWTSecret
	}
	if opts.Price <= 0 {
		opts.Price = DefaultPrice
	}
	if opts.Stream == "" {
		opts.Stream = DefaultStream
	}
	if opts.InitDataTTL <= 0 {
		opts.InitDataTTL = auth.DefaultInitDataTTL
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 30
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", opts.Addr, err)
	}
	if opts.InvoiceLink == "" {
		opts.InvoiceLink = "http://" + ln.Addr().String() + RouteStarsPay
	}

	s := &Server{
		URL:       "http://" + ln.Addr().String(),
		opts:      opts,
		ln:        ln,
		hub:       newWSHub(opts.JWTSecret, opts.Log),
		log:       opts.Log,
		coins:     opts.Coins,
		canPlay:   opts.CanPlay,
		rewards:   slices.Clone(opts.Rewards),
		users:     make(map[int64]uuid.UUID),
		calls:     make(map[string]int),
		requests:  make(map[string][]Request),
		failNext:  make(map[string][]int),
		processed: make(map[string]processedCall),
	}
	if opts.Redis != nil {
		s.publisher = events.NewRedisPublisher(opts.Redis, opts.Log)
	}

	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "Box API fake",
		// paths, headers and idempotency keys outlive the request
		Immutable: true,
	})
	s.setupRoutes()

	go func() {
		if err := s.app.Listener(ln); err != nil {
			s.log.Error("fake box api stopped", zap.Error(err))
		}
	}()

	return s, nil
}

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(middleware.RequestIDMiddleware())
	s.app.Use(middleware.LoggerMiddleware(s.log))
	s.app.Use(s.record)

	s.app.Use(RouteWS, wsUpgradeMiddleware())
	s.app.Get(RouteWS, websocket.New(s.hub.handleWS))

	s.app.Post(RouteAuthTelegram, s.telegramAuth)

	protected := middleware.AuthMiddleware(s.opts.JWTSecret, s.log)

	box := s.app.Group("/box", protected)
	box.Get("/status", s.boxStatus)
	box.Get("/rewards", s.boxRewards)
	if s.opts.Redis != nil {
		limit := middleware.RateLimitMiddleware(s.opts.Redis, s.opts.RateLimit, time.Minute)
		box.Post("/pay-with-coins", limit, s.payWithCoins)
		box.Post("/reward", limit, s.rewardUser)
	} else {
		box.Post("/pay-with-coins", s.payWithCoins)
		box.Post("/reward", s.rewardUser)
	}

	s.app.Get(RouteStarsPay, s.payInvoicePage)

	stars := s.app.Group("/stars", protected)
	stars.Get("/invoice-link", s.invoiceLink)
}

func (s *Server) Close() error {
	s.hub.closeAll()
	return s.app.ShutdownWithTimeout(time.Second)
}

// WSURL is the websocket endpoint pushing payment events.
func (s *Server) WSURL() string {
	return "ws://" + s.ln.Addr().String() + RouteWS
}

func (s *Server) BotToken() string { return s.opts.BotToken }

func (s *Server) InvoiceLink() string { return s.opts.InvoiceLink }

// InitData returns initData for a Telegram user signed with the bot token.
func (s *Server) InitData(telegramUserID int64, username string) string {
	user, _ := json.Marshal(map[string]any{
		"id":         telegramUserID,
		"username":   username,
		"first_name": username,
	})
	return auth.SignInitData(s.opts.BotToken, time.Now(), map[string]string{
		"user":     string(user),
		"query_id": "box-test-" + uuid.NewString(),
	})
}

// FailNext makes the next call to route answer with status.
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	s.failNext[route] = append(s.failNext[route], status)
	s.mu.Unlock()
}

func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) Requests(route string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests[route])
}

// Claims returns the accepted reward selections in order.
func (s *Server) Claims() [][]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]int64, 0, len(s.claims))
	for _, c := range s.claims {
		out = append(out, slices.Clone(c))
	}
	return out
}

func (s *Server) Coins() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coins
}

func (s *Server) SetCoins(coins int64) {
	s.mu.Lock()
	s.coins = coins
	s.mu.Unlock()
}

func (s *Server) SetCanPlay(canPlay bool) {
	s.mu.Lock()
	s.canPlay = canPlay
	s.mu.Unlock()
}

func (s *Server) SetRewards(rewards []models.Reward) {
	s.mu.Lock()
	s.rewards = slices.Clone(rewards)
	s.mu.Unlock()
}

// Addr is the listen address, useful when Options.Addr had port 0.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// PayInvoice completes the invoice: play is granted and payment_received is
// pushed to subscribers.
func (s *Server) PayInvoice(ctx context.Context, link string) error {
	s.SetCanPlay(true)
	return s.resolveInvoice(ctx, link, events.EventPaymentReceived)
}

// CancelInvoice pushes payment_cancelled without granting play.
func (s *Server) CancelInvoice(ctx context.Context, link string) error {
	return s.resolveInvoice(ctx, link, events.EventPaymentCancelled)
}

func (s *Server) resolveInvoice(ctx context.Context, link, eventType string) error {
	event := events.Event{
		Type:    eventType,
		Payload: map[string]any{events.PayloadInvoiceLink: link},
	}
	s.hub.broadcast(s.opts.Stream, event)
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, s.opts.Stream, event); err != nil {
			return fmt.Errorf("failed to publish %s: %w", eventType, err)
		}
	}
	return nil
}

// WaitSubscribers blocks until at least n websocket subscribers are registered.
func (s *Server) WaitSubscribers(ctx context.Context, n int) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		if s.hub.count() >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// record counts calls and serves injected failures.
func (s *Server) record(c *fiber.Ctx) error {
	route := c.Path()

	s.mu.Lock()
	s.calls[route]++
	s.requests[route] = append(s.requests[route], Request{
		RequestID:      c.Get(middleware.HeaderRequestID),
		IdempotencyKey: c.Get(middleware.HeaderIdempotencyKey),
		Authorization:  c.Get(fiber.HeaderAuthorization),
	})
	var status int
	if queued := s.failNext[route]; len(queued) > 0 {
		status = queued[0]
		s.failNext[route] = queued[1:]
	}
	s.mu.Unlock()

	if status != 0 {
		return s.fail(c, status, "injected failure")
	}
	return c.Next()
}
