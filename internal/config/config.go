package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Payment event sources
const (
	PaymentEventsWS    = "ws"
	PaymentEventsRedis = "redis"
	PaymentEventsNone  = "none"
)

type Config struct {
	Env string

	// Remote API
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Auth
	InitData string
	APIToken string // takes precedence over InitData

	// Payment events
	PaymentEvents       string // ws / redis / none
	WSURL               string
	RedisURL            string
	PaymentEventsStream string
	InvoiceWait         time.Duration
}

func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("APP_ENV", "production"),

		APIBaseURL:  strings.TrimRight(getEnv("BOX_API_URL", "http://localhost:3000/api/v1"), "/"),
		HTTPTimeout: time.Duration(getEnvInt("HTTP_TIMEOUT_MS", 15000)) * time.Millisecond,

		InitData: getEnv("TELEGRAM_INIT_DATA", ""),
		APIToken: getEnv("API_TOKEN", ""),

		PaymentEvents:       strings.ToLower(getEnv("PAYMENT_EVENTS", PaymentEventsWS)),
		WSURL:               getEnv("BOX_WS_URL", ""),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		PaymentEventsStream: getEnv("PAYMENT_EVENTS_STREAM", "events:payment"),
		InvoiceWait:         time.Duration(getEnvInt("INVOICE_WAIT_SECONDS", 300)) * time.Second,
	}

	if cfg.WSURL == "" {
		cfg.WSURL = deriveWSURL(cfg.APIBaseURL)
	}

	return cfg
}

// Sandbox configures the local box API used for development.
type Sandbox struct {
	Addr      string
	BotToken  string
	JWTSecret string
	Coins     int64
	Price     int64
	RedisURL  string // empty: payment events go over the websocket only
	Stream    string
}

func LoadSandbox() *Sandbox {
	_ = godotenv.Load()

	return &Sandbox{
		Addr:      getEnv("SANDBOX_ADDR", "127.0.0.1:3000"),
		BotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		JWTSecret: getEnv("JWT_SECRET", ""),
		Coins:     int64(getEnvInt("SANDBOX_COINS", 1000)),
		Price:     int64(getEnvInt("SANDBOX_BOX_PRICE", 100)),
		RedisURL:  getEnv("SANDBOX_REDIS_URL", ""),
		Stream:    getEnv("PAYMENT_EVENTS_STREAM", "events:payment"),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// NewLogger builds the process logger for the configured environment.
func (c *Config) NewLogger() (*zap.Logger, error) {
	if c.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func (c *Config) Validate(log *zap.Logger) {
	if c.APIToken == "" && c.InitData == "" {
		log.Warn("neither API_TOKEN nor TELEGRAM_INIT_DATA is set, requests will be anonymous")
	}
	switch c.PaymentEvents {
	case PaymentEventsWS, PaymentEventsRedis, PaymentEventsNone:
	default:
		log.Warn("unknown PAYMENT_EVENTS, invoice results will not be observed",
			zap.String("value", c.PaymentEvents))
		c.PaymentEvents = PaymentEventsNone
	}
	if c.HTTPTimeout <= 0 {
		log.Warn("HTTP_TIMEOUT_MS is not positive, using 15s")
		c.HTTPTimeout = 15 * time.Second
	}
}

// deriveWSURL maps http(s)://host/api/v1 to ws(s)://host/api/v1/ws.
func deriveWSURL(apiBase string) string {
	u, err := url.Parse(apiBase)
	if err != nil || u.Host == "" {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
