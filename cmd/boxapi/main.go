package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mystery-box/client/internal/boxtest"
	"github.com/mystery-box/client/internal/config"
	"github.com/mystery-box/client/internal/db"
	"github.com/mystery-box/client/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sandbox box API for running the boxgame CLI without the real backend.

func sandboxRewards() []models.Reward {
	named := func(id int64, name, typ string, amount int64) models.Reward {
		return models.Reward{ID: id, Name: &name, Type: &typ, Amount: &amount}
	}
	return []models.Reward{
		named(101, "Coins", "coins", 50),
		named(102, "Coins", "coins", 250),
		named(103, "Stars", "stars", 5),
		named(104, "Spin", "spin", 1),
		named(105, "Coins", "coins", 1000),
		named(106, "Booster", "booster", 1),
	}
}

func main() {
	log, _ := zap.NewDevelopment()
	defer log.Sync()

	cfg := config.LoadSandbox()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		var err error
		rdb, err = db.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
	}

	srv, err := boxtest.New(boxtest.Options{
		Addr:        cfg.Addr,
		BotToken:    cfg.BotToken,
		JWTSecret:   cfg.JWTSecret,
		InitDataTTL: 24 * time.Hour,
		Coins:       cfg.Coins,
		Price:       cfg.Price,
		Rewards:     sandboxRewards(),
		Stream:      cfg.Stream,
		Redis:       rdb,
		Log:         log,
	})
	if err != nil {
		log.Fatal("failed to start sandbox", zap.Error(err))
	}

	log.Info("sandbox box API started",
		zap.String("url", srv.URL),
		zap.String("ws_url", srv.WSURL()),
		zap.String("invoice_link", srv.InvoiceLink()),
		zap.Int64("coins", cfg.Coins),
	)
	// a ready-made identity for the CLI
	log.Info("export BOX_API_URL=" + srv.URL)
	log.Info("export TELEGRAM_INIT_DATA='" + srv.InitData(int64(os.Getpid()), "sandbox") + "'")

	<-ctx.Done()
	log.Info("shutting down...")
	if err := srv.Close(); err != nil {
		log.Warn("sandbox shutdown", zap.Error(err))
	}
}
