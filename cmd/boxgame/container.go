package main

import (
	"context"

	"github.com/mystery-box/client/internal/auth"
	"github.com/mystery-box/client/internal/config"
	"github.com/mystery-box/client/internal/db"
	"github.com/mystery-box/client/internal/events"
	"github.com/mystery-box/client/internal/game"
	"github.com/mystery-box/client/internal/invoice"
	"github.com/mystery-box/client/internal/services"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
)

// redisConn lets the injector close the client on shutdown.
type redisConn struct {
	client *redis.Client
}

func (r redisConn) Shutdown() error {
	return r.client.Close()
}

func NewContainer(cfg *config.Config, log *zap.Logger, present invoice.Presenter) *do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, log)

	do.ProvideNamed(injector, "transport-anonymous", func(i *do.Injector) (*services.Transport, error) {
		return services.NewTransport(cfg.APIBaseURL, cfg.HTTPTimeout, log), nil
	})

	do.Provide(injector, func(i *do.Injector) (auth.TokenSource, error) {
		if cfg.APIToken != "" {
			return auth.StaticToken(cfg.APIToken), nil
		}
		if cfg.InitData == "" {
			return nil, nil
		}
		base := do.MustInvokeNamed[*services.Transport](i, "transport-anonymous")
		return services.NewAuthClient(base, log).TokenSource(cfg.InitData), nil
	})

	do.Provide(injector, func(i *do.Injector) (*services.Transport, error) {
		base := do.MustInvokeNamed[*services.Transport](i, "transport-anonymous")
		tokens := do.MustInvoke[auth.TokenSource](i)
		if tokens == nil {
			return base, nil
		}
		return base.WithTokenSource(tokens), nil
	})

	do.Provide(injector, func(i *do.Injector) (*services.BoxClient, error) {
		return services.NewBoxClient(do.MustInvoke[*services.Transport](i), log), nil
	})

	do.Provide(injector, func(i *do.Injector) (*services.StarsClient, error) {
		return services.NewStarsClient(do.MustInvoke[*services.Transport](i), log), nil
	})

	do.Provide(injector, func(i *do.Injector) (redisConn, error) {
		client, err := db.NewRedisClient(context.Background(), cfg.RedisURL, log)
		if err != nil {
			return redisConn{}, err
		}
		return redisConn{client: client}, nil
	})

	// nil when PAYMENT_EVENTS=none
	do.Provide(injector, func(i *do.Injector) (events.Subscriber, error) {
		switch cfg.PaymentEvents {
		case config.PaymentEventsWS:
			return events.NewWSSubscriber(cfg.WSURL, do.MustInvoke[auth.TokenSource](i), log), nil
		case config.PaymentEventsRedis:
			conn, err := do.Invoke[redisConn](i)
			if err != nil {
				return nil, err
			}
			return events.NewRedisSubscriber(conn.client, log), nil
		}
		return nil, nil
	})

	do.Provide(injector, func(i *do.Injector) (invoice.Opener, error) {
		subscriber, err := do.Invoke[events.Subscriber](i)
		if err != nil {
			return nil, err
		}
		if subscriber == nil {
			return invoice.NoopOpener{Present: present}, nil
		}
		return invoice.NewWatcher(subscriber, cfg.PaymentEventsStream, present, cfg.InvoiceWait, log), nil
	})

	do.Provide(injector, func(i *do.Injector) (*game.Controller, error) {
		return game.NewController(
			do.MustInvoke[*services.BoxClient](i),
			do.MustInvoke[*services.StarsClient](i),
			do.MustInvoke[invoice.Opener](i),
			log,
		), nil
	})

	return injector
}
