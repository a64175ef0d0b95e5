package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mystery-box/client/internal/config"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg.Validate(log)

	out := newPrinter(os.Stdout)
	container := NewContainer(cfg, log, out.invoiceLink)
	defer func() {
		if err := container.Shutdown(); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "boxgame",
		Usage: "play the mystery box from a terminal",
		Commands: []*cli.Command{
			commandStatus(container, out),
			commandPay(container, out),
			commandInvoice(container, out),
			commandPlay(container, out),
			commandEvents(container, out),
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		out.failure(err)
		log.Error("command failed", zap.Error(err))
		return err
	}
	return nil
}
