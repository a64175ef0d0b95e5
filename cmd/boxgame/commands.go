package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mystery-box/client/internal/config"
	"github.com/mystery-box/client/internal/events"
	"github.com/mystery-box/client/internal/game"
	"github.com/mystery-box/client/internal/services"
	"github.com/samber/do"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func commandStatus(container *do.Injector, out *printer) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show whether a box can be opened",
		Action: func(c *cli.Context) error {
			box, err := do.Invoke[*services.BoxClient](container)
			if err != nil {
				return err
			}
			resp, err := box.GetStatus(c.Context)
			if err != nil {
				return err
			}
			out.permission(resp.Data.User.CanPlayBox)
			return nil
		},
	}
}

func commandPay(container *do.Injector, out *printer) *cli.Command {
	return &cli.Command{
		Name:  "pay",
		Usage: "pay for a box with coins",
		Action: func(c *cli.Context) error {
			ctrl, err := do.Invoke[*game.Controller](container)
			if err != nil {
				return err
			}
			if err := ctrl.PayWithCoins(c.Context); err != nil {
				// the refreshed permission is still worth showing
				out.failure(err)
			}
			out.snapshot(ctrl.Snapshot())
			return nil
		},
	}
}

func commandInvoice(container *do.Injector, out *printer) *cli.Command {
	return &cli.Command{
		Name:  "invoice",
		Usage: "buy a box with Telegram Stars and wait for the payment",
		Action: func(c *cli.Context) error {
			ctrl, err := do.Invoke[*game.Controller](container)
			if err != nil {
				return err
			}
			if err := ctrl.Activate(c.Context); err != nil {
				return err
			}
			if ctrl.InvoiceLink() == "" {
				return errors.New("no invoice link available")
			}
			if err := ctrl.OpenInvoice(c.Context); err != nil {
				return err
			}
			out.snapshot(ctrl.Snapshot())
			return nil
		},
	}
}

func commandPlay(container *do.Injector, out *printer) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "open cards and claim the rewards",
		Flags: []cli.Flag{
			&cli.IntSliceFlag{
				Name:  "card",
				Usage: "card positions to open without prompting",
			},
		},
		Action: func(c *cli.Context) error {
			ctrl, err := do.Invoke[*game.Controller](container)
			if err != nil {
				return err
			}
			log := do.MustInvoke[*zap.Logger](container)

			if err := ctrl.Activate(c.Context); err != nil {
				return err
			}
			snap := ctrl.Snapshot()
			out.snapshot(snap)
			if !snap.State.InPlay() {
				return nil
			}

			for _, id := range c.IntSlice("card") {
				if !ctrl.OpenCard(id) {
					out.notice("card %d cannot be opened", id)
				}
			}

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				defer cancel()
				return playLoop(gctx, ctrl, readLines(gctx, os.Stdin), out)
			})
			g.Go(func() error {
				<-gctx.Done()
				if c.Context.Err() != nil {
					log.Info("interrupted, leaving the session unclaimed")
				}
				return nil
			})
			return g.Wait()
		},
	}
}

// readLines feeds stdin lines until EOF. The goroutine may outlive ctx while
// blocked on a read.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func playLoop(ctx context.Context, ctrl *game.Controller, lines <-chan string, out *printer) error {
	for {
		snap := ctrl.Snapshot()
		if snap.CanClaim {
			out.snapshot(snap)
			if err := ctrl.ClaimRewards(ctx); err != nil {
				return fmt.Errorf("rewards were not claimed, run play again to retry: %w", err)
			}
			out.snapshot(ctrl.Snapshot())
			return nil
		}

		out.snapshot(snap)
		fmt.Fprintf(out.w, "open card [1-%d] or q to quit: ", len(snap.Cards))

		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		if line == "q" || line == "quit" {
			return nil
		}
		id, err := strconv.Atoi(line)
		if err != nil {
			out.notice("%q is not a card number", line)
			continue
		}
		if !ctrl.OpenCard(id) {
			out.notice("card %d cannot be opened", id)
		}
	}
}

func commandEvents(container *do.Injector, out *printer) *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "print payment events until interrupted",
		Action: func(c *cli.Context) error {
			subscriber, err := do.Invoke[events.Subscriber](container)
			if err != nil {
				return err
			}
			if subscriber == nil {
				return errors.New("PAYMENT_EVENTS is none, nothing to watch")
			}
			cfg := do.MustInvoke[*config.Config](container)

			if err := subscriber.Subscribe(c.Context, cfg.PaymentEventsStream, out.event); err != nil {
				return err
			}
			out.notice("watching %s via %s, ctrl+c to stop", cfg.PaymentEventsStream, cfg.PaymentEvents)
			<-c.Context.Done()
			return nil
		},
	}
}
