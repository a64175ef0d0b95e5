package main

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/mystery-box/client/internal/boxtest"
	"github.com/mystery-box/client/internal/config"
	"github.com/mystery-box/client/internal/game"
	"github.com/mystery-box/client/internal/models"
	"github.com/samber/do"
	"go.uber.org/zap"
)

func newTestContainer(t *testing.T, srv *boxtest.Server, out *printer) *do.Injector {
	t.Helper()
	cfg := &config.Config{
		Env:                 "test",
		APIBaseURL:          srv.URL,
		HTTPTimeout:         5 * time.Second,
		InitData:            srv.InitData(99, "frank"),
		PaymentEvents:       config.PaymentEventsNone,
		PaymentEventsStream: boxtest.DefaultStream,
		InvoiceWait:         time.Second,
	}
	container := NewContainer(cfg, zap.NewNop(), out.invoiceLink)
	t.Cleanup(func() { _ = container.Shutdown() })
	return container
}

func TestPlayLoop_ClaimsAfterThreeCards(t *testing.T) {
	srv, err := boxtest.New(boxtest.Options{
		CanPlay: true,
		Rewards: []models.Reward{{ID: 5}, {ID: 6}, {ID: 7}, {ID: 8}},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	var buf bytes.Buffer
	out := newPrinter(&buf)
	container := newTestContainer(t, srv, out)
	ctrl := do.MustInvoke[*game.Controller](container)

	ctx := context.Background()
	if err := ctrl.Activate(ctx); err != nil {
		t.Fatal(err)
	}

	lines := make(chan string, 8)
	for _, l := range []string{"two", "2", "2", "4", "1"} {
		lines <- l
	}
	close(lines)

	if err := playLoop(ctx, ctrl, lines, out); err != nil {
		t.Fatalf("play loop: %v", err)
	}

	claims := srv.Claims()
	if len(claims) != 1 || !slices.Equal(claims[0], []int64{6, 8, 5}) {
		t.Errorf("unexpected claims %v", claims)
	}
	output := buf.String()
	if !strings.Contains(output, `"two" is not a card number`) {
		t.Errorf("expected parse notice, got:\n%s", output)
	}
	if !strings.Contains(output, "card 2 cannot be opened") {
		t.Errorf("expected repeated flip notice, got:\n%s", output)
	}
	if !strings.Contains(output, "Rewards claimed: 6, 8, 5") {
		t.Errorf("expected claim summary, got:\n%s", output)
	}
}

func TestPlayLoop_QuitLeavesSession(t *testing.T) {
	srv, err := boxtest.New(boxtest.Options{CanPlay: true, Rewards: []models.Reward{{ID: 1}, {ID: 2}, {ID: 3}}})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	var buf bytes.Buffer
	out := newPrinter(&buf)
	ctrl := do.MustInvoke[*game.Controller](newTestContainer(t, srv, out))
	if err := ctrl.Activate(context.Background()); err != nil {
		t.Fatal(err)
	}

	lines := make(chan string, 2)
	lines <- "1"
	lines <- "q"

	if err := playLoop(context.Background(), ctrl, lines, out); err != nil {
		t.Fatal(err)
	}
	if len(srv.Claims()) != 0 {
		t.Error("expected nothing claimed")
	}
	if ctrl.Snapshot().OpenedCount != 1 {
		t.Error("expected the opened card to stay opened")
	}
}

func TestContainer_NoopOpenerWithoutEvents(t *testing.T) {
	srv, err := boxtest.New(boxtest.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	var buf bytes.Buffer
	out := newPrinter(&buf)
	ctrl := do.MustInvoke[*game.Controller](newTestContainer(t, srv, out))

	ctx := context.Background()
	if err := ctrl.Activate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.OpenInvoice(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), srv.InvoiceLink()) {
		t.Errorf("expected invoice link to be printed, got:\n%s", buf.String())
	}
	if ctrl.State() != models.GameStateNotAllowed {
		t.Errorf("expected not_allowed while payment is pending, got %s", ctrl.State())
	}
}

func TestPrinter_FailureExplainsMissingCoins(t *testing.T) {
	srv, err := boxtest.New(boxtest.Options{Coins: 0})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	var buf bytes.Buffer
	out := newPrinter(&buf)
	ctrl := do.MustInvoke[*game.Controller](newTestContainer(t, srv, out))

	err = ctrl.PayWithCoins(context.Background())
	if err == nil {
		t.Fatal("expected payment to be refused")
	}
	out.failure(err)
	if !strings.Contains(buf.String(), "Not enough coins") {
		t.Errorf("expected coins hint, got:\n%s", buf.String())
	}
	if ctrl.State() != models.GameStateNotAllowed {
		t.Errorf("expected not_allowed after refused payment, got %s", ctrl.State())
	}
}
