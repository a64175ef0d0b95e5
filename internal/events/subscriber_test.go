package events_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mystery-box/client/internal/auth"
	"github.com/mystery-box/client/internal/boxtest"
	"github.com/mystery-box/client/internal/events"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func receive(t *testing.T, ch <-chan events.Event) events.Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}

func TestWSSubscriber_ReceivesPaymentEvents(t *testing.T) {
	srv, err := boxtest.New(boxtest.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Close()

	token, err := auth.GenerateJWT(boxtest.DefaultJWTSecret, uuid.New(), 42, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan events.Event, 4)
	sub := events.NewWSSubscriber(srv.WSURL(), auth.StaticToken(token), zap.NewNop())
	if err := sub.Subscribe(ctx, boxtest.DefaultStream, func(e events.Event) { got <- e }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := srv.WaitSubscribers(ctx, 1); err != nil {
		t.Fatal(err)
	}

	if err := srv.PayInvoice(ctx, "https://t.me/$inv"); err != nil {
		t.Fatal(err)
	}
	e := receive(t, got)
	if e.Type != events.EventPaymentReceived || events.InvoiceLinkOf(e) != "https://t.me/$inv" {
		t.Errorf("unexpected event %+v", e)
	}

	if err := srv.CancelInvoice(ctx, "https://t.me/$inv"); err != nil {
		t.Fatal(err)
	}
	if e := receive(t, got); e.Type != events.EventPaymentCancelled {
		t.Errorf("unexpected event %+v", e)
	}
}

func TestWSSubscriber_Unreachable(t *testing.T) {
	sub := events.NewWSSubscriber("ws://127.0.0.1:1/ws", nil, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sub.Subscribe(ctx, boxtest.DefaultStream, func(events.Event) {}); err == nil {
		t.Fatal("expected dial error")
	}
}

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://127.0.0.1:6379/0"
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("invalid REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available at %s: %v", opts.Addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisPubSub_RoundTrip(t *testing.T) {
	client := redisClient(t)
	log := zap.NewNop()
	stream := "events:payment:test:" + time.Now().Format("150405.000000000")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan events.Event, 1)
	if err := events.NewRedisSubscriber(client, log).Subscribe(ctx, stream, func(e events.Event) { got <- e }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	event := events.Event{
		Type:    events.EventPaymentFailed,
		Payload: map[string]any{events.PayloadInvoiceLink: "https://t.me/$r"},
	}
	if err := events.NewRedisPublisher(client, log).Publish(ctx, stream, event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	e := receive(t, got)
	if e.Type != events.EventPaymentFailed || events.InvoiceLinkOf(e) != "https://t.me/$r" {
		t.Errorf("unexpected event %+v", e)
	}
}
