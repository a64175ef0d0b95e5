package invoice

import (
	"context"
	"time"

	"github.com/mystery-box/client/internal/events"
	"github.com/mystery-box/client/internal/models"
	"go.uber.org/zap"
)

// Opener stands in for the host platform invoice dialog: it shows a payable
// link and reports the payment status through onStatus.
type Opener interface {
	OpenInvoice(ctx context.Context, link string, onStatus func(status string)) error
}

// Presenter shows the invoice link to the user.
type Presenter func(link string)

// Watcher presents the link and waits for the matching payment event.
type Watcher struct {
	subscriber events.Subscriber
	stream     string
	present    Presenter
	wait       time.Duration
	log        *zap.Logger
}

func NewWatcher(subscriber events.Subscriber, stream string, present Presenter, wait time.Duration, log *zap.Logger) *Watcher {
	return &Watcher{
		subscriber: subscriber,
		stream:     stream,
		present:    present,
		wait:       wait,
		log:        log,
	}
}

// OpenInvoice calls onStatus exactly once on the calling goroutine with
// paid / failed / cancelled, or pending when nothing arrives within the wait.
// A cancelled ctx returns ctx.Err() without calling onStatus.
func (w *Watcher) OpenInvoice(ctx context.Context, link string, onStatus func(status string)) error {
	subCtx, cancel := context.WithTimeout(ctx, w.wait)
	defer cancel()

	statuses := make(chan string, 1)
	err := w.subscriber.Subscribe(subCtx, w.stream, func(event events.Event) {
		status, ok := events.InvoiceStatusOf(event)
		if !ok {
			return
		}
		if l := events.InvoiceLinkOf(event); l != "" && l != link {
			return
		}
		select {
		case statuses <- status:
		default:
		}
	})
	if err != nil {
		return err
	}

	w.present(link)
	w.log.Info("invoice opened, waiting for payment", zap.Duration("wait", w.wait))

	select {
	case status := <-statuses:
		w.log.Info("invoice status received", zap.String("status", status))
		onStatus(status)
	case <-subCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.log.Info("invoice wait timed out")
		onStatus(models.InvoiceStatusPending)
	}
	return nil
}

// NoopOpener is used when no payment event source is configured.
type NoopOpener struct {
	Present Presenter
}

func (o NoopOpener) OpenInvoice(_ context.Context, link string, onStatus func(status string)) error {
	o.Present(link)
	onStatus(models.InvoiceStatusPending)
	return nil
}
