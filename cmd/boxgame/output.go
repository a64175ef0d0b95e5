package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/fatih/color"
	"github.com/mystery-box/client/internal/events"
	"github.com/mystery-box/client/internal/game"
	"github.com/mystery-box/client/internal/models"
	"github.com/mystery-box/client/internal/services"
)

type printer struct {
	w io.Writer

	title   *color.Color
	ok      *color.Color
	warn    *color.Color
	bad     *color.Color
	faint   *color.Color
	flipped *color.Color
}

func newPrinter(w io.Writer) *printer {
	return &printer{
		w:       w,
		title:   color.New(color.FgCyan, color.Bold),
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed),
		faint:   color.New(color.Faint),
		flipped: color.New(color.FgMagenta, color.Bold),
	}
}

func (p *printer) permission(canPlay bool) {
	if canPlay {
		p.ok.Fprintln(p.w, "You can open a box.")
		return
	}
	p.warn.Fprintln(p.w, "No box available. Pay with coins or buy one with Stars.")
}

func (p *printer) invoiceLink(link string) {
	p.title.Fprintln(p.w, "Pay for a box with Telegram Stars:")
	fmt.Fprintln(p.w, "  "+link)
	p.faint.Fprintln(p.w, "Waiting for the payment...")
}

func (p *printer) snapshot(s game.Snapshot) {
	p.faint.Fprintf(p.w, "state: %s\n", s.State)
	switch s.State {
	case models.GameStateNotAllowed:
		p.permission(false)
		return
	case models.GameStateFinished:
		p.ok.Fprintf(p.w, "Rewards claimed: %s\n", joinIDs(s.SelectedRewardIDs))
		p.permission(s.CanPlay)
		return
	}
	if len(s.Cards) == 0 {
		return
	}

	p.title.Fprintf(p.w, "Cards (%d/%d opened)\n", s.OpenedCount, models.MaxOpens)
	for _, card := range s.Cards {
		if card.Flipped {
			p.flipped.Fprintf(p.w, "  [%d] %s\n", card.ID, rewardLabel(card.Reward))
		} else {
			fmt.Fprintf(p.w, "  [%d] ?\n", card.ID)
		}
	}
	if s.CanClaim {
		p.ok.Fprintln(p.w, "Selection complete.")
	}
}

func (p *printer) event(e events.Event) {
	status, ok := events.InvoiceStatusOf(e)
	if !ok {
		p.faint.Fprintf(p.w, "%s %v\n", e.Type, e.Payload)
		return
	}
	c := p.ok
	if status != models.InvoiceStatusPaid {
		c = p.warn
	}
	c.Fprintf(p.w, "%s %s\n", status, events.InvoiceLinkOf(e))
}

func (p *printer) notice(format string, args ...any) {
	p.warn.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) failure(err error) {
	if services.StatusCode(err) == http.StatusPaymentRequired {
		p.warn.Fprintln(p.w, "Not enough coins for a box. Buy one with Stars instead.")
	}
	p.bad.Fprintf(p.w, "error: %v\n", err)
}

func rewardLabel(r models.Reward) string {
	var parts []string
	if r.Name != nil {
		parts = append(parts, *r.Name)
	}
	if r.Amount != nil {
		parts = append(parts, fmt.Sprintf("x%d", *r.Amount))
	}
	if r.Type != nil {
		parts = append(parts, "("+*r.Type+")")
	}
	if len(parts) == 0 {
		return fmt.Sprintf("reward #%d", r.ID)
	}
	return strings.Join(parts, " ")
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, ", ")
}
