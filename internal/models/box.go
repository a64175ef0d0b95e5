package models

// MaxOpens is the number of cards a user flips per session.
const MaxOpens = 3

// Invoice statuses reported by the Telegram invoice dialog.
const (
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
	InvoiceStatusFailed    = "failed"
	InvoiceStatusPending   = "pending"
)

type BoxStatus struct {
	CanPlayBox bool `json:"canPlayBox"`
}

// Reward is immutable once fetched. Only ID is meaningful to the client,
// the remaining fields are carried for display.
type Reward struct {
	ID     int64   `json:"id"`
	Name   *string `json:"name,omitempty"`
	Type   *string `json:"type,omitempty"`
	Amount *int64  `json:"amount,omitempty"`
}

type Card struct {
	ID      int    `json:"id"` // 1-based position in the session
	Reward  Reward `json:"reward"`
	Flipped bool   `json:"flipped"`
}

// NewCards zips the reward list with sequential positions starting at 1.
func NewCards(rewards []Reward) []Card {
	cards := make([]Card, 0, len(rewards))
	for i, r := range rewards {
		cards = append(cards, Card{ID: i + 1, Reward: r})
	}
	return cards
}
