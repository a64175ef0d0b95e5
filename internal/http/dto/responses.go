package dto

import (
	"encoding/json"

	"github.com/mystery-box/client/internal/models"
)

// Envelope is the generic `{ data: ... }` wrapper of every box API response.
type Envelope[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

// RawEnvelope is used where the payload is opaque (pay, claim).
type RawEnvelope = Envelope[json.RawMessage]

type BoxStatusData struct {
	User models.BoxStatus `json:"user"`
}

type RewardListData struct {
	RewardList []models.Reward `json:"rewardList"`
}

type InvoiceLinkData struct {
	InvoiceLink string `json:"invoiceLink"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
