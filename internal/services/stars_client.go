package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/mystery-box/client/internal/http/dto"
	"go.uber.org/zap"
)

const PathStarsInvoiceLink = "/stars/invoice-link"

// StarsClient produces payable Telegram Stars invoice links for a box.
type StarsClient struct {
	transport *Transport
	log       *zap.Logger
}

func NewStarsClient(transport *Transport, log *zap.Logger) *StarsClient {
	return &StarsClient{transport: transport, log: log}
}

func (c *StarsClient) GetInvoiceLink(ctx context.Context) (string, error) {
	var resp dto.Envelope[dto.InvoiceLinkData]
	if err := c.transport.call(ctx, http.MethodGet, PathStarsInvoiceLink, callOptions{}, &resp); err != nil {
		return "", err
	}
	if resp.Data.InvoiceLink == "" {
		return "", errors.New("box api returned an empty invoice link")
	}
	return resp.Data.InvoiceLink, nil
}
