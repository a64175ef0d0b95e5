package services

import (
	"context"
	"net/http"

	"github.com/mystery-box/client/internal/http/dto"
	"go.uber.org/zap"
)

const (
	PathBoxStatus       = "/box/status"
	PathBoxPayWithCoins = "/box/pay-with-coins"
	PathBoxRewards      = "/box/rewards"
	PathBoxReward       = "/box/reward"
)

// BoxClient wraps the box endpoints. It performs no validation and no
// retries; the remote side is the authority on every outcome.
type BoxClient struct {
	transport *Transport
	log       *zap.Logger
}

func NewBoxClient(transport *Transport, log *zap.Logger) *BoxClient {
	return &BoxClient{transport: transport, log: log}
}

func (c *BoxClient) GetStatus(ctx context.Context) (*dto.Envelope[dto.BoxStatusData], error) {
	var resp dto.Envelope[dto.BoxStatusData]
	if err := c.transport.call(ctx, http.MethodGet, PathBoxStatus, callOptions{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PayWithCoins debits in-app currency server-side. Insufficient funds and
// "not permitted" come back as *APIError.
func (c *BoxClient) PayWithCoins(ctx context.Context) (*dto.RawEnvelope, error) {
	var resp dto.RawEnvelope
	if err := c.transport.call(ctx, http.MethodPost, PathBoxPayWithCoins, callOptions{idempotent: true}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *BoxClient) GetRewards(ctx context.Context) (*dto.Envelope[dto.RewardListData], error) {
	var resp dto.Envelope[dto.RewardListData]
	if err := c.transport.call(ctx, http.MethodGet, PathBoxRewards, callOptions{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *BoxClient) RewardUser(ctx context.Context, req dto.RewardUserRequest) (*dto.RawEnvelope, error) {
	var resp dto.RawEnvelope
	opts := callOptions{body: req, idempotent: true}
	if err := c.transport.call(ctx, http.MethodPost, PathBoxReward, opts, &resp); err != nil {
		return nil, err
	}
	c.log.Info("rewards submitted", zap.Int64s("reward_ids", req.RewardIDs))
	return &resp, nil
}
