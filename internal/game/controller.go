package game

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/mystery-box/client/internal/http/dto"
	"github.com/mystery-box/client/internal/invoice"
	"github.com/mystery-box/client/internal/models"
	"go.uber.org/zap"
)

var (
	ErrBusy             = errors.New("another box operation is in progress")
	ErrInvalidSelection = errors.New("selection size does not match the number of opens")
)

type BoxService interface {
	GetStatus(ctx context.Context) (*dto.Envelope[dto.BoxStatusData], error)
	PayWithCoins(ctx context.Context) (*dto.RawEnvelope, error)
	GetRewards(ctx context.Context) (*dto.Envelope[dto.RewardListData], error)
	RewardUser(ctx context.Context, req dto.RewardUserRequest) (*dto.RawEnvelope, error)
}

type InvoiceLinkProvider interface {
	GetInvoiceLink(ctx context.Context) (string, error)
}

type phase int

const (
	phaseNone phase = iota
	phaseStatus
	phaseRewards
	phaseClaiming
)

// Controller owns the state of one box game session. Remote calls are made
// without holding mu; only one of them runs at a time.
type Controller struct {
	box     BoxService
	invoice InvoiceLinkProvider
	opener  invoice.Opener
	log     *zap.Logger

	mu              sync.Mutex
	busy            bool
	phase           phase
	canPlay         bool
	permissionKnown bool
	invoiceLink     string
	rewardList      []models.Reward
	cards           []models.Card
	openedCount     int
	selected        []int64
	canClaim        bool
	gameFinished    bool
}

func NewController(box BoxService, invoiceLinks InvoiceLinkProvider, opener invoice.Opener, log *zap.Logger) *Controller {
	return &Controller{
		box:     box,
		invoice: invoiceLinks,
		opener:  opener,
		log:     log,
	}
}

// Snapshot is a copy of the controller state at one point in time.
type Snapshot struct {
	State             models.GameState
	Loading           bool
	CanPlay           bool
	PermissionKnown   bool
	InvoiceLink       string
	RewardList        []models.Reward
	Cards             []models.Card
	OpenedCount       int
	SelectedRewardIDs []int64
	CanClaim          bool
	GameFinished      bool
}

// Activate fetches the invoice link and the play permission, then starts a
// session when play is allowed.
func (c *Controller) Activate(ctx context.Context) error {
	if err := c.begin(phaseStatus); err != nil {
		return err
	}
	defer c.end()

	c.fetchInvoiceLink(ctx)

	allowed, err := c.refreshStatus(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.cards = nil
	c.resetSessionLocked()
	c.mu.Unlock()

	if !allowed {
		c.log.Info("box play not allowed")
		return nil
	}
	return c.loadRewards(ctx)
}

// Reload fetches a fresh reward list and starts a new session with it.
func (c *Controller) Reload(ctx context.Context) error {
	if err := c.begin(phaseRewards); err != nil {
		return err
	}
	defer c.end()

	return c.loadRewards(ctx)
}

// OpenCard flips the card with the given position and reports whether
// anything changed. It never blocks on remote calls.
func (c *Controller) OpenCard(id int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gameFinished || c.openedCount >= models.MaxOpens {
		return false
	}
	idx := slices.IndexFunc(c.cards, func(card models.Card) bool { return card.ID == id })
	if idx < 0 || c.cards[idx].Flipped {
		return false
	}

	c.cards[idx].Flipped = true
	c.openedCount++
	c.selected = append(c.selected, c.cards[idx].Reward.ID)
	c.canClaim = c.openedCount == models.MaxOpens

	c.log.Debug("card opened",
		zap.Int("card_id", id),
		zap.Int64("reward_id", c.cards[idx].Reward.ID),
		zap.Int("opened", c.openedCount),
	)
	return true
}

// ClaimRewards submits the selected reward ids. Nothing is dispatched unless
// the selection is complete. A failed claim leaves the session as it was.
func (c *Controller) ClaimRewards(ctx context.Context) error {
	c.mu.Lock()
	if !c.canClaim || c.gameFinished {
		c.mu.Unlock()
		return nil
	}
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if len(c.selected) != models.MaxOpens {
		n := len(c.selected)
		c.mu.Unlock()
		c.log.Error("refusing to claim", zap.Int("selected", n))
		return fmt.Errorf("%w: %d selected", ErrInvalidSelection, n)
	}
	ids := slices.Clone(c.selected)
	c.busy = true
	c.phase = phaseClaiming
	c.mu.Unlock()
	defer c.end()

	if _, err := c.box.RewardUser(ctx, dto.RewardUserRequest{RewardIDs: ids}); err != nil {
		c.log.Warn("failed to claim rewards", zap.Int64s("reward_ids", ids), zap.Error(err))
		return fmt.Errorf("claim rewards: %w", err)
	}

	c.mu.Lock()
	c.gameFinished = true
	c.canClaim = false
	c.cards = nil
	c.phase = phaseStatus
	c.mu.Unlock()
	c.log.Info("rewards claimed", zap.Int64s("reward_ids", ids))

	// the claim stays completed even if the refresh fails
	_, err := c.refreshStatus(ctx)
	return err
}

// PayWithCoins pays for a session with in-app currency, re-queries play
// permission whatever the payment outcome, and starts a fresh session when
// play is allowed.
func (c *Controller) PayWithCoins(ctx context.Context) error {
	if err := c.begin(phaseStatus); err != nil {
		return err
	}
	defer c.end()

	var payErr error
	if _, err := c.box.PayWithCoins(ctx); err != nil {
		c.log.Warn("failed to pay with coins", zap.Error(err))
		payErr = fmt.Errorf("pay with coins: %w", err)
	}

	allowed, err := c.refreshStatus(ctx)
	if err != nil {
		return errors.Join(payErr, err)
	}
	if !allowed {
		return payErr
	}
	return errors.Join(payErr, c.loadRewards(ctx))
}

// OpenInvoice hands the invoice link to the opener and applies the reported
// payment status.
func (c *Controller) OpenInvoice(ctx context.Context) error {
	link := c.InvoiceLink()
	if link == "" {
		c.log.Debug("no invoice link to open")
		return nil
	}

	var (
		status   string
		reported bool
	)
	err := c.opener.OpenInvoice(ctx, link, func(s string) {
		status = s
		reported = true
	})
	if err != nil {
		c.log.Warn("failed to open invoice", zap.Error(err))
		return fmt.Errorf("open invoice: %w", err)
	}
	if !reported {
		return nil
	}
	return c.HandleInvoiceStatus(ctx, status)
}

// HandleInvoiceStatus re-queries play permission after a paid invoice and
// starts a session when allowed and none is in play.
func (c *Controller) HandleInvoiceStatus(ctx context.Context, status string) error {
	if status != models.InvoiceStatusPaid {
		c.log.Info("invoice not paid", zap.String("status", status))
		return nil
	}

	if err := c.begin(phaseStatus); err != nil {
		return err
	}
	defer c.end()

	c.log.Info("invoice paid")
	allowed, err := c.refreshStatus(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	inPlay := c.sessionInPlayLocked()
	c.mu.Unlock()
	if !allowed || inPlay {
		return nil
	}
	return c.loadRewards(ctx)
}

// Reset drops the session. The invoice link and play permission are kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rewardList = nil
	c.cards = nil
	c.resetSessionLocked()
}

func (c *Controller) State() models.GameState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		State:             c.stateLocked(),
		Loading:           c.busy,
		CanPlay:           c.canPlay,
		PermissionKnown:   c.permissionKnown,
		InvoiceLink:       c.invoiceLink,
		RewardList:        slices.Clone(c.rewardList),
		Cards:             slices.Clone(c.cards),
		OpenedCount:       c.openedCount,
		SelectedRewardIDs: slices.Clone(c.selected),
		CanClaim:          c.canClaim,
		GameFinished:      c.gameFinished,
	}
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Controller) CanPlay() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canPlay
}

func (c *Controller) InvoiceLink() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invoiceLink
}

func (c *Controller) begin(p phase) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return ErrBusy
	}
	c.busy = true
	c.phase = p
	return nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.busy = false
	c.phase = phaseNone
	c.mu.Unlock()
}

func (c *Controller) setPhase(p phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func (c *Controller) fetchInvoiceLink(ctx context.Context) {
	link, err := c.invoice.GetInvoiceLink(ctx)
	if err != nil {
		c.log.Warn("failed to fetch invoice link", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.invoiceLink = link
	c.mu.Unlock()
}

func (c *Controller) refreshStatus(ctx context.Context) (bool, error) {
	c.setPhase(phaseStatus)
	resp, err := c.box.GetStatus(ctx)
	if err != nil {
		c.log.Warn("failed to get box status", zap.Error(err))
		return false, fmt.Errorf("get box status: %w", err)
	}

	allowed := resp.Data.User.CanPlayBox
	c.mu.Lock()
	c.canPlay = allowed
	c.permissionKnown = true
	c.mu.Unlock()

	c.log.Debug("box status refreshed", zap.Bool("can_play", allowed))
	return allowed, nil
}

// loadRewards replaces the session only when the fetch succeeds.
func (c *Controller) loadRewards(ctx context.Context) error {
	c.setPhase(phaseRewards)
	resp, err := c.box.GetRewards(ctx)
	if err != nil {
		c.log.Warn("failed to get rewards", zap.Error(err))
		return fmt.Errorf("get rewards: %w", err)
	}

	rewards := resp.Data.RewardList
	c.mu.Lock()
	c.rewardList = slices.Clone(rewards)
	c.cards = models.NewCards(rewards)
	c.resetSessionLocked()
	c.mu.Unlock()

	c.log.Info("box session started", zap.Int("cards", len(rewards)))
	return nil
}

func (c *Controller) resetSessionLocked() {
	c.openedCount = 0
	c.selected = nil
	c.canClaim = false
	c.gameFinished = false
}

func (c *Controller) sessionInPlayLocked() bool {
	return !c.gameFinished && len(c.cards) > 0
}

func (c *Controller) stateLocked() models.GameState {
	if c.busy {
		switch c.phase {
		case phaseStatus:
			return models.GameStateAwaitingPlayPermission
		case phaseRewards:
			return models.GameStateRewardsLoading
		case phaseClaiming:
			return models.GameStateClaiming
		}
	}
	switch {
	case c.gameFinished:
		return models.GameStateFinished
	case c.canClaim:
		return models.GameStateReadyToClaim
	case len(c.cards) > 0:
		return models.GameStatePlaying
	case c.permissionKnown && !c.canPlay:
		return models.GameStateNotAllowed
	}
	return models.GameStateIdle
}
