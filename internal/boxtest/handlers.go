package boxtest

import (
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mystery-box/client/internal/auth"
	"github.com/mystery-box/client/internal/http/dto"
	"github.com/mystery-box/client/internal/middleware"
	"github.com/mystery-box/client/internal/models"
	"go.uber.org/zap"
)

func (s *Server) fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(dto.ErrorResponse{
		Error:     msg,
		RequestID: middleware.GetRequestID(c),
	})
}

func (s *Server) telegramAuth(c *fiber.Ctx) error {
	var req dto.AuthTelegramRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.InitData == "" {
		return s.fail(c, fiber.StatusBadRequest, "init_data is required")
	}

	data, err := auth.ValidateInitData(req.InitData, s.opts.BotToken, s.opts.InitDataTTL)
	if err != nil {
		s.log.Debug("telegram auth validation failed", zap.Error(err))
		return s.fail(c, fiber.StatusUnauthorized, err.Error())
	}
	if data.User.ID == 0 {
		return s.fail(c, fiber.StatusBadRequest, "user data missing from init_data")
	}

	s.mu.Lock()
	userID, ok := s.users[data.User.ID]
	if !ok {
		userID = uuid.New()
		s.users[data.User.ID] = userID
	}
	s.mu.Unlock()

	token, err := auth.GenerateJWT(s.opts.JWTSecret, userID, data.User.ID, s.opts.TokenTTL)
	if err != nil {
		s.log.Error("failed to generate jwt", zap.Error(err))
		return s.fail(c, fiber.StatusInternalServerError, "internal server error")
	}

	return c.JSON(dto.AuthResponse{
		Token: token,
		User: fiber.Map{
			"id":               userID,
			"telegram_user_id": data.User.ID,
			"username":         data.User.Username,
		},
	})
}

func (s *Server) boxStatus(c *fiber.Ctx) error {
	s.mu.Lock()
	canPlay := s.canPlay
	s.mu.Unlock()

	return c.JSON(dto.Envelope[dto.BoxStatusData]{
		Data: dto.BoxStatusData{User: models.BoxStatus{CanPlayBox: canPlay}},
	})
}

func (s *Server) payWithCoins(c *fiber.Ctx) error {
	key := middleware.GetIdempotencyKey(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.replayLocked(key); ok {
		return c.Status(prev.status).JSON(prev.body)
	}

	var (
		status = fiber.StatusOK
		body   any
	)
	switch {
	case s.canPlay:
		status, body = fiber.StatusConflict, s.errorBody(c, "box is already paid")
	case s.coins < s.opts.Price:
		status, body = fiber.StatusPaymentRequired, s.errorBody(c, "not enough coins")
	default:
		s.coins -= s.opts.Price
		s.canPlay = true
		body = fiber.Map{"data": nil}
	}

	s.rememberLocked(key, status, body)
	return c.Status(status).JSON(body)
}

func (s *Server) boxRewards(c *fiber.Ctx) error {
	s.mu.Lock()
	canPlay := s.canPlay
	rewards := slices.Clone(s.rewards)
	s.mu.Unlock()

	if !canPlay {
		return s.fail(c, fiber.StatusConflict, "box play is not allowed")
	}
	if rewards == nil {
		rewards = []models.Reward{}
	}
	return c.JSON(dto.Envelope[dto.RewardListData]{
		Data: dto.RewardListData{RewardList: rewards},
	})
}

func (s *Server) rewardUser(c *fiber.Ctx) error {
	var req dto.RewardUserRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	key := middleware.GetIdempotencyKey(c)

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.replayLocked(key); ok {
		return c.Status(prev.status).JSON(prev.body)
	}

	status, body := s.claimLocked(c, req.RewardIDs)
	s.rememberLocked(key, status, body)
	return c.Status(status).JSON(body)
}

func (s *Server) claimLocked(c *fiber.Ctx, ids []int64) (int, any) {
	if !s.canPlay {
		return fiber.StatusConflict, s.errorBody(c, "box play is not allowed")
	}
	if len(ids) != models.MaxOpens {
		return fiber.StatusBadRequest, s.errorBody(c, "wrong number of rewards selected")
	}
	for i, id := range ids {
		known := slices.ContainsFunc(s.rewards, func(r models.Reward) bool { return r.ID == id })
		if !known || slices.Contains(ids[:i], id) {
			return fiber.StatusBadRequest, s.errorBody(c, "invalid reward selection")
		}
	}

	s.claims = append(s.claims, slices.Clone(ids))
	s.canPlay = false
	s.log.Info("rewards granted",
		zap.Int64("telegram_user_id", middleware.GetTelegramUserID(c)),
		zap.Int64s("reward_ids", ids),
	)
	return fiber.StatusOK, fiber.Map{"data": fiber.Map{"rewardIds": ids}}
}

func (s *Server) invoiceLink(c *fiber.Ctx) error {
	return c.JSON(dto.Envelope[dto.InvoiceLinkData]{
		Data: dto.InvoiceLinkData{InvoiceLink: s.opts.InvoiceLink},
	})
}

func (s *Server) payInvoicePage(c *fiber.Ctx) error {
	if err := s.PayInvoice(c.UserContext(), s.opts.InvoiceLink); err != nil {
		s.log.Error("failed to publish invoice payment", zap.Error(err))
		return s.fail(c, fiber.StatusInternalServerError, "payment event was not delivered")
	}
	return c.SendString("Box paid. Return to the game.")
}

func (s *Server) errorBody(c *fiber.Ctx, msg string) dto.ErrorResponse {
	return dto.ErrorResponse{Error: msg, RequestID: middleware.GetRequestID(c)}
}

// replayLocked returns the outcome of an already processed idempotency key.
func (s *Server) replayLocked(key string) (processedCall, bool) {
	if key == "" {
		return processedCall{}, false
	}
	prev, ok := s.processed[key]
	return prev, ok
}

func (s *Server) rememberLocked(key string, status int, body any) {
	if key == "" {
		return
	}
	s.processed[key] = processedCall{status: status, body: body}
}
