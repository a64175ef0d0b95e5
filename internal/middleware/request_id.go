package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	HeaderRequestID      = "X-Request-ID"
	HeaderIdempotencyKey = "Idempotency-Key"

	CtxRequestID      = "request_id"
	CtxIdempotencyKey = "idempotency_key"
)

// RequestIDMiddleware echoes the caller's request id (or a new one) and
// keeps the idempotency key of mutating calls in locals.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals(CtxRequestID, reqID)
		c.Set(HeaderRequestID, reqID)

		if key := c.Get(HeaderIdempotencyKey); key != "" {
			c.Locals(CtxIdempotencyKey, key)
		}
		return c.Next()
	}
}

func GetRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(CtxRequestID).(string)
	return id
}

func GetIdempotencyKey(c *fiber.Ctx) string {
	key, _ := c.Locals(CtxIdempotencyKey).(string)
	return key
}
