package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func LoggerMiddleware(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		level := zapcore.InfoLevel
		if status >= fiber.StatusInternalServerError {
			level = zapcore.WarnLevel
		}

		fields := []zap.Field{
			zap.String("request_id", GetRequestID(c)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		}
		if key := GetIdempotencyKey(c); key != "" {
			fields = append(fields, zap.String("idempotency_key", key))
		}
		if tgID := GetTelegramUserID(c); tgID != 0 {
			fields = append(fields, zap.Int64("telegram_user_id", tgID))
		}
		log.Log(level, "request", fields...)

		return err
	}
}
