package dashboard

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ibeckermayer/trendpersona/internal/agent"
	"github.com/ibeckermayer/trendpersona/internal/auth"
	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/generator"
	"github.com/ibeckermayer/trendpersona/internal/store"
	"github.com/ibeckermayer/trendpersona/internal/tweet"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	var fieldErr *config.FieldError
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code
	case errors.Is(err, generator.ErrTooLong):
		return fiber.StatusUnprocessableEntity
	case errors.As(err, &fieldErr),
		errors.Is(err, store.ErrInvalidDump),
		errors.Is(err, tweet.ErrEmpty),
		errors.Is(err, tweet.ErrTooLong),
		errors.Is(err, tweet.ErrUnsafe),
		errors.Is(err, tweet.ErrTooLarge):
		return fiber.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return fiber.StatusUnauthorized
	case errors.Is(err, auth.ErrLoginDisabled):
		return fiber.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, agent.ErrBusy), errors.Is(err, agent.ErrAlreadySent):
		return fiber.StatusConflict
	case errors.Is(err, generator.ErrQuotaPaused), errors.Is(err, generator.ErrNoPrompt),
		errors.Is(err, agent.ErrNotConfigured):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, generator.ErrEmptyResponse):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// handleError is the fiber ErrorHandler. Internal errors are logged and
// their text is not returned to the client.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	body := fiber.Map{"error": err.Error()}

	var fieldErr *config.FieldError
	if errors.As(err, &fieldErr) {
		body["field"] = fieldErr.Field
	}
	if code == fiber.StatusInternalServerError {
		s.log.WithError(err).WithField("path", c.Path()).Error("Unhandled error")
		body["error"] = "internal server error"
	}
	return c.Status(code).JSON(body)
}

// upstreamFailure reports a send to X that failed after a record was kept
func upstreamFailure(c *fiber.Ctx, err error, key string, payload any) error {
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": err.Error(),
		key:     payload,
	})
}
