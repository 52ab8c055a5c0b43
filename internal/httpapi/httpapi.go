// Package httpapi is the small HTTP surface next to the gRPC API: health and
// the checkout success redirect.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"google.golang.org/grpc/codes"

	"github.com/oggyb/guestmatch/internal/auth"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/service/payment"
)

// PaymentVerifier is satisfied by *payment.Verifier.
type PaymentVerifier interface {
	Verify(ctx context.Context, in payment.VerifyInput) (*payment.VerifyPaymentResponse, error)
}

// Pinger reports backend health.
type Pinger func(ctx context.Context) error

type Handler struct {
	verifier  PaymentVerifier
	tokens    *auth.Verifier
	checks    map[string]Pinger
	log       *slog.Logger
	startedAt time.Time
}

func NewHandler(verifier PaymentVerifier, tokens *auth.Verifier, checks map[string]Pinger, log *slog.Logger) *Handler {
	return &Handler{verifier: verifier, tokens: tokens, checks: checks, log: log, startedAt: time.Now()}
}

// New builds the fiber app with every route registered.
func New(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "guestmatch",
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
	})
	app.Use(recover.New())

	app.Get("/health", h.Health)
	app.Post("/v1/payments/verify", h.VerifyPayment)
	return app
}

func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	deps := fiber.Map{}
	for name, ping := range h.checks {
		if err := ping(ctx); err != nil {
			h.log.Warn("health check failed", "dependency", name, "err", err)
			deps[name] = "down"
			status = fiber.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	state := "ok"
	if status != fiber.StatusOK {
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":       state,
		"service":      "guestmatch",
		"uptime":       time.Since(h.startedAt).Round(time.Second).String(),
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"dependencies": deps,
	})
}

type verifyRequest struct {
	SessionID string `json:"session_id"`
	EventID   string `json:"event_id"`
}

// VerifyPayment serves the checkout success redirect. A bearer token is
// optional; without one the payer comes from the checkout session.
func (h *Handler) VerifyPayment(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON"})
	}

	in := payment.VerifyInput{SessionID: req.SessionID, EventID: req.EventID}
	if raw := c.Get(fiber.HeaderAuthorization); raw != "" {
		token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
		userID, err := h.tokens.Verify(token)
		if err != nil {
			return err
		}
		in.UserID = userID
	}

	resp, err := h.verifier.Verify(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

// errorHandler writes taxonomy errors as {"error": <user message>}.
func (h *Handler) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	if !svcErr.IsKnown(err) {
		h.log.Error("http request failed", "path", c.Path(), "err", err)
	}
	return c.Status(httpStatus(svcErr.Code(err))).JSON(fiber.Map{"error": svcErr.UserMessage(err)})
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return fiber.StatusBadRequest
	case codes.Unauthenticated:
		return fiber.StatusUnauthorized
	case codes.PermissionDenied:
		return fiber.StatusForbidden
	case codes.NotFound:
		return fiber.StatusNotFound
	case codes.FailedPrecondition:
		// the only precondition on this surface is an unpaid session
		return fiber.StatusPaymentRequired
	case codes.Aborted:
		return fiber.StatusConflict
	case codes.ResourceExhausted:
		return fiber.StatusTooManyRequests
	case codes.Unavailable, codes.DeadlineExceeded:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
