package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	svcErr "github.com/oggyb/guestmatch/internal/errors"
)

// CheckoutSession is the part of a Stripe Checkout Session we read.
type CheckoutSession struct {
	ID                string            `json:"id"`
	PaymentStatus     string            `json:"payment_status"`
	Status            string            `json:"status"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// Paid reports whether the provider considers the session settled.
func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

// SessionLookup fetches a checkout session from the payment provider.
type SessionLookup interface {
	Session(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

// StripeClient reads checkout sessions through stripe-go.
type StripeClient struct {
	sessions *session.Client
}

// NewStripeClient builds a client against baseURL (https://api.stripe.com in
// production). Retries are off: the caller's redirect is retried by the user.
func NewStripeClient(baseURL, secretKey string, timeout time.Duration, log *slog.Logger) *StripeClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(baseURL),
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     stripeLogger{log: log},
	})
	return &StripeClient{sessions: &session.Client{B: backend, Key: secretKey}}
}

// Session calls GET /v1/checkout/sessions/{id}.
func (c *StripeClient) Session(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if c.sessions.Key == "" {
		return nil, fmt.Errorf("stripe: secret key is not configured")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := c.sessions.Get(sessionID, params)
	if err != nil {
		return nil, classifyStripe(err)
	}

	return &CheckoutSession{
		ID:                s.ID,
		PaymentStatus:     string(s.PaymentStatus),
		Status:            string(s.Status),
		AmountTotal:       s.AmountTotal,
		Currency:          string(s.Currency),
		ClientReferenceID: s.ClientReferenceID,
		Metadata:          s.Metadata,
	}, nil
}

// classifyStripe maps provider failures onto the error taxonomy.
func classifyStripe(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		switch {
		case se.HTTPStatusCode == http.StatusNotFound:
			return svcErr.NotFound("We couldn't find that payment.")
		case se.HTTPStatusCode == http.StatusTooManyRequests || se.HTTPStatusCode >= 500:
			return fmt.Errorf("stripe: status %d: %w", se.HTTPStatusCode, svcErr.ErrTransient)
		default:
			return fmt.Errorf("stripe: status %d: %s", se.HTTPStatusCode, se.Msg)
		}
	}

	// network failures and unreadable responses
	return fmt.Errorf("stripe: %v: %w", err, svcErr.ErrTransient)
}

// stripeLogger routes stripe-go's own logging into slog. Its errors include
// plain 404s, so they land at warn.
type stripeLogger struct {
	log *slog.Logger
}

func (l stripeLogger) Debugf(format string, v ...any) { l.log.Debug(fmt.Sprintf(format, v...)) }
func (l stripeLogger) Infof(format string, v ...any)  { l.log.Debug(fmt.Sprintf(format, v...)) }
func (l stripeLogger) Warnf(format string, v ...any)  { l.log.Debug(fmt.Sprintf(format, v...)) }
func (l stripeLogger) Errorf(format string, v ...any) { l.log.Warn(fmt.Sprintf(format, v...)) }
