package payment

import (
	"context"
	"log/slog"
	"strings"

	"github.com/oggyb/guestmatch/internal/app"
	"github.com/oggyb/guestmatch/internal/auth"
	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/logger"
	"github.com/oggyb/guestmatch/internal/notify"
	"github.com/oggyb/guestmatch/internal/repository"
)

// Verification results.
const (
	StatusPaid             = "paid"
	StatusAlreadyProcessed = "already_processed"
)

type VerifyInput struct {
	SessionID string
	EventID   string
	// UserID is the payer; when empty the session's client_reference_id is used.
	UserID string
}

type VerifyPaymentRequest struct {
	SessionID string `json:"session_id"`
	EventID   string `json:"event_id"`
}

type VerifyPaymentResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

// Verifier confirms a checkout session with the provider and applies it once.
type Verifier struct {
	repo     *repository.PaymentRepository
	sessions SessionLookup
	notifier notify.Notifier
	log      *slog.Logger
}

func NewVerifier(repo *repository.PaymentRepository, sessions SessionLookup, notifier notify.Notifier, log *slog.Logger) *Verifier {
	return &Verifier{repo: repo, sessions: sessions, notifier: notifier, log: log}
}

// Verify is idempotent per session id.
//
// Behavior:
//   - Session recorded before → already_processed, provider not called.
//   - Provider says unpaid → ErrPaymentIncomplete.
//   - Paid → transaction row, premium role and draft event activation in one
//     transaction, then a push to the payer.
func (v *Verifier) Verify(ctx context.Context, in VerifyInput) (*VerifyPaymentResponse, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	if in.SessionID == "" {
		return nil, svcErr.Validation("session_id is required")
	}

	existing, err := v.repo.FindBySession(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &VerifyPaymentResponse{Status: StatusAlreadyProcessed, EventID: existing.EventID}, nil
	}

	session, err := v.sessions.Session(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if !session.Paid() {
		v.log.Info("checkout session not paid", "payment_status", session.PaymentStatus)
		return nil, svcErr.ErrPaymentIncomplete
	}

	eventID := in.EventID
	if meta := session.Metadata["event_id"]; meta != "" {
		if eventID != "" && eventID != meta {
			return nil, svcErr.Validation("This payment belongs to a different event.")
		}
		eventID = meta
	}
	if eventID == "" {
		return nil, svcErr.Validation("event_id is required")
	}
	userID := in.UserID
	if userID == "" {
		userID = session.ClientReferenceID
	}
	if userID == "" {
		return nil, svcErr.Validation("This payment isn't linked to an account.")
	}

	already, err := v.repo.RecordPaid(ctx, db.PaymentTransaction{
		SessionID:   in.SessionID,
		UserID:      userID,
		EventID:     eventID,
		Status:      session.PaymentStatus,
		AmountTotal: session.AmountTotal,
		Currency:    session.Currency,
	})
	if err != nil {
		return nil, err
	}
	if already {
		return &VerifyPaymentResponse{Status: StatusAlreadyProcessed, EventID: eventID}, nil
	}

	v.log.Info("payment recorded", "event_id", eventID, "user", logger.MaskID(userID))
	v.notifier.SendPushNotification(userID, notify.PushPayload{
		Title: "Payment received",
		Body:  "Your event is live. Share the invite code with your guests!",
		Data:  map[string]string{"type": "payment", "event_id": eventID},
	})
	return &VerifyPaymentResponse{Status: StatusPaid, EventID: eventID}, nil
}

// Service implements the Payment gRPC API for signed-in organizers.
type Service struct {
	appCtx   *app.AppContext
	verifier *Verifier
}

func NewService(appCtx *app.AppContext, verifier *Verifier) *Service {
	return &Service{appCtx: appCtx, verifier: verifier}
}

func (s *Service) VerifyPayment(ctx context.Context, req *VerifyPaymentRequest) (*VerifyPaymentResponse, error) {
	userID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp, err := s.verifier.Verify(ctx, VerifyInput{SessionID: req.SessionID, EventID: req.EventID, UserID: userID})
	if err != nil {
		if !svcErr.IsKnown(err) {
			s.appCtx.Logger.Error("VerifyPayment failed", "err", err)
		}
		return nil, svcErr.Map(err)
	}
	return resp, nil
}
