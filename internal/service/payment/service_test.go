package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/guestmatch/internal/app/apptest"
	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/logger"
	"github.com/oggyb/guestmatch/internal/repository"
	"github.com/oggyb/guestmatch/internal/service/payment"
)

// stripeError writes an error body the way the Stripe API does.
func stripeError(w http.ResponseWriter, code int, typ, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"type": typ, "message": msg},
	})
}

// fakeStripe serves checkout sessions by id and counts calls.
func fakeStripe(t *testing.T, sessions map[string]payment.CheckoutSession) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			stripeError(w, http.StatusUnauthorized, "invalid_request_error", "Invalid API Key provided")
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/v1/checkout/sessions/")
		s, ok := sessions[id]
		if !ok {
			stripeError(w, http.StatusNotFound, "invalid_request_error", "No such checkout.session: "+id)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func setup(t *testing.T, sessions map[string]payment.CheckoutSession) (*apptest.Env, *payment.Service, *int32) {
	t.Helper()
	env := apptest.New(t)
	env.SeedEvent(t, "wedding", db.EventDraft)

	srv, calls := fakeStripe(t, sessions)
	verifier := payment.NewVerifier(
		repository.NewPaymentRepository(env.DB),
		payment.NewStripeClient(srv.URL, "sk_test", time.Second, env.App.Logger),
		env.Notifier,
		env.App.Logger,
	)
	return env, payment.NewService(env.App, verifier), calls
}

func TestVerifyPaymentActivatesEventOnce(t *testing.T) {
	env, svc, calls := setup(t, map[string]payment.CheckoutSession{
		"cs_1": {ID: "cs_1", PaymentStatus: "paid", AmountTotal: 4900, Currency: "usd", Metadata: map[string]string{"event_id": "wedding"}},
	})
	ctx := apptest.As(apptest.Organizer)

	resp, err := svc.VerifyPayment(ctx, &payment.VerifyPaymentRequest{SessionID: "cs_1", EventID: "wedding"})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPaid, resp.Status)

	var event db.Event
	require.NoError(t, env.DB.Where("id = ?", "wedding").Take(&event).Error)
	assert.Equal(t, db.EventActive, event.Status)

	premium, err := repository.NewMembershipRepository(env.DB).HasRole(context.Background(), apptest.Organizer, db.RolePremium)
	require.NoError(t, err)
	assert.True(t, premium)

	pushes := env.Notifier.Pushes()
	require.Len(t, pushes, 1)
	assert.Equal(t, "wedding", pushes[0].Data["event_id"])

	// replaying the redirect does not reach the provider again
	resp, err = svc.VerifyPayment(ctx, &payment.VerifyPaymentRequest{SessionID: "cs_1", EventID: "wedding"})
	require.NoError(t, err)
	assert.Equal(t, payment.StatusAlreadyProcessed, resp.Status)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
	assert.Len(t, env.Notifier.Pushes(), 1)
}

func TestVerifyPaymentUnpaid(t *testing.T) {
	_, svc, _ := setup(t, map[string]payment.CheckoutSession{
		"cs_2": {ID: "cs_2", PaymentStatus: "unpaid"},
	})

	_, err := svc.VerifyPayment(apptest.As(apptest.Organizer), &payment.VerifyPaymentRequest{SessionID: "cs_2", EventID: "wedding"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestVerifyPaymentErrors(t *testing.T) {
	_, svc, _ := setup(t, map[string]payment.CheckoutSession{
		"cs_3": {ID: "cs_3", PaymentStatus: "paid", Metadata: map[string]string{"event_id": "other"}},
	})
	ctx := apptest.As(apptest.Organizer)

	_, err := svc.VerifyPayment(ctx, &payment.VerifyPaymentRequest{SessionID: "cs_missing", EventID: "wedding"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = svc.VerifyPayment(ctx, &payment.VerifyPaymentRequest{SessionID: "cs_3", EventID: "wedding"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.VerifyPayment(ctx, &payment.VerifyPaymentRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStripeClientSession(t *testing.T) {
	srv, _ := fakeStripe(t, map[string]payment.CheckoutSession{
		"cs_1": {
			ID: "cs_1", PaymentStatus: "paid", Status: "complete", AmountTotal: 4900, Currency: "usd",
			ClientReferenceID: "org-1", Metadata: map[string]string{"event_id": "wedding"},
		},
	})
	client := payment.NewStripeClient(srv.URL, "sk_test", time.Second, logger.Nop())

	s, err := client.Session(context.Background(), "cs_1")
	require.NoError(t, err)
	assert.True(t, s.Paid())
	assert.Equal(t, int64(4900), s.AmountTotal)
	assert.Equal(t, "usd", s.Currency)
	assert.Equal(t, "org-1", s.ClientReferenceID)
	assert.Equal(t, "wedding", s.Metadata["event_id"])

	_, err = client.Session(context.Background(), "cs_missing")
	assert.ErrorIs(t, err, svcErr.ErrNotFound)

	// a wrong key is a configuration problem, not the user's
	_, err = payment.NewStripeClient(srv.URL, "sk_wrong", time.Second, logger.Nop()).Session(context.Background(), "cs_1")
	require.Error(t, err)
	assert.False(t, svcErr.IsKnown(err))
}

func TestStripeClientTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		stripeError(w, http.StatusBadGateway, "api_error", "upstream unavailable")
	}))
	defer srv.Close()

	_, err := payment.NewStripeClient(srv.URL, "sk_test", time.Second, logger.Nop()).Session(context.Background(), "cs_1")
	assert.ErrorIs(t, err, svcErr.ErrTransient)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	_, err = payment.NewStripeClient(srv.URL, "", time.Second, logger.Nop()).Session(context.Background(), "cs_1")
	require.Error(t, err)
	assert.False(t, svcErr.IsKnown(err))

	// unreachable provider
	srv.Close()
	_, err = payment.NewStripeClient(srv.URL, "sk_test", time.Second, logger.Nop()).Session(context.Background(), "cs_1")
	assert.ErrorIs(t, err, svcErr.ErrTransient)
}
