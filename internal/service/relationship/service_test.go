package relationship_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/oggyb/guestmatch/internal/app/apptest"
	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/repository"
	"github.com/oggyb/guestmatch/internal/service/relationship"
	"github.com/oggyb/guestmatch/internal/social"
)

func setup(t *testing.T) (*apptest.Env, *relationship.Service) {
	t.Helper()
	env := apptest.New(t)
	env.SeedEvent(t, "wedding", db.EventActive, "alice", "bob", "carol")
	return env, relationship.NewService(env.App)
}

func match(t *testing.T, env *apptest.Env, a, b string) string {
	t.Helper()
	repo := repository.NewSwipeRepository(env.DB)
	ctx := context.Background()
	_, err := repo.RecordSwipe(ctx, a, b, "wedding", db.DirectionRight)
	require.NoError(t, err)
	res, err := repo.RecordSwipe(ctx, b, a, "wedding", db.DirectionRight)
	require.NoError(t, err)
	require.True(t, res.Matched)
	return res.MatchID
}

func matchStatus(t *testing.T, env *apptest.Env, id string) string {
	t.Helper()
	var m db.Match
	require.NoError(t, env.DB.Where("id = ?", id).Take(&m).Error)
	return m.Status
}

func TestBlockIsIdempotent(t *testing.T) {
	env, svc := setup(t)
	matchID := match(t, env, "alice", "bob")

	resp, err := svc.Block(apptest.As("alice"), &relationship.BlockRequest{TargetUserID: "bob", Reason: "Harassment"})
	require.NoError(t, err)
	assert.Equal(t, social.Applied, resp.Outcome)
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, db.MatchBlocked, matchStatus(t, env, matchID))

	resp, err = svc.Block(apptest.As("alice"), &relationship.BlockRequest{TargetUserID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, social.AlreadyDone, resp.Outcome)
	assert.Equal(t, "You've already blocked this guest.", resp.Message)
}

func TestInputValidation(t *testing.T) {
	_, svc := setup(t)

	_, err := svc.Block(apptest.As("alice"), &relationship.BlockRequest{TargetUserID: "alice"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.Unmatch(apptest.As("alice"), &relationship.UnmatchRequest{TargetUserID: "bob", EventID: "wedding", Reason: "bored"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = svc.Report(apptest.As("alice"), &relationship.ReportRequest{TargetUserID: "bob", EventID: "wedding", Reason: "other"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestUnmatch(t *testing.T) {
	env, svc := setup(t)
	matchID := match(t, env, "alice", "bob")

	_, err := svc.Unmatch(apptest.As("alice"), &relationship.UnmatchRequest{TargetUserID: "carol", EventID: "wedding", Reason: "not_interested"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	resp, err := svc.Unmatch(apptest.As("alice"), &relationship.UnmatchRequest{
		TargetUserID: "bob", EventID: "wedding", MatchID: matchID, Reason: "not interested",
	})
	require.NoError(t, err)
	assert.Equal(t, social.Applied, resp.Outcome)
	assert.Equal(t, db.MatchUnmatched, matchStatus(t, env, matchID))

	// the other side unmatching afterwards is informational
	resp, err = svc.Unmatch(apptest.As("bob"), &relationship.UnmatchRequest{TargetUserID: "alice", EventID: "wedding", Reason: "other"})
	require.NoError(t, err)
	assert.Equal(t, social.AlreadyDone, resp.Outcome)
}

func TestGuardRefusesConcurrentSameAction(t *testing.T) {
	env, svc := setup(t)
	match(t, env, "alice", "bob")

	release, ok, err := env.App.RedisCache.AcquireGuard(context.Background(), social.ActionUnmatch, "alice", "bob", "wedding", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = svc.Unmatch(apptest.As("alice"), &relationship.UnmatchRequest{TargetUserID: "bob", EventID: "wedding", Reason: "other"})
	assert.Equal(t, codes.Aborted, status.Code(err))

	// a different action is not held up
	resp, err := svc.Report(apptest.As("alice"), &relationship.ReportRequest{TargetUserID: "bob", EventID: "wedding", Reason: "spam"})
	require.NoError(t, err)
	assert.Equal(t, social.Applied, resp.Outcome)

	release()
	resp, err = svc.Unmatch(apptest.As("alice"), &relationship.UnmatchRequest{TargetUserID: "bob", EventID: "wedding", Reason: "other"})
	require.NoError(t, err)
	assert.Equal(t, social.AlreadyDone, resp.Outcome)
}

func TestReportNotifiesOrganizerOnce(t *testing.T) {
	env, svc := setup(t)
	matchID := match(t, env, "alice", "bob")

	resp, err := svc.Report(apptest.As("alice"), &relationship.ReportRequest{
		TargetUserID: "bob", EventID: "wedding", Reason: "other", CustomReason: "rude at dinner",
	})
	require.NoError(t, err)
	assert.Equal(t, social.Applied, resp.Outcome)
	require.NotEmpty(t, resp.ReportID)
	assert.Equal(t, db.MatchUnmatched, matchStatus(t, env, matchID))

	sent := env.Notifier.Sent(db.NotifyReport)
	require.Len(t, sent, 1)
	assert.Equal(t, apptest.Organizer, sent[0].RecipientID)
	assert.Equal(t, resp.ReportID, sent[0].Data["report_id"])

	resp, err = svc.Report(apptest.As("alice"), &relationship.ReportRequest{TargetUserID: "bob", EventID: "wedding", Reason: "spam"})
	require.NoError(t, err)
	assert.Equal(t, social.AlreadyDone, resp.Outcome)
	assert.Len(t, env.Notifier.Sent(db.NotifyReport), 1)
}

func TestActionsNeedAnActiveEvent(t *testing.T) {
	env, svc := setup(t)
	match(t, env, "alice", "bob")
	env.CloseEvent(t, "wedding")

	_, err := svc.Unmatch(apptest.As("alice"), &relationship.UnmatchRequest{TargetUserID: "bob", EventID: "wedding", Reason: "other"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = svc.Report(apptest.As("alice"), &relationship.ReportRequest{TargetUserID: "bob", EventID: "wedding", Reason: "spam"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	// blocking without an event stays possible
	_, err = svc.Block(apptest.As("alice"), &relationship.BlockRequest{TargetUserID: "bob"})
	require.NoError(t, err)
}

func TestBlockInClosedEvent(t *testing.T) {
	env, svc := setup(t)
	matchID := match(t, env, "alice", "bob")
	env.CloseEvent(t, "wedding")

	resp, err := svc.Block(apptest.As("alice"), &relationship.BlockRequest{TargetUserID: "bob", EventID: "wedding", MatchID: matchID})
	require.NoError(t, err)
	assert.Equal(t, social.Applied, resp.Outcome)
	assert.Equal(t, db.MatchBlocked, matchStatus(t, env, matchID))

	_, err = svc.Block(apptest.As("alice"), &relationship.BlockRequest{TargetUserID: "carol", EventID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestIncompleteProfileCannotAct(t *testing.T) {
	env, svc := setup(t)
	matchID := match(t, env, "alice", "bob")
	env.ClearPhotos(t, "alice")

	_, err := svc.Unmatch(apptest.As("alice"), &relationship.UnmatchRequest{TargetUserID: "bob", EventID: "wedding", Reason: "other"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.ErrorContains(t, err, "complete your profile")

	_, err = svc.Report(apptest.As("alice"), &relationship.ReportRequest{TargetUserID: "bob", EventID: "wedding", Reason: "spam"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = svc.Block(apptest.As("alice"), &relationship.BlockRequest{TargetUserID: "bob", EventID: "wedding"})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	assert.Equal(t, db.MatchActive, matchStatus(t, env, matchID))
	assert.Empty(t, env.Notifier.Sent(db.NotifyReport))
}

func TestListEventReports(t *testing.T) {
	_, svc := setup(t)

	_, err := svc.Report(apptest.As("alice"), &relationship.ReportRequest{TargetUserID: "carol", EventID: "wedding", Reason: "fake profile"})
	require.NoError(t, err)

	_, err = svc.ListEventReports(apptest.As("alice"), &relationship.ListEventReportsRequest{EventID: "wedding"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	resp, err := svc.ListEventReports(apptest.As(apptest.Organizer), &relationship.ListEventReportsRequest{EventID: "wedding"})
	require.NoError(t, err)
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "fake_profile", resp.Reports[0].Reason)
	assert.Equal(t, db.ReportPending, resp.Reports[0].Status)

	reportID := resp.Reports[0].ReportID
	_, err = svc.ReviewReport(apptest.As("alice"), &relationship.ReviewReportRequest{EventID: "wedding", ReportID: reportID})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	reviewed, err := svc.ReviewReport(apptest.As(apptest.Organizer), &relationship.ReviewReportRequest{EventID: "wedding", ReportID: reportID})
	require.NoError(t, err)
	assert.True(t, reviewed.Changed)

	reviewed, err = svc.ReviewReport(apptest.As(apptest.Organizer), &relationship.ReviewReportRequest{EventID: "wedding", ReportID: reportID})
	require.NoError(t, err)
	assert.False(t, reviewed.Changed)

	_, err = svc.ReviewReport(apptest.As(apptest.Organizer), &relationship.ReviewReportRequest{EventID: "wedding", ReportID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	resp, err = svc.ListEventReports(apptest.As(apptest.Organizer), &relationship.ListEventReportsRequest{EventID: "wedding"})
	require.NoError(t, err)
	assert.Equal(t, db.ReportReviewed, resp.Reports[0].Status)
}

type refusingTransitions struct{}

func (refusingTransitions) Block(context.Context, social.BlockInput) (social.Outcome, error) {
	return "", svcErr.ErrTransient
}

func (refusingTransitions) Unmatch(context.Context, social.UnmatchInput) (social.Outcome, error) {
	return "", svcErr.Unauthorized("You're not matched with this guest.")
}

func (refusingTransitions) Report(context.Context, social.ReportInput) (social.ReportResult, error) {
	return social.ReportResult{}, svcErr.ErrTransient
}

func TestBackendErrorsAreClassified(t *testing.T) {
	env, _ := setup(t)
	env.App.Transitions = refusingTransitions{}
	svc := relationship.NewService(env.App)

	_, err := svc.Block(apptest.As("alice"), &relationship.BlockRequest{TargetUserID: "bob"})
	assert.Equal(t, codes.Unavailable, status.Code(err))

	_, err = svc.Unmatch(apptest.As("alice"), &relationship.UnmatchRequest{TargetUserID: "bob", EventID: "wedding", Reason: "other"})
	st, _ := status.FromError(err)
	assert.Equal(t, codes.PermissionDenied, st.Code())
	assert.Equal(t, "You're not matched with this guest.", st.Message())
}
