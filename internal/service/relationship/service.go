package relationship

import (
	"context"

	"github.com/oggyb/guestmatch/internal/app"
	"github.com/oggyb/guestmatch/internal/auth"
	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/logger"
	"github.com/oggyb/guestmatch/internal/repository"
	"github.com/oggyb/guestmatch/internal/service/membership"
	"github.com/oggyb/guestmatch/internal/social"
)

const reportsPageSize = 50

// User-facing confirmations per action and outcome.
var messages = map[string]map[social.Outcome]string{
	social.ActionBlock: {
		social.Applied:     "Blocked. You won't see each other at any event.",
		social.AlreadyDone: "You've already blocked this guest.",
	},
	social.ActionUnmatch: {
		social.Applied:     "You've unmatched.",
		social.AlreadyDone: "You've already unmatched this guest.",
	},
	social.ActionReport: {
		social.Applied:     "Thanks for letting us know. The organizer will review your report.",
		social.AlreadyDone: "You've already reported this guest.",
	},
}

type BlockRequest struct {
	TargetUserID string `json:"target_user_id"`
	EventID      string `json:"event_id,omitempty"`
	MatchID      string `json:"match_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

type UnmatchRequest struct {
	TargetUserID string `json:"target_user_id"`
	EventID      string `json:"event_id"`
	MatchID      string `json:"match_id,omitempty"`
	Reason       string `json:"reason"`
	Description  string `json:"description,omitempty"`
}

type ReportRequest struct {
	TargetUserID string `json:"target_user_id"`
	EventID      string `json:"event_id"`
	MatchID      string `json:"match_id,omitempty"`
	Reason       string `json:"reason"`
	CustomReason string `json:"custom_reason,omitempty"`
}

// ActionResponse carries the outcome and the text to show the guest.
type ActionResponse struct {
	Outcome  social.Outcome `json:"outcome"`
	Message  string         `json:"message"`
	ReportID string         `json:"report_id,omitempty"`
}

type ListEventReportsRequest struct {
	EventID         string `json:"event_id"`
	PaginationToken string `json:"pagination_token,omitempty"`
}

type ReportView struct {
	ReportID       string `json:"report_id"`
	ReporterID     string `json:"reporter_id"`
	ReportedUserID string `json:"reported_user_id"`
	MatchID        string `json:"match_id,omitempty"`
	Reason         string `json:"reason"`
	CustomReason   string `json:"custom_reason,omitempty"`
	Status         string `json:"status"`
	UnixTimestamp  uint64 `json:"unix_timestamp"`
}

type ListEventReportsResponse struct {
	Reports             []ReportView `json:"reports"`
	NextPaginationToken *string      `json:"next_pagination_token,omitempty"`
}

type ReviewReportRequest struct {
	EventID  string `json:"event_id"`
	ReportID string `json:"report_id"`
}

type ReviewReportResponse struct {
	ReportID string `json:"report_id"`
	Status   string `json:"status"`
	Changed  bool   `json:"changed"`
}

// Service implements the Relationship gRPC API on top of social.Transitions,
// whichever backend it is.
type Service struct {
	appCtx      *app.AppContext
	transitions social.Transitions
	memberRepo  *repository.MembershipRepository
	reportRepo  *repository.RelationshipRepository
	gate        *membership.Gate
}

func NewService(appCtx *app.AppContext) *Service {
	memberRepo := repository.NewMembershipRepository(appCtx.DB)
	return &Service{
		appCtx:      appCtx,
		transitions: appCtx.Transitions,
		memberRepo:  memberRepo,
		reportRepo:  repository.NewRelationshipRepository(appCtx.DB),
		gate:        membership.NewGate(memberRepo),
	}
}

// Block severs the caller and the target in every event.
func (s *Service) Block(ctx context.Context, req *BlockRequest) (*ActionResponse, error) {
	actorID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	in := social.BlockInput{
		BlockerID: actorID,
		BlockedID: req.TargetUserID,
		EventID:   req.EventID,
		MatchID:   req.MatchID,
		Reason:    req.Reason,
	}
	if err := in.Normalize(); err != nil {
		return nil, svcErr.Map(err)
	}
	// a closed event still allows blocking
	if in.EventID != "" {
		if _, err := s.gate.CheckMember(ctx, actorID, in.EventID); err != nil {
			return nil, s.fail("Block", err)
		}
	}

	var outcome social.Outcome
	err = s.guarded(ctx, social.ActionBlock, actorID, in.BlockedID, in.EventID, func() (err error) {
		outcome, err = s.transitions.Block(ctx, in)
		return err
	})
	if err != nil {
		return nil, s.fail("Block", err)
	}

	if err := s.appCtx.RedisCache.InvalidateUserLikeCounts(ctx, actorID, in.BlockedID); err != nil {
		s.appCtx.Logger.Warn("like count invalidation failed", "err", err)
	}
	s.appCtx.Logger.Info("block", "outcome", outcome, "target", logger.MaskID(in.BlockedID))
	return respond(social.ActionBlock, outcome), nil
}

// Unmatch dissolves the caller's match with the target in one event.
func (s *Service) Unmatch(ctx context.Context, req *UnmatchRequest) (*ActionResponse, error) {
	actorID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	in := social.UnmatchInput{
		UnmatcherID:     actorID,
		UnmatchedUserID: req.TargetUserID,
		EventID:         req.EventID,
		MatchID:         req.MatchID,
		Reason:          req.Reason,
		Description:     req.Description,
	}
	if err := in.Normalize(); err != nil {
		return nil, svcErr.Map(err)
	}
	if _, err := s.gate.Check(ctx, actorID, in.EventID); err != nil {
		return nil, s.fail("Unmatch", err)
	}

	var outcome social.Outcome
	err = s.guarded(ctx, social.ActionUnmatch, actorID, in.UnmatchedUserID, in.EventID, func() (err error) {
		outcome, err = s.transitions.Unmatch(ctx, in)
		return err
	})
	if err != nil {
		return nil, s.fail("Unmatch", err)
	}

	s.invalidate(ctx, in.EventID, actorID, in.UnmatchedUserID)
	return respond(social.ActionUnmatch, outcome), nil
}

// Report files a report, unmatches the pair and tells the organizer.
func (s *Service) Report(ctx context.Context, req *ReportRequest) (*ActionResponse, error) {
	actorID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	in := social.ReportInput{
		ReporterID:     actorID,
		ReportedUserID: req.TargetUserID,
		EventID:        req.EventID,
		MatchID:        req.MatchID,
		Reason:         req.Reason,
		CustomReason:   req.CustomReason,
	}
	if err := in.Normalize(); err != nil {
		return nil, svcErr.Map(err)
	}
	if _, err := s.gate.Check(ctx, actorID, in.EventID); err != nil {
		return nil, s.fail("Report", err)
	}

	var res social.ReportResult
	err = s.guarded(ctx, social.ActionReport, actorID, in.ReportedUserID, in.EventID, func() (err error) {
		res, err = s.transitions.Report(ctx, in)
		return err
	})
	if err != nil {
		return nil, s.fail("Report", err)
	}

	s.invalidate(ctx, in.EventID, actorID, in.ReportedUserID)
	if res.Outcome == social.Applied && res.OrganizerID != "" {
		s.appCtx.Notifier.Go(db.NotifyReport, res.OrganizerID, in.EventID, map[string]string{
			"report_id": res.ReportID,
			"reason":    in.Reason,
		})
	}

	resp := respond(social.ActionReport, res.Outcome)
	resp.ReportID = res.ReportID
	return resp, nil
}

// ListEventReports is the organizer's review queue.
func (s *Service) ListEventReports(ctx context.Context, req *ListEventReportsRequest) (*ListEventReportsResponse, error) {
	userID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if err := membership.RequireOrganizer(ctx, s.memberRepo, s.appCtx.Directory, userID, req.EventID); err != nil {
		return nil, s.fail("ListEventReports", err)
	}

	reports, next, err := s.reportRepo.ListEventReports(ctx, req.EventID, req.PaginationToken, reportsPageSize)
	if err != nil {
		return nil, s.fail("ListEventReports", err)
	}

	resp := &ListEventReportsResponse{Reports: []ReportView{}, NextPaginationToken: next}
	for _, r := range reports {
		resp.Reports = append(resp.Reports, ReportView{
			ReportID:       r.ID,
			ReporterID:     r.ReporterID,
			ReportedUserID: r.ReportedUserID,
			MatchID:        r.MatchID,
			Reason:         r.Reason,
			CustomReason:   r.CustomReason,
			Status:         r.Status,
			UnixTimestamp:  uint64(r.CreatedAt.UnixMilli()),
		})
	}
	return resp, nil
}

// ReviewReport lets the organizer mark a report as handled. Reviewing twice
// is a no-op.
func (s *Service) ReviewReport(ctx context.Context, req *ReviewReportRequest) (*ReviewReportResponse, error) {
	userID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if req.ReportID == "" {
		return nil, svcErr.InvalidArgument("report_id is required")
	}
	if err := membership.RequireOrganizer(ctx, s.memberRepo, s.appCtx.Directory, userID, req.EventID); err != nil {
		return nil, s.fail("ReviewReport", err)
	}

	changed, err := s.reportRepo.MarkReportReviewed(ctx, req.EventID, req.ReportID)
	if err != nil {
		return nil, s.fail("ReviewReport", err)
	}
	return &ReviewReportResponse{ReportID: req.ReportID, Status: db.ReportReviewed, Changed: changed}, nil
}

// guarded runs fn while holding the re-entrancy guard for one action. If
// Redis is unreachable the action runs unguarded; the unique constraints
// still hold.
func (s *Service) guarded(ctx context.Context, action, actorID, targetID, eventID string, fn func() error) error {
	release, ok, err := s.appCtx.RedisCache.AcquireGuard(ctx, action, actorID, targetID, eventID, s.appCtx.Config.Transitions.GuardTTL)
	if err != nil {
		s.appCtx.Logger.Warn("action guard unavailable", "action", action, "err", err)
		return fn()
	}
	if !ok {
		return svcErr.Conflict("This action is already in progress.")
	}
	defer release()
	return fn()
}

func (s *Service) invalidate(ctx context.Context, eventID string, userIDs ...string) {
	if err := s.appCtx.RedisCache.InvalidateLikeCounts(ctx, eventID, userIDs...); err != nil {
		s.appCtx.Logger.Warn("like count invalidation failed", "err", err)
	}
}

func respond(action string, outcome social.Outcome) *ActionResponse {
	return &ActionResponse{Outcome: outcome, Message: messages[action][outcome]}
}

// fail logs errors outside the taxonomy before mapping them.
func (s *Service) fail(op string, err error) error {
	if !svcErr.IsKnown(err) {
		s.appCtx.Logger.Error(op+" failed", "err", err)
	}
	return svcErr.Map(err)
}
