package membership

import (
	"context"
	"errors"

	"github.com/oggyb/guestmatch/internal/app"
	"github.com/oggyb/guestmatch/internal/auth"
	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/repository"
)

// Eligibility reasons returned by CheckEligibility.
const (
	ReasonEventNotFound     = "event_not_found"
	ReasonEventNotActive    = "event_not_active"
	ReasonNotAttendee       = "not_attendee"
	ReasonProfileIncomplete = "profile_incomplete"
)

type EventRequest struct {
	EventID string `json:"event_id"`
}

type JoinEventRequest struct {
	InviteCode string `json:"invite_code"`
}

type JoinEventResponse struct {
	EventID string `json:"event_id"`
	// Joined is false when the caller was already a guest.
	Joined bool `json:"joined"`
}

type EligibilityResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

type HasRoleRequest struct {
	Role string `json:"role"`
}

type HasRoleResponse struct {
	HasRole bool `json:"has_role"`
}

type CloseEventResponse struct {
	Status string `json:"status"`
}

type RegisterDeviceRequest struct {
	Token string `json:"token"`
}

type Empty struct{}

// Service implements the Membership gRPC API: joining events, eligibility
// and role lookups, and organizer event administration.
type Service struct {
	appCtx *app.AppContext
	repo   *repository.MembershipRepository
	gate   *Gate
}

func NewService(appCtx *app.AppContext) *Service {
	repo := repository.NewMembershipRepository(appCtx.DB)
	return &Service{
		appCtx: appCtx,
		repo:   repo,
		gate:   NewGate(repo),
	}
}

// JoinEvent resolves the invite code and adds the caller as a guest.
// Joining twice succeeds with Joined=false.
func (s *Service) JoinEvent(ctx context.Context, req *JoinEventRequest) (*JoinEventResponse, error) {
	userID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	eventID, err := s.appCtx.Directory.ValidateInviteCode(ctx, req.InviteCode)
	if err != nil {
		return nil, s.fail("ValidateInviteCode", err)
	}

	joined, err := s.repo.AddAttendee(ctx, eventID, userID)
	if err != nil {
		return nil, s.fail("AddAttendee", err)
	}
	s.appCtx.Logger.Debug("JoinEvent", "event_id", eventID, "joined", joined)

	return &JoinEventResponse{EventID: eventID, Joined: joined}, nil
}

// CheckEligibility reports the gate result instead of failing with it, so
// the client can route the guest to the right screen.
func (s *Service) CheckEligibility(ctx context.Context, req *EventRequest) (*EligibilityResponse, error) {
	userID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	_, err = s.gate.Check(ctx, userID, req.EventID)
	if err == nil {
		return &EligibilityResponse{Eligible: true}, nil
	}

	reason := ""
	switch {
	case errors.Is(err, svcErr.ErrNotFound):
		reason = ReasonEventNotFound
	case errors.Is(err, svcErr.ErrEventNotActive):
		reason = ReasonEventNotActive
	case errors.Is(err, svcErr.ErrUnauthorized):
		reason = ReasonNotAttendee
	case errors.Is(err, svcErr.ErrProfileIncomplete):
		reason = ReasonProfileIncomplete
	default:
		return nil, s.fail("CheckEligibility", err)
	}
	return &EligibilityResponse{Reason: reason, Message: svcErr.UserMessage(err)}, nil
}

func (s *Service) HasRole(ctx context.Context, req *HasRoleRequest) (*HasRoleResponse, error) {
	userID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if req.Role == "" {
		return nil, svcErr.InvalidArgument("role is required")
	}

	ok, err := s.appCtx.Directory.HasRole(ctx, userID, req.Role)
	if err != nil {
		return nil, s.fail("HasRole", err)
	}
	return &HasRoleResponse{HasRole: ok}, nil
}

// CloseEvent makes an event read-only. Only its organizer or an admin may.
func (s *Service) CloseEvent(ctx context.Context, req *EventRequest) (*CloseEventResponse, error) {
	userID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	if err := s.RequireOrganizer(ctx, userID, req.EventID); err != nil {
		return nil, s.fail("CloseEvent", err)
	}
	if err := s.repo.SetEventStatus(ctx, req.EventID, db.EventClosed); err != nil {
		return nil, s.fail("SetEventStatus", err)
	}
	s.appCtx.Logger.Info("event closed", "event_id", req.EventID)

	return &CloseEventResponse{Status: db.EventClosed}, nil
}

// RegisterDevice stores a push token for the caller.
func (s *Service) RegisterDevice(ctx context.Context, req *RegisterDeviceRequest) (*Empty, error) {
	userID, err := auth.UserFrom(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if err := s.repo.AddDeviceToken(ctx, userID, req.Token); err != nil {
		return nil, s.fail("AddDeviceToken", err)
	}
	return &Empty{}, nil
}

// RequireOrganizer passes for the event's organizer and for admins.
func (s *Service) RequireOrganizer(ctx context.Context, userID, eventID string) error {
	return RequireOrganizer(ctx, s.repo, s.appCtx.Directory, userID, eventID)
}

// fail logs errors outside the taxonomy before mapping them.
func (s *Service) fail(op string, err error) error {
	if !svcErr.IsKnown(err) {
		s.appCtx.Logger.Error(op+" failed", "err", err)
	}
	return svcErr.Map(err)
}
