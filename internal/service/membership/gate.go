package membership

import (
	"context"

	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/repository"
	"github.com/oggyb/guestmatch/internal/social"
)

// Gate decides whether a user may act within an event.
type Gate struct {
	repo *repository.MembershipRepository
}

func NewGate(repo *repository.MembershipRepository) *Gate {
	return &Gate{repo: repo}
}

// Check runs, in order: event exists, event active, user attends, profile
// complete. The first failing rule decides the error. The event is returned
// so callers don't load it twice.
func (g *Gate) Check(ctx context.Context, userID, eventID string) (*db.Event, error) {
	event, err := g.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status != db.EventActive {
		return nil, svcErr.ErrEventNotActive
	}
	if err := g.member(ctx, userID, eventID); err != nil {
		return nil, err
	}
	return event, nil
}

// CheckMember is Check without the active-event rule, for actions that stay
// open after the event closes (blocking, reading a chat).
func (g *Gate) CheckMember(ctx context.Context, userID, eventID string) (*db.Event, error) {
	event, err := g.repo.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := g.member(ctx, userID, eventID); err != nil {
		return nil, err
	}
	return event, nil
}

func (g *Gate) member(ctx context.Context, userID, eventID string) error {
	attending, err := g.repo.IsAttendee(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if !attending {
		return svcErr.Unauthorized("You're not a guest of this event.")
	}

	profile, err := g.repo.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if profile == nil || !profile.Complete() {
		return svcErr.ErrProfileIncomplete
	}
	return nil
}

// CheckTarget confirms the other side of an interaction attends the event.
func (g *Gate) CheckTarget(ctx context.Context, targetID, eventID string) error {
	attending, err := g.repo.IsAttendee(ctx, eventID, targetID)
	if err != nil {
		return err
	}
	if !attending {
		return svcErr.InvalidTarget("This guest isn't part of this event.")
	}
	return nil
}

// RequireOrganizer passes for the event's organizer and for admins.
func RequireOrganizer(
	ctx context.Context,
	repo *repository.MembershipRepository,
	dir social.Directory,
	userID, eventID string,
) error {
	event, err := repo.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if event.OrganizerID == userID {
		return nil
	}
	admin, err := dir.HasRole(ctx, userID, db.RoleAdmin)
	if err != nil {
		return err
	}
	if !admin {
		return svcErr.Unauthorized("Only the event organizer can do that.")
	}
	return nil
}
