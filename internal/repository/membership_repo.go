package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/social"
)

// MembershipRepository covers events, attendance, profiles and roles.
// It is also the embedded social.Directory.
type MembershipRepository struct {
	db *gorm.DB
}

var _ social.Directory = (*MembershipRepository)(nil)

func NewMembershipRepository(database *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: database}
}

// GetEvent returns the event or a NotFound error.
func (r *MembershipRepository) GetEvent(ctx context.Context, eventID string) (*db.Event, error) {
	var e db.Event
	err := r.db.WithContext(ctx).Where("id = ?", eventID).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("This event doesn't exist.")
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetProfile returns the user's profile, or nil if none was created yet.
func (r *MembershipRepository) GetProfile(ctx context.Context, userID string) (*db.Profile, error) {
	var p db.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *MembershipRepository) IsAttendee(ctx context.Context, eventID, userID string) (bool, error) {
	return attendsEvent(r.db.WithContext(ctx), eventID, userID)
}

// AddAttendee is idempotent; added is false when the user was already in.
func (r *MembershipRepository) AddAttendee(ctx context.Context, eventID, userID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.EventAttendee{EventID: eventID, UserID: userID})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ValidateInviteCode resolves an invite code to its event. Closed events
// no longer accept guests.
func (r *MembershipRepository) ValidateInviteCode(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", svcErr.Validation("invite code is required")
	}
	var e db.Event
	err := r.db.WithContext(ctx).Where("invite_code = ?", code).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", svcErr.NotFound("That invite code isn't valid.")
	}
	if err != nil {
		return "", err
	}
	if e.Status == db.EventClosed {
		return "", svcErr.ErrEventNotActive
	}
	return e.ID, nil
}

func (r *MembershipRepository) HasRole(ctx context.Context, userID, role string) (bool, error) {
	return exists(r.db.WithContext(ctx), &db.UserRole{}, "user_id = ? AND role = ?", userID, role)
}

// GrantRole is idempotent.
func (r *MembershipRepository) GrantRole(ctx context.Context, userID, role string) error {
	return grantRoleTx(r.db.WithContext(ctx), userID, role)
}

// SetEventStatus moves an event along draft -> active -> closed.
// Setting the current status again is a no-op.
func (r *MembershipRepository) SetEventStatus(ctx context.Context, eventID, status string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return setEventStatusTx(tx, eventID, status)
	})
}

// AddDeviceToken registers a push target for the user. Re-registering is a no-op.
func (r *MembershipRepository) AddDeviceToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return svcErr.Validation("device token is required")
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.DeviceToken{UserID: userID, Token: token}).Error
}

func grantRoleTx(tx *gorm.DB, userID, role string) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.UserRole{UserID: userID, Role: role}).Error
}

func setEventStatusTx(tx *gorm.DB, eventID, status string) error {
	var e db.Event
	err := tx.Where("id = ?", eventID).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return svcErr.NotFound("This event doesn't exist.")
	}
	if err != nil {
		return err
	}
	if e.Status == status {
		return nil
	}
	if !db.CanTransition(e.Status, status) {
		return svcErr.Conflict("This event can't move from " + e.Status + " to " + status + ".")
	}
	return tx.Model(&db.Event{}).Where("id = ? AND status = ?", eventID, e.Status).
		Update("status", status).Error
}
