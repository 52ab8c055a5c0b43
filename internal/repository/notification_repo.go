package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/notify"
)

// NotificationRepository is the table-backed notification ledger and the
// recipient directory used by the dispatcher.
type NotificationRepository struct {
	db *gorm.DB
}

var (
	_ notify.Ledger     = (*NotificationRepository)(nil)
	_ notify.Recipients = (*NotificationRepository)(nil)
)

func NewNotificationRepository(database *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: database}
}

// Reserve appends a ledger row unless one for the same (user, event, kind)
// was written in (at-window, at]. A zero window always records.
func (r *NotificationRepository) Reserve(
	ctx context.Context,
	userID, eventID, kind string,
	at time.Time,
	window time.Duration,
) (bool, error) {
	ok := true
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if window > 0 {
			recent, err := exists(tx, &db.NotificationLog{},
				"user_id = ? AND event_id = ? AND kind = ? AND sent_at > ? AND sent_at <= ?",
				userID, eventID, kind, at.Add(-window), at)
			if err != nil {
				return err
			}
			if recent {
				ok = false
				return nil
			}
		}
		return tx.Create(&db.NotificationLog{UserID: userID, EventID: eventID, Kind: kind, SentAt: at}).Error
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Recipient loads contact details, preferences and device tokens. A user
// without a profile (an organizer, typically) gets email and push on and
// like/match notifications off.
func (r *NotificationRepository) Recipient(ctx context.Context, userID, eventID string) (*notify.Recipient, error) {
	tx := r.db.WithContext(ctx)

	var user db.User
	err := tx.Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("unknown recipient")
	}
	if err != nil {
		return nil, err
	}
	rec := &notify.Recipient{UserID: user.ID, Email: user.Email, EmailEnabled: true, PushEnabled: true}

	var profile db.Profile
	err = tx.Where("user_id = ?", userID).Take(&profile).Error
	switch {
	case err == nil:
		rec.Name = profile.Name
		rec.NotifyLikes = profile.NotifyLikes
		rec.NotifyMatches = profile.NotifyMatches
		rec.EmailEnabled = profile.EmailEnabled
		rec.PushEnabled = profile.PushEnabled
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if eventID != "" {
		var event db.Event
		err = tx.Select("name").Where("id = ?", eventID).Take(&event).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		rec.EventName = event.Name
	}

	if err := tx.Model(&db.DeviceToken{}).Where("user_id = ?", userID).
		Order("created_at").Pluck("token", &rec.DeviceTokens).Error; err != nil {
		return nil, err
	}
	return rec, nil
}
