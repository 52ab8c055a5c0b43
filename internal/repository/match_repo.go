package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
)

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// GetByID returns the match or a NotFound error.
func (r *MatchRepository) GetByID(ctx context.Context, matchID string) (*db.Match, error) {
	var m db.Match
	err := r.db.WithContext(ctx).Where("id = ?", matchID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.NotFound("This match no longer exists.")
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListActiveForUser returns userID's active matches in eventID, newest first.
// Pairs with a block in either direction are dropped even if the match row
// was written before the block.
func (r *MatchRepository) ListActiveForUser(ctx context.Context, eventID, userID string) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Table("matches m").
		Where("m.event_id = ? AND m.status = ?", eventID, db.MatchActive).
		Where("(m.user_a_id = ? OR m.user_b_id = ?)", userID, userID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM blocks b
				WHERE (b.blocker_id = m.user_a_id AND b.blocked_id = m.user_b_id)
				   OR (b.blocker_id = m.user_b_id AND b.blocked_id = m.user_a_id)
			)`).
		Order("m.created_at DESC, m.id DESC").
		Find(&matches).Error
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// ChatAccess loads the match and confirms userID may read or write its chat:
// a participant, match active, no block between the two.
func (r *MatchRepository) ChatAccess(ctx context.Context, matchID, userID string) (*db.Match, error) {
	m, err := r.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !m.Has(userID) || m.Status != db.MatchActive {
		return nil, svcErr.Unauthorized("This conversation is no longer available.")
	}
	blocked, err := isBlocked(r.db.WithContext(ctx), m.UserAID, m.UserBID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, svcErr.Unauthorized("This conversation is no longer available.")
	}
	return m, nil
}
