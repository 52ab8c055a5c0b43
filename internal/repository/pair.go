package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/guestmatch/internal/db"
	"github.com/oggyb/guestmatch/internal/social"
)

func newID() string { return uuid.NewString() }

// exists runs a COUNT with the given condition on model.
func exists(tx *gorm.DB, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := tx.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// isBlocked checks for a block in either direction, in any event.
func isBlocked(tx *gorm.DB, a, b string) (bool, error) {
	return exists(tx, &db.Block{},
		"(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)",
		a, b, b, a)
}

func isUnmatched(tx *gorm.DB, eventID, a, b string) (bool, error) {
	low, high := social.OrderedPair(a, b)
	return exists(tx, &db.Unmatch{},
		"event_id = ? AND pair_low_id = ? AND pair_high_id = ?", eventID, low, high)
}

func hasSwipedRight(tx *gorm.DB, eventID, actorID, targetID string) (bool, error) {
	return exists(tx, &db.Swipe{},
		"actor_id = ? AND target_id = ? AND event_id = ? AND direction = ?",
		actorID, targetID, eventID, db.DirectionRight)
}

// pairFacts loads everything social.Resolve needs for (a, b) in eventID.
func pairFacts(tx *gorm.DB, eventID, a, b string) (social.PairFacts, error) {
	var f social.PairFacts
	var err error
	if f.Blocked, err = isBlocked(tx, a, b); err != nil {
		return f, err
	}
	if f.Unmatched, err = isUnmatched(tx, eventID, a, b); err != nil {
		return f, err
	}
	if f.ForwardRight, err = hasSwipedRight(tx, eventID, a, b); err != nil {
		return f, err
	}
	if f.ReverseRight, err = hasSwipedRight(tx, eventID, b, a); err != nil {
		return f, err
	}
	return f, nil
}

// findMatch returns the pair's match row in eventID in any status, or nil.
func findMatch(tx *gorm.DB, eventID, a, b string) (*db.Match, error) {
	low, high := social.OrderedPair(a, b)
	var m db.Match
	err := tx.Where("event_id = ? AND user_a_id = ? AND user_b_id = ?", eventID, low, high).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func findActiveMatch(tx *gorm.DB, eventID, a, b string) (*db.Match, error) {
	m, err := findMatch(tx, eventID, a, b)
	if err != nil || m == nil || m.Status != db.MatchActive {
		return nil, err
	}
	return m, nil
}

// sharesEvent reports whether both users attend at least one common event.
func sharesEvent(tx *gorm.DB, a, b string) (bool, error) {
	sub := tx.Model(&db.EventAttendee{}).Select("event_id").Where("user_id = ?", b)
	return exists(tx, &db.EventAttendee{}, "user_id = ? AND event_id IN (?)", a, sub)
}

func attendsEvent(tx *gorm.DB, eventID, userID string) (bool, error) {
	return exists(tx, &db.EventAttendee{}, "event_id = ? AND user_id = ?", eventID, userID)
}
