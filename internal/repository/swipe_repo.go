package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/social"
	"github.com/oggyb/guestmatch/internal/utils/pagination"
)

// SwipeRepository provides data access methods for the Swipe model and the
// match resolution that follows a right swipe.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// SwipeResult describes what RecordSwipe changed.
type SwipeResult struct {
	// Changed is false for an idempotent re-swipe in the same direction.
	Changed bool
	// Matched is true when an active match exists after the swipe.
	Matched bool
	// MatchCreated is true only for the call that inserted the match row.
	MatchCreated bool
	MatchID      string
}

// RecordSwipe stores actor's decision on target within eventID.
//
// Behavior:
//   - Rejects with InvalidTarget if the pair is blocked (any event) or unmatched (this event).
//   - Same direction as the stored swipe → no write.
//   - Opposite direction → the row is overwritten (a "left" revokes a like).
//   - A "left" while the pair has an active match is refused; only Unmatch dissolves a match.
//   - After a right swipe, ResolveMatch runs in its own transaction so that
//     two guests swiping each other at the same moment still end up matched.
func (r *SwipeRepository) RecordSwipe(
	ctx context.Context,
	actorID, targetID, eventID, direction string,
) (SwipeResult, error) {
	var res SwipeResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		facts, err := pairFacts(tx, eventID, actorID, targetID)
		if err != nil {
			return err
		}
		if err := social.CheckSwipeAllowed(facts); err != nil {
			return err
		}

		match, err := findActiveMatch(tx, eventID, actorID, targetID)
		if err != nil {
			return err
		}
		if match != nil {
			res.Matched = true
			res.MatchID = match.ID
		}

		var existing db.Swipe
		err = tx.Where("actor_id = ? AND target_id = ? AND event_id = ?", actorID, targetID, eventID).
			Take(&existing).Error
		switch {
		case err == nil && existing.Direction == direction:
			return nil
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		if direction == db.DirectionLeft && match != nil {
			return svcErr.Conflict("You're matched with this guest. Unmatch instead.")
		}

		swipe := db.Swipe{
			ActorID:   actorID,
			TargetID:  targetID,
			EventID:   eventID,
			Direction: direction,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}, {Name: "event_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"direction", "updated_at"}),
		}).Create(&swipe).Error; err != nil {
			return err
		}
		res.Changed = true
		return nil
	})
	if err != nil {
		return SwipeResult{}, err
	}

	if direction == db.DirectionRight && !res.Matched {
		match, created, err := r.ResolveMatch(ctx, eventID, actorID, targetID)
		if err != nil {
			return res, err
		}
		if match != nil {
			res.Matched = true
			res.MatchID = match.ID
			res.MatchCreated = created
		}
	}
	return res, nil
}

// ResolveMatch creates the match for (a, b) in eventID when the stored facts
// call for one. The unique index on (event_id, user_a_id, user_b_id) keeps it
// to one row; created is true only for the caller whose insert landed.
func (r *SwipeRepository) ResolveMatch(ctx context.Context, eventID, a, b string) (*db.Match, bool, error) {
	var (
		match   *db.Match
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		facts, err := pairFacts(tx, eventID, a, b)
		if err != nil || !facts.Matched() {
			return err
		}

		low, high := social.OrderedPair(a, b)
		row := db.Match{ID: newID(), EventID: eventID, UserAID: low, UserBID: high, Status: db.MatchActive}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if result.Error != nil && !errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return result.Error
		}
		created = result.Error == nil && result.RowsAffected == 1

		match, err = findActiveMatch(tx, eventID, a, b)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if match == nil {
		created = false
	}
	return match, created, nil
}

// RetractSwipe deletes actor's right swipe ("unlike").
//
// Behavior:
//   - Refused while the pair has an active match; an orphaned match would
//     break the match-iff-mutual-like rule. Unmatch first.
//   - Nothing to retract → (false, nil).
func (r *SwipeRepository) RetractSwipe(ctx context.Context, actorID, targetID, eventID string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		match, err := findActiveMatch(tx, eventID, actorID, targetID)
		if err != nil {
			return err
		}
		if match != nil {
			return svcErr.Conflict("You're matched with this guest. Unmatch instead.")
		}

		result := tx.Where("actor_id = ? AND target_id = ? AND event_id = ? AND direction = ?",
			actorID, targetID, eventID, db.DirectionRight).
			Delete(&db.Swipe{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected > 0
		return nil
	})
	return deleted, err
}

// likersQuery selects right swipes on recipient in eventID, minus guests the
// recipient passed, guests blocked in either direction and guests unmatched
// from the recipient in this event.
func (r *SwipeRepository) likersQuery(ctx context.Context, recipientID, eventID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("swipes s").
		Where("s.target_id = ? AND s.event_id = ? AND s.direction = ?", recipientID, eventID, db.DirectionRight).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes s2
				WHERE s2.actor_id = ?
				  AND s2.target_id = s.actor_id
				  AND s2.event_id = s.event_id
				  AND s2.direction = ?
			)`, recipientID, db.DirectionLeft).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM blocks b
				WHERE (b.blocker_id = s.actor_id AND b.blocked_id = ?)
				   OR (b.blocker_id = ? AND b.blocked_id = s.actor_id)
			)`, recipientID, recipientID).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM unmatches u
				WHERE u.event_id = s.event_id
				  AND ((u.pair_low_id = s.actor_id AND u.pair_high_id = ?)
				    OR (u.pair_low_id = ? AND u.pair_high_id = s.actor_id))
			)`, recipientID, recipientID)
}

// GetLikers returns guests who liked recipient in eventID.
//
// Behavior:
//   - newOnly drops guests the recipient already liked back.
//   - Ordered by updated_at DESC, actor_id DESC.
//   - Supports cursor-based pagination via paginationToken.
func (r *SwipeRepository) GetLikers(
	ctx context.Context,
	recipientID, eventID string,
	newOnly bool,
	paginationToken string,
	limit int,
) ([]db.Swipe, *string, error) {
	var swipes []db.Swipe

	cursor, err := pagination.Decode(paginationToken)
	if err != nil {
		return nil, nil, svcErr.Validation(err.Error())
	}

	query := r.likersQuery(ctx, recipientID, eventID)
	if newOnly {
		query = query.Where(`
			NOT EXISTS (
				SELECT 1 FROM swipes s3
				WHERE s3.actor_id = ?
				  AND s3.target_id = s.actor_id
				  AND s3.event_id = s.event_id
				  AND s3.direction = ?
			)`, recipientID, db.DirectionRight)
	}

	// apply cursor
	if !cursor.Empty() {
		ts := cursor.Time()
		query = query.Where(
			"(s.updated_at < ? OR (s.updated_at = ? AND s.actor_id < ?))",
			ts, ts, cursor.ID,
		)
	}

	if err := query.
		Order("s.updated_at DESC, s.actor_id DESC").
		Limit(limit + 1).
		Find(&swipes).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(swipes) > limit {
		last := swipes[limit-1]
		token, _ := pagination.Encode(pagination.At(last.ActorID, last.UpdatedAt))
		nextToken = &token
		swipes = swipes[:limit]
	}

	return swipes, nextToken, nil
}

// CountLikers returns how many guests liked recipient in eventID, with the
// same exclusions as GetLikers. Used behind the Redis counter.
func (r *SwipeRepository) CountLikers(ctx context.Context, recipientID, eventID string) (int64, error) {
	var count int64
	if err := r.likersQuery(ctx, recipientID, eventID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
