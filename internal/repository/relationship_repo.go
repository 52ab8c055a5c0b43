package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/social"
	"github.com/oggyb/guestmatch/internal/utils/pagination"
)

// errAlreadyDone rolls a transaction back when the action was applied earlier.
var errAlreadyDone = errors.New("already done")

// RelationshipRepository is the embedded social.Transitions backend: every
// action is one gorm transaction whose check-and-set is backed by a unique
// index, so a racing duplicate lands on ErrDuplicatedKey instead of a second row.
type RelationshipRepository struct {
	db *gorm.DB
}

var _ social.Transitions = (*RelationshipRepository)(nil)

func NewRelationshipRepository(database *gorm.DB) *RelationshipRepository {
	return &RelationshipRepository{db: database}
}

// Block severs blocker and blocked in every event.
//
// Behavior:
//   - Existing block by the same blocker → AlreadyDone.
//   - The two must share an event or have matched somewhere → else Unauthorized.
//   - Every match of the pair, in any event and any status, becomes "blocked".
func (r *RelationshipRepository) Block(ctx context.Context, in social.BlockInput) (social.Outcome, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		done, err := exists(tx, &db.Block{}, "blocker_id = ? AND blocked_id = ?", in.BlockerID, in.BlockedID)
		if err != nil {
			return err
		}
		if done {
			return errAlreadyDone
		}

		low, high := social.OrderedPair(in.BlockerID, in.BlockedID)
		related, err := sharesEvent(tx, in.BlockerID, in.BlockedID)
		if err != nil {
			return err
		}
		if !related {
			if related, err = exists(tx, &db.Match{}, "user_a_id = ? AND user_b_id = ?", low, high); err != nil {
				return err
			}
		}
		if !related {
			return svcErr.Unauthorized("You can only block guests you've met through an event.")
		}

		block := db.Block{
			ID:        newID(),
			BlockerID: in.BlockerID,
			BlockedID: in.BlockedID,
			EventID:   in.EventID,
			MatchID:   in.MatchID,
			Reason:    in.Reason,
		}
		if err := tx.Create(&block).Error; err != nil {
			return err
		}

		return tx.Model(&db.Match{}).
			Where("user_a_id = ? AND user_b_id = ? AND status <> ?", low, high, db.MatchBlocked).
			Update("status", db.MatchBlocked).Error
	})
	return outcomeOf(err)
}

// Unmatch dissolves the pair's active match in in.EventID.
//
// Behavior:
//   - An Unmatch row for the pair and event already exists → AlreadyDone,
//     whichever side wrote it.
//   - No active match (or in.MatchID names a different one) → Unauthorized.
func (r *RelationshipRepository) Unmatch(ctx context.Context, in social.UnmatchInput) (social.Outcome, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		done, err := isUnmatched(tx, in.EventID, in.UnmatcherID, in.UnmatchedUserID)
		if err != nil {
			return err
		}
		if done {
			return errAlreadyDone
		}

		match, err := findActiveMatch(tx, in.EventID, in.UnmatcherID, in.UnmatchedUserID)
		if err != nil {
			return err
		}
		if match == nil || (in.MatchID != "" && in.MatchID != match.ID) {
			return svcErr.Unauthorized("You're not matched with this guest.")
		}

		return unmatchTx(tx, in.EventID, match, in.UnmatcherID, in.UnmatchedUserID, in.Reason, in.Description)
	})
	return outcomeOf(err)
}

// Report persists a report and always composes an Unmatch of the pair.
//
// Behavior:
//   - Same (reporter, reported, event) reported before → AlreadyDone.
//   - Both must attend the event, or have a match in it → else Unauthorized.
//   - in.MatchID, when given, must be the pair's match in that event.
//   - The Unmatch row is written with reason "reported" unless one exists;
//     an active match becomes "unmatched", a blocked one stays blocked.
//   - OrganizerID is returned so the caller can notify after commit.
func (r *RelationshipRepository) Report(ctx context.Context, in social.ReportInput) (social.ReportResult, error) {
	var res social.ReportResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		done, err := exists(tx, &db.Report{}, "reporter_id = ? AND reported_user_id = ? AND event_id = ?",
			in.ReporterID, in.ReportedUserID, in.EventID)
		if err != nil {
			return err
		}
		if done {
			return errAlreadyDone
		}

		var event db.Event
		if err := tx.Where("id = ?", in.EventID).Take(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return svcErr.NotFound("This event doesn't exist.")
			}
			return err
		}

		match, err := findMatch(tx, in.EventID, in.ReporterID, in.ReportedUserID)
		if err != nil {
			return err
		}
		if in.MatchID != "" && (match == nil || match.ID != in.MatchID) {
			return svcErr.NotFound("This match no longer exists.")
		}
		if match == nil {
			reporterIn, err := attendsEvent(tx, in.EventID, in.ReporterID)
			if err != nil {
				return err
			}
			reportedIn, err := attendsEvent(tx, in.EventID, in.ReportedUserID)
			if err != nil {
				return err
			}
			if !reporterIn || !reportedIn {
				return svcErr.Unauthorized("You can only report guests from your event.")
			}
		}

		report := db.Report{
			ID:             newID(),
			ReporterID:     in.ReporterID,
			ReportedUserID: in.ReportedUserID,
			EventID:        in.EventID,
			Reason:         in.Reason,
			CustomReason:   in.CustomReason,
			Status:         db.ReportPending,
		}
		if match != nil {
			report.MatchID = match.ID
		}
		if err := tx.Create(&report).Error; err != nil {
			return err
		}

		unmatched, err := isUnmatched(tx, in.EventID, in.ReporterID, in.ReportedUserID)
		if err != nil {
			return err
		}
		if !unmatched {
			if err := unmatchTx(tx, in.EventID, match, in.ReporterID, in.ReportedUserID, social.ReasonReported, ""); err != nil {
				return err
			}
		}

		res.ReportID = report.ID
		res.OrganizerID = event.OrganizerID
		return nil
	})

	outcome, err := outcomeOf(err)
	if err != nil {
		return social.ReportResult{}, err
	}
	res.Outcome = outcome
	if outcome == social.AlreadyDone {
		return social.ReportResult{Outcome: outcome}, nil
	}
	return res, nil
}

// ListEventReports returns reports filed in eventID, newest first.
func (r *RelationshipRepository) ListEventReports(
	ctx context.Context,
	eventID, paginationToken string,
	limit int,
) ([]db.Report, *string, error) {
	cursor, err := pagination.Decode(paginationToken)
	if err != nil {
		return nil, nil, svcErr.Validation(err.Error())
	}

	query := r.db.WithContext(ctx).Where("event_id = ?", eventID)
	if !cursor.Empty() {
		ts := cursor.Time()
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", ts, ts, cursor.ID)
	}

	var reports []db.Report
	if err := query.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&reports).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(reports) > limit {
		last := reports[limit-1]
		token, _ := pagination.Encode(pagination.At(last.ID, last.CreatedAt))
		nextToken = &token
		reports = reports[:limit]
	}
	return reports, nextToken, nil
}

// MarkReportReviewed moves a pending report of eventID to reviewed. It
// reports false when the report was already reviewed.
func (r *RelationshipRepository) MarkReportReviewed(ctx context.Context, eventID, reportID string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&db.Report{}).
		Where("id = ? AND event_id = ? AND status = ?", reportID, eventID, db.ReportPending).
		Update("status", db.ReportReviewed)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	found, err := exists(r.db.WithContext(ctx), &db.Report{}, "id = ? AND event_id = ?", reportID, eventID)
	if err != nil {
		return false, err
	}
	if !found {
		return false, svcErr.NotFound("This report doesn't exist.")
	}
	return false, nil
}

// unmatchTx writes the Unmatch row and hides an active match. match may be nil.
func unmatchTx(tx *gorm.DB, eventID string, match *db.Match, unmatcherID, unmatchedID, reason, description string) error {
	row := db.Unmatch{
		ID:              newID(),
		EventID:         eventID,
		UnmatcherID:     unmatcherID,
		UnmatchedUserID: unmatchedID,
		Reason:          reason,
		Description:     description,
	}
	row.PairLowID, row.PairHighID = social.OrderedPair(unmatcherID, unmatchedID)
	if match != nil {
		row.MatchID = match.ID
	}
	if err := tx.Create(&row).Error; err != nil {
		return err
	}
	if match == nil || match.Status != db.MatchActive {
		return nil
	}
	return tx.Model(&db.Match{}).
		Where("id = ? AND status = ?", match.ID, db.MatchActive).
		Update("status", db.MatchUnmatched).Error
}

func outcomeOf(err error) (social.Outcome, error) {
	switch {
	case err == nil:
		return social.Applied, nil
	case errors.Is(err, errAlreadyDone), errors.Is(err, gorm.ErrDuplicatedKey):
		return social.AlreadyDone, nil
	default:
		return "", err
	}
}
