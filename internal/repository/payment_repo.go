package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(database *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: database}
}

// FindBySession returns the recorded transaction, or nil.
func (r *PaymentRepository) FindBySession(ctx context.Context, sessionID string) (*db.PaymentTransaction, error) {
	var p db.PaymentTransaction
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RecordPaid stores a paid checkout session and applies its effects in one
// transaction: premium role for the payer, draft event activated. An event
// that is already active (or closed) is left as is.
//
// alreadyProcessed is true when the session was recorded before, including by
// a concurrent verification that won the insert.
func (r *PaymentRepository) RecordPaid(ctx context.Context, p db.PaymentTransaction) (alreadyProcessed bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		done, err := exists(tx, &db.PaymentTransaction{}, "session_id = ?", p.SessionID)
		if err != nil {
			return err
		}
		if done {
			return errAlreadyDone
		}

		var event db.Event
		if err := tx.Where("id = ?", p.EventID).Take(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return svcErr.NotFound("This event doesn't exist.")
			}
			return err
		}

		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		if err := grantRoleTx(tx, p.UserID, db.RolePremium); err != nil {
			return err
		}
		if event.Status == db.EventDraft {
			return setEventStatusTx(tx, event.ID, db.EventActive)
		}
		return nil
	})

	if errors.Is(err, errAlreadyDone) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true, nil
	}
	return false, err
}
