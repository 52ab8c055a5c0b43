package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/utils/pagination"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

func (r *MessageRepository) Create(ctx context.Context, matchID, senderID, body string) (*db.Message, error) {
	m := db.Message{ID: newID(), MatchID: matchID, SenderID: senderID, Body: body}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns a match's messages newest first, paginated by cursor.
func (r *MessageRepository) List(
	ctx context.Context,
	matchID, paginationToken string,
	limit int,
) ([]db.Message, *string, error) {
	cursor, err := pagination.Decode(paginationToken)
	if err != nil {
		return nil, nil, svcErr.Validation(err.Error())
	}

	query := r.db.WithContext(ctx).Where("match_id = ?", matchID)
	if !cursor.Empty() {
		ts := cursor.Time()
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", ts, ts, cursor.ID)
	}

	var messages []db.Message
	if err := query.Order("created_at DESC, id DESC").Limit(limit + 1).Find(&messages).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(messages) > limit {
		last := messages[limit-1]
		token, _ := pagination.Encode(pagination.At(last.ID, last.CreatedAt))
		nextToken = &token
		messages = messages[:limit]
	}
	return messages, nextToken, nil
}
