package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/guestmatch/internal/db"
	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/repository"
)

func TestReserve_Window(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewNotificationRepository(dbase)

	t0 := time.Date(2026, 6, 20, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	ok, err := repo.Reserve(ctx, "u", "e1", db.NotifyLike, t0, day)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Reserve(ctx, "u", "e1", db.NotifyLike, t0.Add(day-time.Second), day)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Reserve(ctx, "u", "e1", db.NotifyMatch, t0.Add(time.Minute), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Reserve(ctx, "u", "e1", db.NotifyLike, t0.Add(day), day)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, int64(2), countRows(t, dbase, &db.NotificationLog{}, "kind = ?", db.NotifyLike))
}

func TestRecipient(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	seedEvent(t, dbase, "e1", "u")
	require.NoError(t, dbase.Create(&db.DeviceToken{UserID: "u", Token: "tok-1"}).Error)
	require.NoError(t, dbase.Create(&db.User{ID: "org", Email: "org@example.com"}).Error)
	repo := repository.NewNotificationRepository(dbase)

	r, err := repo.Recipient(ctx, "u", "e1")
	require.NoError(t, err)
	assert.Equal(t, "u@example.com", r.Email)
	assert.Equal(t, "Wedding e1", r.EventName)
	assert.True(t, r.NotifyLikes)
	assert.Equal(t, []string{"tok-1"}, r.DeviceTokens)

	org, err := repo.Recipient(ctx, "org", "e1")
	require.NoError(t, err)
	assert.True(t, org.EmailEnabled)
	assert.False(t, org.NotifyLikes)
	assert.True(t, org.Wants(db.NotifyReport))

	_, err = repo.Recipient(ctx, "ghost", "")
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}
