package repository_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/guestmatch/internal/db"
)

// setup in-memory DB
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	// every connection to :memory: is its own database
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(database))
	return database
}

// seedEvent creates an active event with organizer "org" and the given attendees,
// each with a complete profile.
func seedEvent(t *testing.T, database *gorm.DB, eventID string, attendees ...string) {
	t.Helper()
	require.NoError(t, database.Create(&db.Event{
		ID:          eventID,
		Name:        "Wedding " + eventID,
		OrganizerID: "org",
		Status:      db.EventActive,
		InviteCode:  "code-" + eventID,
	}).Error)
	for _, u := range attendees {
		seedProfile(t, database, u)
		require.NoError(t, database.Create(&db.EventAttendee{EventID: eventID, UserID: u}).Error)
	}
}

func seedProfile(t *testing.T, database *gorm.DB, userID string) {
	t.Helper()
	var count int64
	require.NoError(t, database.Model(&db.Profile{}).Where("user_id = ?", userID).Count(&count).Error)
	if count > 0 {
		return
	}
	require.NoError(t, database.Create(&db.User{ID: userID, Email: userID + "@example.com"}).Error)
	require.NoError(t, database.Create(&db.Profile{
		UserID:        userID,
		Name:          "Guest " + userID,
		Age:           30,
		Photos:        []string{"https://cdn.example.com/" + userID + ".jpg"},
		Interests:     []string{},
		Prompts:       []db.Prompt{},
		NotifyLikes:   true,
		NotifyMatches: true,
		EmailEnabled:  true,
		PushEnabled:   true,
	}).Error)
}

func countRows(t *testing.T, database *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, database.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
