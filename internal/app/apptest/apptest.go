// Package apptest builds an AppContext over in-memory SQLite and miniredis
// for service tests.
package apptest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oggyb/guestmatch/internal/app"
	"github.com/oggyb/guestmatch/internal/auth"
	"github.com/oggyb/guestmatch/internal/cache"
	"github.com/oggyb/guestmatch/internal/config"
	"github.com/oggyb/guestmatch/internal/db"
	"github.com/oggyb/guestmatch/internal/notify"
	"github.com/oggyb/guestmatch/internal/repository"
)

// Organizer is the organizer of every event created by SeedEvent.
const Organizer = "organizer"

type Env struct {
	App      *app.AppContext
	DB       *gorm.DB
	Redis    *miniredis.Miniredis
	Notifier *RecordingNotifier
}

// New wires an AppContext with the embedded transitions backend.
func New(t *testing.T) *Env {
	t.Helper()

	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := database.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(database))

	mr := miniredis.RunT(t)

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	cfg.Transitions.GuardTTL = 5 * time.Second

	redisCache := cache.NewRedisCache(cfg)
	t.Cleanup(func() { redisCache.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil)) // discard logs in tests

	appCtx := app.New(database, redisCache, log, cfg)
	notifier := &RecordingNotifier{}
	appCtx.Notifier = notifier
	appCtx.Transitions = repository.NewRelationshipRepository(database)
	appCtx.Directory = repository.NewMembershipRepository(database)

	return &Env{App: appCtx, DB: database, Redis: mr, Notifier: notifier}
}

// As returns a context authenticated as userID.
func As(userID string) context.Context {
	return auth.WithUser(context.Background(), userID)
}

// SeedEvent creates an event in status with invite code "code-<id>" and adds
// each attendee with a complete profile.
func (e *Env) SeedEvent(t *testing.T, eventID, status string, attendees ...string) {
	t.Helper()
	e.SeedProfile(t, Organizer, true)
	require.NoError(t, e.DB.Create(&db.Event{
		ID:          eventID,
		Name:        "Wedding " + eventID,
		OrganizerID: Organizer,
		Status:      status,
		InviteCode:  "code-" + eventID,
	}).Error)
	for _, u := range attendees {
		e.SeedProfile(t, u, true)
		require.NoError(t, e.DB.Create(&db.EventAttendee{EventID: eventID, UserID: u}).Error)
	}
}

// SeedProfile creates the user and a profile; an incomplete one has no photo.
// Existing users are left as they are.
func (e *Env) SeedProfile(t *testing.T, userID string, complete bool) {
	t.Helper()
	var n int64
	require.NoError(t, e.DB.Model(&db.User{}).Where("id = ?", userID).Count(&n).Error)
	if n > 0 {
		return
	}
	photos := []string{}
	if complete {
		photos = append(photos, "https://cdn.example.com/"+userID+".jpg")
	}
	require.NoError(t, e.DB.Create(&db.User{ID: userID, Email: userID + "@example.com"}).Error)
	require.NoError(t, e.DB.Create(&db.Profile{
		UserID:        userID,
		Name:          "Guest " + userID,
		Age:           30,
		Photos:        photos,
		Interests:     []string{},
		Prompts:       []db.Prompt{},
		NotifyLikes:   true,
		NotifyMatches: true,
		EmailEnabled:  true,
		PushEnabled:   true,
	}).Error)
}

// ClearPhotos leaves userID with an incomplete profile.
func (e *Env) ClearPhotos(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, e.DB.Model(&db.Profile{}).Where("user_id = ?", userID).
		Update("photos", datatypes.JSONSlice[string]{}).Error)
}

// CloseEvent moves eventID to closed without going through the service.
func (e *Env) CloseEvent(t *testing.T, eventID string) {
	t.Helper()
	require.NoError(t, e.DB.Model(&db.Event{}).Where("id = ?", eventID).Update("status", db.EventClosed).Error)
}

// Notification is one call seen by RecordingNotifier.
type Notification struct {
	Kind        string
	RecipientID string
	EventID     string
	Data        map[string]string
}

// RecordingNotifier records notifications instead of sending them.
type RecordingNotifier struct {
	mu     sync.Mutex
	sent   []Notification
	pushes []notify.PushPayload
}

var _ notify.Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) Go(kind, recipientID, eventID string, data map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Kind: kind, RecipientID: recipientID, EventID: eventID, Data: data})
}

func (n *RecordingNotifier) SendLikeNotification(likedUserID, eventID string) {
	n.Go(db.NotifyLike, likedUserID, eventID, nil)
}

func (n *RecordingNotifier) SendPushNotification(userID string, payload notify.PushPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if payload.Data == nil {
		payload.Data = map[string]string{}
	}
	payload.Data["user_id"] = userID
	n.pushes = append(n.pushes, payload)
}

// Sent returns the recorded notifications of kind, in call order.
func (n *RecordingNotifier) Sent(kind string) []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Notification
	for _, s := range n.sent {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (n *RecordingNotifier) Pushes() []notify.PushPayload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.PushPayload(nil), n.pushes...)
}
