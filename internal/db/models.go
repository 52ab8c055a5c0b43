package db

import (
	"time"

	"gorm.io/datatypes"
)

// Event lifecycle statuses.
const (
	EventDraft  = "draft"
	EventActive = "active"
	EventClosed = "closed"
)

// Swipe directions.
const (
	DirectionLeft  = "left"
	DirectionRight = "right"
)

// Match statuses. Only active matches are visible and chattable.
const (
	MatchActive    = "active"
	MatchUnmatched = "unmatched"
	MatchBlocked   = "blocked"
)

// Roles understood by HasRole.
const (
	RoleAdmin   = "admin"
	RolePremium = "premium"
)

// Report review statuses.
const (
	ReportPending  = "pending"
	ReportReviewed = "reviewed"
)

// Notification kinds recorded in the ledger.
const (
	NotifyLike   = "like"
	NotifyMatch  = "match"
	NotifyReport = "report"
)

// User mirrors the identity owned by the auth provider.
type User struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Email     string    `gorm:"uniqueIndex;size:128;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

type Prompt struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Profile is the single profile of a user.
type Profile struct {
	UserID        string                      `gorm:"primaryKey;size:36"`
	Name          string                      `gorm:"size:128"`
	Age           int                         `gorm:"not null;default:0"`
	Bio           string                      `gorm:"size:1024"`
	Photos        datatypes.JSONSlice[string] `gorm:"not null"`
	Interests     datatypes.JSONSlice[string] `gorm:"not null"`
	Prompts       datatypes.JSONSlice[Prompt] `gorm:"not null"`
	NotifyLikes   bool                        `gorm:"not null"`
	NotifyMatches bool                        `gorm:"not null"`
	EmailEnabled  bool                        `gorm:"not null"`
	PushEnabled   bool                        `gorm:"not null"`
	CreatedAt     time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt     time.Time                   `gorm:"autoUpdateTime"`
}

// Complete reports whether the profile may take part in swiping.
func (p Profile) Complete() bool {
	return p.Name != "" && p.Age >= 18 && len(p.Photos) > 0
}

// Event is one wedding: the scope of every swipe, match and chat.
type Event struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Name        string    `gorm:"size:128;not null"`
	OrganizerID string    `gorm:"size:36;not null;index"`
	Status      string    `gorm:"size:16;not null;default:draft"`
	InviteCode  string    `gorm:"uniqueIndex;size:32;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// CanTransition enforces draft -> active -> closed.
func CanTransition(from, to string) bool {
	switch from {
	case EventDraft:
		return to == EventActive
	case EventActive:
		return to == EventClosed
	default:
		return false
	}
}

type EventAttendee struct {
	EventID  string    `gorm:"primaryKey;size:36"`
	UserID   string    `gorm:"primaryKey;size:36;index"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

// Swipe is one directed like/pass.
//
// Composite PK: (ActorID, TargetID, EventID)
//   - A re-swipe overwrites the row; there is never a second live swipe.
//
// Indexes:
//   - idx_target_event_dir_updated(target_id, event_id, direction, updated_at DESC)
//     serves "who liked me" lists.
type Swipe struct {
	ActorID   string    `gorm:"primaryKey;size:36"`
	TargetID  string    `gorm:"primaryKey;size:36;index:idx_target_event_dir_updated,priority:1"`
	EventID   string    `gorm:"primaryKey;size:36;index:idx_target_event_dir_updated,priority:2"`
	Direction string    `gorm:"size:5;not null;index:idx_target_event_dir_updated,priority:3"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime;index:idx_target_event_dir_updated,priority:4,sort:desc"`
}

// Match is the undirected pair; UserAID < UserBID always.
// The unique index is what keeps concurrent completions to one row.
type Match struct {
	ID        string    `gorm:"primaryKey;size:36"`
	EventID   string    `gorm:"size:36;not null;uniqueIndex:idx_match_pair,priority:1"`
	UserAID   string    `gorm:"size:36;not null;uniqueIndex:idx_match_pair,priority:2"`
	UserBID   string    `gorm:"size:36;not null;uniqueIndex:idx_match_pair,priority:3;index"`
	Status    string    `gorm:"size:16;not null;default:active"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Other returns the participant that is not userID.
func (m Match) Other(userID string) string {
	if m.UserAID == userID {
		return m.UserBID
	}
	return m.UserAID
}

// Has reports whether userID is a participant.
func (m Match) Has(userID string) bool {
	return m.UserAID == userID || m.UserBID == userID
}

// Unmatch is unique per (event, pair) regardless of who initiated it.
type Unmatch struct {
	ID              string    `gorm:"primaryKey;size:36"`
	EventID         string    `gorm:"size:36;not null;uniqueIndex:idx_unmatch_pair,priority:1"`
	PairLowID       string    `gorm:"size:36;not null;uniqueIndex:idx_unmatch_pair,priority:2"`
	PairHighID      string    `gorm:"size:36;not null;uniqueIndex:idx_unmatch_pair,priority:3"`
	UnmatcherID     string    `gorm:"size:36;not null"`
	UnmatchedUserID string    `gorm:"size:36;not null"`
	MatchID         string    `gorm:"size:36"`
	Reason          string    `gorm:"size:64;not null"`
	Description     string    `gorm:"size:1024"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

// Block severs two users in every event. No unblock path exists.
type Block struct {
	ID        string    `gorm:"primaryKey;size:36"`
	BlockerID string    `gorm:"size:36;not null;uniqueIndex:idx_block_pair,priority:1"`
	BlockedID string    `gorm:"size:36;not null;uniqueIndex:idx_block_pair,priority:2;index"`
	EventID   string    `gorm:"size:36"`
	MatchID   string    `gorm:"size:36"`
	Reason    string    `gorm:"size:64;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

type Report struct {
	ID             string    `gorm:"primaryKey;size:36"`
	ReporterID     string    `gorm:"size:36;not null;uniqueIndex:idx_report_once,priority:1"`
	ReportedUserID string    `gorm:"size:36;not null;uniqueIndex:idx_report_once,priority:2"`
	EventID        string    `gorm:"size:36;not null;uniqueIndex:idx_report_once,priority:3;index"`
	MatchID        string    `gorm:"size:36"`
	Reason         string    `gorm:"size:64;not null"`
	CustomReason   string    `gorm:"size:1024"`
	Status         string    `gorm:"size:16;not null;default:pending"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

type Message struct {
	ID        string    `gorm:"primaryKey;size:36"`
	MatchID   string    `gorm:"size:36;not null;index:idx_message_match_created,priority:1"`
	SenderID  string    `gorm:"size:36;not null"`
	Body      string    `gorm:"size:2000;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_message_match_created,priority:2"`
}

// NotificationLog is the rate-limit ledger for outgoing notifications.
type NotificationLog struct {
	ID      uint64    `gorm:"primaryKey;autoIncrement"`
	UserID  string    `gorm:"size:36;not null;index:idx_notif_lookup,priority:1"`
	EventID string    `gorm:"size:36;not null;index:idx_notif_lookup,priority:2"`
	Kind    string    `gorm:"size:16;not null;index:idx_notif_lookup,priority:3"`
	SentAt  time.Time `gorm:"not null;index:idx_notif_lookup,priority:4"`
}

type DeviceToken struct {
	UserID    string    `gorm:"primaryKey;size:36"`
	Token     string    `gorm:"primaryKey;size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

type UserRole struct {
	UserID    string    `gorm:"primaryKey;size:36"`
	Role      string    `gorm:"primaryKey;size:32"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// PaymentTransaction is keyed by the checkout session id so a repeated
// verification finds the row and becomes a no-op.
type PaymentTransaction struct {
	SessionID   string    `gorm:"primaryKey;size:255"`
	UserID      string    `gorm:"size:36;not null;index"`
	EventID     string    `gorm:"size:36;not null"`
	Status      string    `gorm:"size:32;not null"`
	AmountTotal int64     `gorm:"not null;default:0"`
	Currency    string    `gorm:"size:8"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// All lists every model, in migration order.
func All() []any {
	return []any{
		&User{}, &Profile{}, &Event{}, &EventAttendee{},
		&Swipe{}, &Match{}, &Unmatch{}, &Block{}, &Report{},
		&Message{}, &NotificationLog{}, &DeviceToken{}, &UserRole{},
		&PaymentTransaction{},
	}
}
