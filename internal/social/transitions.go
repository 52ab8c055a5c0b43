package social

import (
	"context"
	"strings"

	svcErr "github.com/oggyb/guestmatch/internal/errors"
)

// Outcome of a relationship action that did not fail.
type Outcome string

const (
	Applied     Outcome = "applied"
	AlreadyDone Outcome = "already_done"
)

// Action names, also used to key the re-entrancy guard.
const (
	ActionBlock   = "block"
	ActionUnmatch = "unmatch"
	ActionReport  = "report"
)

// ReasonReported is the unmatch reason written when a report dissolves a match.
const ReasonReported = "reported"

var (
	blockReasons   = []string{"harassment", "inappropriate", "spam", "fake_profile", "safety", "other"}
	unmatchReasons = []string{"no_connection", "not_interested", "met_in_person", "inappropriate", "other"}
	reportReasons  = []string{"spam", "fake_profile", "harassment", "inappropriate_content", "underage", "safety", "other"}
)

type BlockInput struct {
	BlockerID string
	BlockedID string
	EventID   string // optional
	MatchID   string // optional
	Reason    string
}

type UnmatchInput struct {
	UnmatcherID     string
	UnmatchedUserID string
	EventID         string
	MatchID         string
	Reason          string
	Description     string
}

type ReportInput struct {
	ReporterID     string
	ReportedUserID string
	EventID        string
	MatchID        string
	Reason         string
	CustomReason   string
}

// ReportResult says what a report did besides persisting itself.
type ReportResult struct {
	Outcome  Outcome
	ReportID string
	// OrganizerID is the event organizer to notify; empty if unknown.
	OrganizerID string
}

// Transitions applies the terminal relationship actions. Every method is one
// atomic call against the backend: a single database transaction or a single
// stored-procedure invocation. Callers never read-then-write around it.
type Transitions interface {
	Block(ctx context.Context, in BlockInput) (Outcome, error)
	Unmatch(ctx context.Context, in UnmatchInput) (Outcome, error)
	Report(ctx context.Context, in ReportInput) (ReportResult, error)
}

// Directory answers the membership questions the hosted backend exposes as
// validate_invite_code and has_role.
type Directory interface {
	ValidateInviteCode(ctx context.Context, code string) (eventID string, err error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

func (in *BlockInput) Normalize() error {
	in.Reason = normalizeReason(in.Reason)
	if err := checkPair(in.BlockerID, in.BlockedID); err != nil {
		return err
	}
	if in.Reason == "" {
		in.Reason = "other"
	}
	return checkReason(in.Reason, blockReasons)
}

func (in *UnmatchInput) Normalize() error {
	in.Reason = normalizeReason(in.Reason)
	in.Description = strings.TrimSpace(in.Description)
	if err := checkPair(in.UnmatcherID, in.UnmatchedUserID); err != nil {
		return err
	}
	if strings.TrimSpace(in.EventID) == "" {
		return svcErr.Validation("event_id is required")
	}
	if err := checkReason(in.Reason, unmatchReasons); err != nil {
		return err
	}
	if len(in.Description) > 1024 {
		return svcErr.Validation("description is too long")
	}
	return nil
}

func (in *ReportInput) Normalize() error {
	in.Reason = normalizeReason(in.Reason)
	in.CustomReason = strings.TrimSpace(in.CustomReason)
	if err := checkPair(in.ReporterID, in.ReportedUserID); err != nil {
		return err
	}
	if strings.TrimSpace(in.EventID) == "" {
		return svcErr.Validation("event_id is required")
	}
	if err := checkReason(in.Reason, reportReasons); err != nil {
		return err
	}
	if in.Reason == "other" && in.CustomReason == "" {
		return svcErr.Validation("please describe the problem")
	}
	if len(in.CustomReason) > 1024 {
		return svcErr.Validation("custom reason is too long")
	}
	return nil
}

func checkPair(actor, target string) error {
	if strings.TrimSpace(actor) == "" || strings.TrimSpace(target) == "" {
		return svcErr.Validation("both users are required")
	}
	if actor == target {
		return svcErr.Validation("you can't do that to yourself")
	}
	return nil
}

func checkReason(reason string, allowed []string) error {
	for _, r := range allowed {
		if r == reason {
			return nil
		}
	}
	return svcErr.Validation("unsupported reason")
}

func normalizeReason(r string) string {
	r = strings.ToLower(strings.TrimSpace(r))
	return strings.ReplaceAll(r, " ", "_")
}
