// Package remote runs relationship transitions as hosted stored procedures.
// Each action is exactly one SELECT; the procedure owns the transaction.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	svcErr "github.com/oggyb/guestmatch/internal/errors"
	"github.com/oggyb/guestmatch/internal/social"
)

// Postgres error codes the procedures raise.
const (
	codeUniqueViolation = "23505"
	codeNoDataFound     = "P0002"
	codeInvalidParam    = "22023"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Transitions implements social.Transitions and social.Directory on top of
// block_user_transaction, unmatch_user_transaction, report_user_transaction,
// validate_invite_code and has_role.
type Transitions struct {
	db Querier
}

var (
	_ social.Transitions = (*Transitions)(nil)
	_ social.Directory   = (*Transitions)(nil)
)

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("remote transitions url is required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse remote dsn: %w", err)
	}
	cfg.MinConns = 0
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create remote pool: %w", err)
	}
	return pool, nil
}

func New(db Querier) *Transitions {
	return &Transitions{db: db}
}

func (t *Transitions) Block(ctx context.Context, in social.BlockInput) (social.Outcome, error) {
	_, err := t.db.Exec(ctx,
		`SELECT block_user_transaction($1, $2, $3, $4, $5)`,
		in.BlockerID, in.BlockedID, nullable(in.EventID), nullable(in.MatchID), in.Reason)
	return outcome(social.ActionBlock, err)
}

func (t *Transitions) Unmatch(ctx context.Context, in social.UnmatchInput) (social.Outcome, error) {
	_, err := t.db.Exec(ctx,
		`SELECT unmatch_user_transaction($1, $2, $3, $4, $5, $6)`,
		in.UnmatcherID, in.UnmatchedUserID, in.EventID, nullable(in.MatchID), in.Reason, nullable(in.Description))
	return outcome(social.ActionUnmatch, err)
}

// Report expects the procedure to return (report_id, organizer_id).
func (t *Transitions) Report(ctx context.Context, in social.ReportInput) (social.ReportResult, error) {
	var reportID, organizerID *string
	err := t.db.QueryRow(ctx,
		`SELECT r.report_id::text, r.organizer_id::text
		   FROM report_user_transaction($1, $2, $3, $4, $5, $6) AS r`,
		in.ReporterID, in.ReportedUserID, in.EventID, nullable(in.MatchID), in.Reason, nullable(in.CustomReason),
	).Scan(&reportID, &organizerID)

	out, err := outcome(social.ActionReport, err)
	if err != nil || out == social.AlreadyDone {
		return social.ReportResult{Outcome: out}, err
	}
	return social.ReportResult{Outcome: out, ReportID: deref(reportID), OrganizerID: deref(organizerID)}, nil
}

func (t *Transitions) ValidateInviteCode(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", svcErr.Validation("invite code is required")
	}
	var eventID *string
	err := t.db.QueryRow(ctx, `SELECT validate_invite_code($1)::text`, code).Scan(&eventID)
	if err != nil {
		return "", classify("validate_invite_code", err)
	}
	if eventID == nil || *eventID == "" {
		return "", svcErr.NotFound("That invite code isn't valid.")
	}
	return *eventID, nil
}

func (t *Transitions) HasRole(ctx context.Context, userID, role string) (bool, error) {
	var ok bool
	if err := t.db.QueryRow(ctx, `SELECT has_role($1, $2)`, userID, role).Scan(&ok); err != nil {
		return false, classify("has_role", err)
	}
	return ok, nil
}

// errDuplicate marks a unique violation: the action was applied before.
var errDuplicate = errors.New("duplicate")

func outcome(action string, err error) (social.Outcome, error) {
	err = classify(action, err)
	switch {
	case err == nil:
		return social.Applied, nil
	case errors.Is(err, errDuplicate):
		return social.AlreadyDone, nil
	default:
		return "", err
	}
}

// classify maps procedure errors onto the shared taxonomy. Backend text is
// kept in the wrapped error for logs and never becomes the user message.
func classify(action string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", action, svcErr.ErrNotFound)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w", action, svcErr.ErrTransient)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation:
			return fmt.Errorf("%s: %w", action, errDuplicate)
		case strings.Contains(pgErr.Message, "Unauthorized"):
			return fmt.Errorf("%s: %s: %w", action, pgErr.Message, svcErr.ErrUnauthorized)
		case pgErr.Code == codeNoDataFound:
			return fmt.Errorf("%s: %s: %w", action, pgErr.Message, svcErr.ErrNotFound)
		case pgErr.Code == codeInvalidParam:
			return fmt.Errorf("%s: %s: %w", action, pgErr.Message, svcErr.ErrValidation)
		}
		return fmt.Errorf("%s: unrecognized backend code %s: %w", action, pgErr.Code, err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%s: %w: %v", action, svcErr.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
