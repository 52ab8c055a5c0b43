// Package notify sends best-effort like, match and report notifications.
//
// Every dispatch goes through Dispatcher.Allow, which applies the recipient's
// preferences and then the per-kind rate window recorded in the Ledger.
// Delivery failures are logged and never returned to the operation that
// triggered the notification.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/oggyb/guestmatch/internal/db"
	"github.com/oggyb/guestmatch/internal/logger"
)

// Recipient is everything a channel needs to reach one user.
type Recipient struct {
	UserID        string
	Name          string
	Email         string
	EventName     string
	NotifyLikes   bool
	NotifyMatches bool
	EmailEnabled  bool
	PushEnabled   bool
	DeviceTokens  []string
}

// Wants reports whether the recipient's preferences allow kind.
// Organizer reports are operational and cannot be muted.
func (r *Recipient) Wants(kind string) bool {
	switch kind {
	case db.NotifyLike:
		return r.NotifyLikes
	case db.NotifyMatch:
		return r.NotifyMatches
	case db.NotifyReport:
		return true
	default:
		return false
	}
}

// Message is the rendered notification handed to every channel.
type Message struct {
	Kind  string
	Title string
	Body  string
	Link  string
	Data  map[string]string
}

// PushPayload is the shape accepted by SendPushNotification.
type PushPayload struct {
	Title string
	Body  string
	Data  map[string]string
}

// Recipients resolves contact details and preferences.
type Recipients interface {
	Recipient(ctx context.Context, userID, eventID string) (*Recipient, error)
}

// Ledger is the rate-limit record of sent notifications.
//
// Reserve records a send of kind to userID in eventID at time at, unless one
// was recorded within window before at; ok is false in that case.
type Ledger interface {
	Reserve(ctx context.Context, userID, eventID, kind string, at time.Time, window time.Duration) (ok bool, err error)
}

// Channel delivers a message over one medium.
type Channel interface {
	Name() string
	Enabled(r *Recipient) bool
	Send(ctx context.Context, r *Recipient, msg Message) error
}

// Notifier is what the services depend on.
type Notifier interface {
	Go(kind, recipientID, eventID string, data map[string]string)
	SendLikeNotification(likedUserID, eventID string)
	SendPushNotification(userID string, payload PushPayload)
}

// Skip reasons reported in Result.
const (
	SkipPreference = "preference"
	SkipWindow     = "rate_window"
	SkipNoChannel  = "no_channel"
)

// Result describes one dispatch.
type Result struct {
	Sent     bool
	Skipped  string
	Failures int
}

// DefaultWindows returns the rate windows per kind. A match is created once,
// so it needs no window; organizer reports are never throttled.
func DefaultWindows(like time.Duration) map[string]time.Duration {
	return map[string]time.Duration{
		db.NotifyLike:   like,
		db.NotifyMatch:  0,
		db.NotifyReport: 0,
	}
}

type Options struct {
	Windows map[string]time.Duration
	// Timeout bounds one asynchronous dispatch.
	Timeout time.Duration
	AppURL  string
	Now     func() time.Time
	Logger  *slog.Logger
}

type Dispatcher struct {
	recipients Recipients
	ledger     Ledger
	channels   []Channel
	windows    map[string]time.Duration
	timeout    time.Duration
	appURL     string
	now        func() time.Time
	log        *slog.Logger

	// gateMu makes check-and-record atomic within this process; the Redis
	// ledger is atomic across processes on its own.
	gateMu sync.Mutex
	wg     sync.WaitGroup
}

var _ Notifier = (*Dispatcher)(nil)

// NewDispatcher wires a dispatcher. Nil channels are dropped so that an
// unconfigured provider simply disables its medium.
func NewDispatcher(recipients Recipients, ledger Ledger, channels []Channel, opts Options) *Dispatcher {
	d := &Dispatcher{
		recipients: recipients,
		ledger:     ledger,
		windows:    opts.Windows,
		timeout:    opts.Timeout,
		appURL:     opts.AppURL,
		now:        opts.Now,
		log:        opts.Logger,
	}
	for _, ch := range channels {
		if ch != nil {
			d.channels = append(d.channels, ch)
		}
	}
	if d.windows == nil {
		d.windows = DefaultWindows(24 * time.Hour)
	}
	if d.timeout <= 0 {
		d.timeout = 20 * time.Second
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.log == nil {
		d.log = logger.Nop()
	}
	return d
}

// Allow is the single gate consulted before any dispatch: preferences first,
// then the ledger window. An allowed call is recorded before it returns.
func (d *Dispatcher) Allow(ctx context.Context, kind string, r *Recipient, eventID string) (bool, string, error) {
	if !r.Wants(kind) {
		return false, SkipPreference, nil
	}

	d.gateMu.Lock()
	defer d.gateMu.Unlock()

	ok, err := d.ledger.Reserve(ctx, r.UserID, eventID, kind, d.now(), d.windows[kind])
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, SkipWindow, nil
	}
	return true, "", nil
}

// Notify runs one dispatch synchronously. Channel errors are logged and
// counted in Result; only lookup and ledger errors are returned.
func (d *Dispatcher) Notify(ctx context.Context, kind, recipientID, eventID string, data map[string]string) (Result, error) {
	log := d.log.With("kind", kind, "recipient", logger.MaskID(recipientID), "event_id", eventID)

	r, err := d.recipients.Recipient(ctx, recipientID, eventID)
	if err != nil {
		return Result{}, err
	}

	var active []Channel
	for _, ch := range d.channels {
		if ch.Enabled(r) {
			active = append(active, ch)
		}
	}
	if len(active) == 0 {
		log.Debug("notification skipped", "reason", SkipNoChannel)
		return Result{Skipped: SkipNoChannel}, nil
	}

	ok, reason, err := d.Allow(ctx, kind, r, eventID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		log.Debug("notification skipped", "reason", reason)
		return Result{Skipped: reason}, nil
	}

	msg := compose(kind, r, d.appURL, data)
	res := Result{Sent: true}
	for _, ch := range active {
		if err := ch.Send(ctx, r, msg); err != nil {
			res.Failures++
			log.Warn("notification channel failed", "channel", ch.Name(), "err", err)
		}
	}
	log.Debug("notification dispatched", "failures", res.Failures)
	return res, nil
}

// Go dispatches in the background with a detached, bounded context.
func (d *Dispatcher) Go(kind, recipientID, eventID string, data map[string]string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if _, err := d.Notify(ctx, kind, recipientID, eventID, data); err != nil {
			level := slog.LevelError
			if errors.Is(err, context.DeadlineExceeded) {
				level = slog.LevelWarn
			}
			d.log.Log(ctx, level, "notification dispatch failed",
				"kind", kind, "recipient", logger.MaskID(recipientID), "err", err)
		}
	}()
}

// SendLikeNotification tells likedUserID that someone at eventID liked them.
func (d *Dispatcher) SendLikeNotification(likedUserID, eventID string) {
	d.Go(db.NotifyLike, likedUserID, eventID, nil)
}

// SendPushNotification pushes a transactional message to every device of
// userID. It bypasses the kind gate; only the push preference applies.
func (d *Dispatcher) SendPushNotification(userID string, payload PushPayload) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		log := d.log.With("recipient", logger.MaskID(userID))
		r, err := d.recipients.Recipient(ctx, userID, "")
		if err != nil {
			log.Warn("push lookup failed", "err", err)
			return
		}
		msg := Message{Title: payload.Title, Body: payload.Body, Data: payload.Data}
		for _, ch := range d.channels {
			if _, isPush := ch.(*PushChannel); !isPush || !ch.Enabled(r) {
				continue
			}
			if err := ch.Send(ctx, r, msg); err != nil {
				log.Warn("push failed", "err", err)
			}
		}
	}()
}

// Wait blocks until every background dispatch has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }
