package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/oggyb/guestmatch/internal/db"
)

type memLedger struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newMemLedger() *memLedger { return &memLedger{last: map[string]time.Time{}} }

func (l *memLedger) Reserve(_ context.Context, userID, eventID, kind string, at time.Time, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := userID + "|" + eventID + "|" + kind
	if prev, ok := l.last[key]; ok && at.Sub(prev) < window {
		return false, nil
	}
	l.last[key] = at
	return true, nil
}

type staticRecipients map[string]*Recipient

func (s staticRecipients) Recipient(_ context.Context, userID, _ string) (*Recipient, error) {
	r, ok := s[userID]
	if !ok {
		return nil, errors.New("no such user")
	}
	return r, nil
}

type recordingChannel struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (c *recordingChannel) Name() string              { return "recording" }
func (c *recordingChannel) Enabled(r *Recipient) bool { return r.EmailEnabled }
func (c *recordingChannel) Send(_ context.Context, _ *Recipient, msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return c.err
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func guest(id string) *Recipient {
	return &Recipient{
		UserID: id, Name: "Guest", Email: id + "@example.com", EventName: "Ana & Luis",
		NotifyLikes: true, NotifyMatches: true, EmailEnabled: true,
	}
}

func newTestDispatcher(recipients Recipients, ch Channel, clk *clock) *Dispatcher {
	return NewDispatcher(recipients, newMemLedger(), []Channel{ch}, Options{
		Windows: DefaultWindows(24 * time.Hour),
		AppURL:  "https://app.example.com/",
		Now:     clk.now,
	})
}

func TestNotify_LikeWindow(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Date(2026, 6, 20, 12, 0, 0, 0, time.UTC)}
	ch := &recordingChannel{}
	d := newTestDispatcher(staticRecipients{"u": guest("u")}, ch, clk)

	res, err := d.Notify(ctx, db.NotifyLike, "u", "e1", nil)
	require.NoError(t, err)
	assert.True(t, res.Sent)

	clk.t = clk.t.Add(23*time.Hour + 59*time.Minute)
	res, err = d.Notify(ctx, db.NotifyLike, "u", "e1", nil)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, SkipWindow, res.Skipped)

	// other events have their own window
	res, err = d.Notify(ctx, db.NotifyLike, "u", "e2", nil)
	require.NoError(t, err)
	assert.True(t, res.Sent)

	clk.t = clk.t.Add(time.Minute) // exactly 24h after the first send
	res, err = d.Notify(ctx, db.NotifyLike, "u", "e1", nil)
	require.NoError(t, err)
	assert.True(t, res.Sent)

	assert.Equal(t, 3, ch.count())
}

func TestNotify_MatchIsNotWindowed(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Now()}
	ch := &recordingChannel{}
	d := newTestDispatcher(staticRecipients{"u": guest("u")}, ch, clk)

	for i := 0; i < 2; i++ {
		res, err := d.Notify(ctx, db.NotifyMatch, "u", "e1", map[string]string{"match_id": "m1"})
		require.NoError(t, err)
		assert.True(t, res.Sent)
	}
	require.Equal(t, 2, ch.count())
	assert.True(t, strings.HasSuffix(ch.sent[0].Link, "/matches/m1"))
	assert.Equal(t, "m1", ch.sent[0].Data["match_id"])
}

func TestNotify_PreferenceSuppresses(t *testing.T) {
	ctx := context.Background()
	r := guest("u")
	r.NotifyLikes = false
	ch := &recordingChannel{}
	d := newTestDispatcher(staticRecipients{"u": r}, ch, &clock{t: time.Now()})

	res, err := d.Notify(ctx, db.NotifyLike, "u", "e1", nil)
	require.NoError(t, err)
	assert.Equal(t, SkipPreference, res.Skipped)

	// organizer reports cannot be muted
	res, err = d.Notify(ctx, db.NotifyReport, "u", "e1", map[string]string{"reason": "spam"})
	require.NoError(t, err)
	assert.True(t, res.Sent)

	r.EmailEnabled = false
	res, err = d.Notify(ctx, db.NotifyMatch, "u", "e1", nil)
	require.NoError(t, err)
	assert.Equal(t, SkipNoChannel, res.Skipped)
}

func TestNotify_ChannelFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	ch := &recordingChannel{err: errors.New("smtp down")}
	d := newTestDispatcher(staticRecipients{"u": guest("u")}, ch, &clock{t: time.Now()})

	res, err := d.Notify(ctx, db.NotifyLike, "u", "e1", nil)
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Equal(t, 1, res.Failures)
}

func TestGo_ConcurrentLikesSendOnce(t *testing.T) {
	ch := &recordingChannel{}
	d := newTestDispatcher(staticRecipients{"u": guest("u")}, ch, &clock{t: time.Now()})

	for i := 0; i < 10; i++ {
		d.SendLikeNotification("u", "e1")
	}
	d.Go(db.NotifyLike, "missing", "e1", nil) // lookup failure is only logged
	d.Wait()

	assert.Equal(t, 1, ch.count())
}

func TestEmailChannel_RetriesThenSucceeds(t *testing.T) {
	calls := 0
	var got *gomail.Message
	ch := newEmailChannel("no-reply@example.com", "Guest Match", func(m *gomail.Message) error {
		calls++
		if calls < 3 {
			return errors.New("421 try later")
		}
		got = m
		return nil
	}, nil)
	ch.backoff = time.Millisecond

	r := guest("u")
	msg := compose(db.NotifyMatch, r, "https://app.example.com", nil)
	require.NoError(t, ch.Send(context.Background(), r, msg))
	assert.Equal(t, 3, calls)
	require.NotNil(t, got)
	assert.Equal(t, []string{"u@example.com"}, got.GetHeader("To"))
	assert.Equal(t, []string{"It's a match!"}, got.GetHeader("Subject"))
}

func TestEmailChannel_GivesUp(t *testing.T) {
	ch := newEmailChannel("no-reply@example.com", "", func(*gomail.Message) error {
		return errors.New("connection refused")
	}, nil)
	ch.backoff = time.Millisecond

	err := ch.Send(context.Background(), guest("u"), Message{Title: "x"})
	assert.ErrorContains(t, err, "after 3 attempts")
}

func TestRenderEmail(t *testing.T) {
	r := guest("u")
	r.Name = "<Ana>"
	html, err := renderEmail(r, compose(db.NotifyLike, r, "https://app.example.com", nil))
	require.NoError(t, err)
	assert.Contains(t, html, "Someone likes you")
	assert.Contains(t, html, "&lt;Ana&gt;")
	assert.Contains(t, html, "https://app.example.com/liked-you")
}

type fakeFCM struct {
	batches [][]*messaging.Message
}

func (f *fakeFCM) SendEach(_ context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error) {
	f.batches = append(f.batches, messages)
	resp := &messaging.BatchResponse{}
	for range messages {
		resp.Responses = append(resp.Responses, &messaging.SendResponse{Success: true, MessageID: "id"})
	}
	resp.SuccessCount = len(messages)
	return resp, nil
}

func TestPushChannel_Batches(t *testing.T) {
	fcm := &fakeFCM{}
	ch := newPushChannel(fcm, nil)

	r := guest("u")
	r.PushEnabled = true
	for i := 0; i < fcmBatchSize+3; i++ {
		r.DeviceTokens = append(r.DeviceTokens, "token")
	}
	require.True(t, ch.Enabled(r))
	require.NoError(t, ch.Send(context.Background(), r, Message{Title: "t", Body: "b", Data: map[string]string{"type": "like"}}))

	require.Len(t, fcm.batches, 2)
	assert.Len(t, fcm.batches[0], fcmBatchSize)
	assert.Len(t, fcm.batches[1], 3)
	assert.Equal(t, "like", fcm.batches[0][0].Data["type"])
}

func TestSendPushNotification(t *testing.T) {
	fcm := &fakeFCM{}
	r := guest("u")
	r.PushEnabled = true
	r.DeviceTokens = []string{"t1", "t2"}
	email := &recordingChannel{}
	d := NewDispatcher(staticRecipients{"u": r}, newMemLedger(), []Channel{email, newPushChannel(fcm, nil)}, Options{})

	d.SendPushNotification("u", PushPayload{Title: "Your wedding is live", Body: "Guests can start swiping."})
	d.Wait()

	require.Len(t, fcm.batches, 1)
	assert.Len(t, fcm.batches[0], 2)
	assert.Equal(t, 0, email.count())
}
