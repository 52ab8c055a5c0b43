package notify

import (
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/oggyb/guestmatch/internal/config"
	"github.com/oggyb/guestmatch/internal/logger"
)

//go:embed templates/notification.html
var notificationHTML string

var notificationTmpl = template.Must(template.New("notification").Parse(notificationHTML))

type emailData struct {
	Title string
	Name  string
	Body  string
	Link  string
	Year  int
}

func renderEmail(r *Recipient, msg Message) (string, error) {
	var buf strings.Builder
	err := notificationTmpl.Execute(&buf, emailData{
		Title: msg.Title,
		Name:  r.Name,
		Body:  msg.Body,
		Link:  msg.Link,
		Year:  time.Now().Year(),
	})
	return buf.String(), err
}

// EmailChannel sends notifications over SMTP.
type EmailChannel struct {
	from     string
	fromName string
	send     func(m *gomail.Message) error
	attempts int
	backoff  time.Duration
	log      *slog.Logger
}

// NewEmailChannel returns nil when SMTP is not configured.
func NewEmailChannel(cfg *config.Config, log *slog.Logger) *EmailChannel {
	if cfg.Notify.SMTPHost == "" {
		return nil
	}
	dialer := gomail.NewDialer(cfg.Notify.SMTPHost, cfg.Notify.SMTPPort, cfg.Notify.SMTPUser, cfg.Notify.SMTPPass)
	send := func(m *gomail.Message) error { return dialer.DialAndSend(m) }
	return newEmailChannel(cfg.Notify.SMTPFrom, cfg.Notify.SMTPFromName, send, log)
}

func newEmailChannel(from, fromName string, send func(m *gomail.Message) error, log *slog.Logger) *EmailChannel {
	if log == nil {
		log = logger.Nop()
	}
	return &EmailChannel{
		from:     from,
		fromName: fromName,
		send:     send,
		attempts: 3,
		backoff:  time.Second,
		log:      log,
	}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Enabled(r *Recipient) bool {
	return r.EmailEnabled && r.Email != ""
}

// Send retries with exponential backoff (1s, 2s, 4s by default) and gives up
// early when ctx is done.
func (c *EmailChannel) Send(ctx context.Context, r *Recipient, msg Message) error {
	body, err := renderEmail(r, msg)
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", c.from, c.fromName)
	m.SetHeader("To", r.Email)
	m.SetHeader("Subject", msg.Title)
	m.SetBody("text/plain", msg.Body+"\n\n"+msg.Link)
	m.AddAlternative("text/html", body)

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if lastErr = c.send(m); lastErr == nil {
			c.log.Debug("email sent", "to", logger.MaskID(r.UserID), "kind", msg.Kind)
			return nil
		}
		if attempt == c.attempts-1 {
			break
		}
		delay := c.backoff << attempt
		c.log.Warn("email attempt failed", "attempt", attempt+1, "retry_in", delay, "err", lastErr)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("email send cancelled: %w", ctx.Err())
		}
	}
	return fmt.Errorf("failed to send email after %d attempts: %w", c.attempts, lastErr)
}
