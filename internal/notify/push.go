package notify

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/oggyb/guestmatch/internal/logger"
)

// FCM SendEach limit.
const fcmBatchSize = 500

// eachSender is the part of *messaging.Client the channel uses.
type eachSender interface {
	SendEach(ctx context.Context, messages []*messaging.Message) (*messaging.BatchResponse, error)
}

// PushChannel sends notifications through Firebase Cloud Messaging.
type PushChannel struct {
	client eachSender
	log    *slog.Logger
}

// NewPushChannel returns nil, nil when no credentials are configured.
func NewPushChannel(ctx context.Context, credentialsJSON []byte, log *slog.Logger) (*PushChannel, error) {
	if len(credentialsJSON) == 0 {
		return nil, nil
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{}, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("firebase init failed: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("messaging client init failed: %w", err)
	}
	return newPushChannel(client, log), nil
}

func newPushChannel(client eachSender, log *slog.Logger) *PushChannel {
	if log == nil {
		log = logger.Nop()
	}
	return &PushChannel{client: client, log: log}
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Enabled(r *Recipient) bool {
	return r.PushEnabled && len(r.DeviceTokens) > 0
}

// Send delivers msg to every device of r. A token-level failure is logged;
// an error is returned only when a whole batch could not be sent.
func (c *PushChannel) Send(ctx context.Context, r *Recipient, msg Message) error {
	badge := 1
	messages := make([]*messaging.Message, 0, len(r.DeviceTokens))
	for _, token := range r.DeviceTokens {
		messages = append(messages, &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data,
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{
					Aps: &messaging.Aps{Sound: "default", Badge: &badge},
				},
			},
			Android: &messaging.AndroidConfig{
				Notification: &messaging.AndroidNotification{Sound: "default"},
				Priority:     "high",
			},
		})
	}

	for i := 0; i < len(messages); i += fcmBatchSize {
		end := min(i+fcmBatchSize, len(messages))
		resp, err := c.client.SendEach(ctx, messages[i:end])
		if err != nil {
			return fmt.Errorf("FCM batch[%d:%d] failed: %w", i, end, err)
		}
		for j, res := range resp.Responses {
			if !res.Success {
				c.log.Warn("FCM token failed", "token", logger.MaskID(r.DeviceTokens[i+j]), "err", res.Error)
			}
		}
	}
	return nil
}
