package services

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sjperalta/autolease-api/internal/config"
	"github.com/sjperalta/autolease-api/pkg/logger"
	"google.golang.org/api/option"
)

// PushTransport delivers a push notification to one device
type PushTransport interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) error
}

// NewPushTransport returns an FCM transport when Firebase credentials are
// configured and a logging transport otherwise.
func NewPushTransport(ctx context.Context, cfg *config.Config) PushTransport {
	if !cfg.PushEnabled() {
		logger.Info("Push notifications not configured, using log transport")
		return logPushTransport{}
	}

	var opt option.ClientOption
	if cfg.FirebaseCredentialsJSON != "" {
		opt = option.WithCredentialsJSON([]byte(cfg.FirebaseCredentialsJSON))
	} else {
		opt = option.WithCredentialsFile(cfg.FirebaseCredentialsPath)
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		logger.Error("Failed to initialize Firebase app, falling back to log transport", "error", err)
		return logPushTransport{}
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		logger.Error("Failed to initialize Firebase messaging, falling back to log transport", "error", err)
		return logPushTransport{}
	}
	return &fcmPushTransport{client: client}
}

type fcmPushTransport struct {
	client *messaging.Client
}

func (t *fcmPushTransport) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	id, err := t.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	logger.Debug("Push sent", "message_id", id)
	return nil
}

type logPushTransport struct{}

func (logPushTransport) Send(_ context.Context, token, title, body string, data map[string]string) error {
	logger.Info("Push notification (log transport)", "token_suffix", tokenSuffix(token), "title", title, "body", body, "type", data["type"])
	return nil
}

func tokenSuffix(token string) string {
	if len(token) <= 6 {
		return token
	}
	return token[len(token)-6:]
}
