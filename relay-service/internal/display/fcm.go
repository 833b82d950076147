package display

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"guard-relay/relay-service/internal/config"
	"guard-relay/shared/constants"
	"guard-relay/shared/models"
	"guard-relay/shared/utils"

	firebase "firebase.google.com/go/v4"
	fcm "firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// fcmMaxTokensPerBatch - лимит Firebase Admin SDK на один multicast.
const fcmMaxTokensPerBatch = 500

type fcmClient interface {
	SendEachForMulticast(ctx context.Context, message *fcm.MulticastMessage) (*fcm.BatchResponse, error)
}

type fcmHost struct {
	client        fcmClient
	tokens        TokenProvider
	invalidTokens InvalidTokenSink // может быть nil
	clickURL      string
	logger        *zap.Logger
}

// NewFCMHost initializes the Firebase app and messaging client. It returns nil, nil
// when no credentials are configured.
func NewFCMHost(ctx context.Context, cfg config.FCMConfig, clickURL string, tokens TokenProvider, sink InvalidTokenSink, logger *zap.Logger) (Host, error) {
	if cfg.CredentialsPath == "" {
		logger.Warn("FCM_CREDENTIALS_PATH is not set, FCM host will not be created")
		return nil, nil
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}
	app, err := firebase.NewApp(ctx, appCfg, option.WithCredentialsFile(cfg.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app from '%s': %w", cfg.CredentialsPath, err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get FCM messaging client: %w", err)
	}

	logger.Info("FCM host initialized", zap.String("credentials_path", cfg.CredentialsPath), zap.String("project_id", cfg.ProjectID))
	return newFCMHost(client, clickURL, tokens, sink, logger), nil
}

func newFCMHost(client fcmClient, clickURL string, tokens TokenProvider, sink InvalidTokenSink, logger *zap.Logger) *fcmHost {
	return &fcmHost{
		client:        client,
		tokens:        tokens,
		invalidTokens: sink,
		clickURL:      clickURL,
		logger:        logger.Named("fcm_host"),
	}
}

func (h *fcmHost) Name() string { return "fcm" }

func (h *fcmHost) Show(ctx context.Context, to models.Recipient, title string, opts models.NotificationOptions) error {
	tokens, err := resolveTokens(ctx, h.tokens, to, true, constants.PlatformWeb, constants.PlatformAndroid)
	if err != nil {
		return fmt.Errorf("resolve fcm tokens: %w", err)
	}
	if len(tokens) == 0 {
		h.logger.Debug("No FCM tokens for recipient", zap.String("user_id", to.UserID.String()))
		return nil
	}

	var failures []string
	for start := 0; start < len(tokens); start += fcmMaxTokensPerBatch {
		end := min(start+fcmMaxTokensPerBatch, len(tokens))
		batch := tokens[start:end]

		br, err := h.client.SendEachForMulticast(ctx, buildFCMMessage(batch, title, opts, h.clickURL))
		if err != nil {
			h.logger.Error("FCM multicast call failed", zap.Error(err), zap.Int("batch_size", len(batch)))
			return fmt.Errorf("fcm send: %w", err)
		}
		h.logger.Info("FCM batch sent", zap.Int("success_count", br.SuccessCount), zap.Int("failure_count", br.FailureCount))
		failures = append(failures, h.collectFailures(ctx, batch, br)...)
	}

	if len(failures) == len(tokens) {
		return fmt.Errorf("fcm delivery failed for all %d tokens", len(tokens))
	}
	return nil
}

// collectFailures logs failed tokens and forwards permanently invalid ones to the sink.
func (h *fcmHost) collectFailures(ctx context.Context, batch []string, br *fcm.BatchResponse) []string {
	if br == nil || br.FailureCount == 0 {
		return nil
	}
	var failed []string
	for idx, resp := range br.Responses {
		if resp == nil || resp.Success || idx >= len(batch) {
			continue
		}
		token := batch[idx]
		failed = append(failed, token)
		if fcm.IsUnregistered(resp.Error) || fcm.IsInvalidArgument(resp.Error) || fcm.IsSenderIDMismatch(resp.Error) {
			h.logger.Warn("Invalid FCM token", zap.String("token", utils.TokenPrefix(token)), zap.Error(resp.Error))
			if h.invalidTokens != nil {
				if err := h.invalidTokens.PublishTokenDeletion(ctx, token); err != nil {
					h.logger.Error("Failed to publish FCM token deletion", zap.Error(err))
				}
			}
			continue
		}
		h.logger.Error("FCM delivery failed for token", zap.String("token", utils.TokenPrefix(token)), zap.Error(resp.Error))
	}
	return failed
}

// FCM не умеет отзывать уже доставленные уведомления.
func (h *fcmHost) Close(ctx context.Context, to models.Recipient, notificationID string) error {
	return nil
}

func buildFCMMessage(tokens []string, title string, opts models.NotificationOptions, clickURL string) *fcm.MulticastMessage {
	data := stringifyData(opts.Data)
	data[constants.PushNotificationIDKey] = opts.Tag
	if clickURL != "" {
		data[constants.PushClickURLKey] = clickURL
	}

	msg := &fcm.MulticastMessage{
		Tokens: tokens,
		Data:   data,
		Notification: &fcm.Notification{
			Title:    title,
			Body:     opts.Body,
			ImageURL: opts.Image,
		},
		Webpush: &fcm.WebpushConfig{
			Notification: &fcm.WebpushNotification{
				Title: title,
				Body:  opts.Body,
				Icon:  opts.Icon,
				Badge: opts.Badge,
				Tag:   opts.Tag,
				Image: opts.Image,
				Data:  opts.Data,
			},
		},
		Android: &fcm.AndroidConfig{
			Priority: "high",
			Notification: &fcm.AndroidNotification{
				Tag: opts.Tag,
			},
		},
	}
	// FCM принимает только https ссылки
	if strings.HasPrefix(clickURL, "https://") {
		msg.Webpush.FCMOptions = &fcm.WebpushFCMOptions{Link: clickURL}
	}
	return msg
}

// stringifyData converts arbitrary data values into the string map FCM and APNS custom keys expect.
func stringifyData(data map[string]any) map[string]string {
	out := make(map[string]string, len(data)+2)
	for k, v := range data {
		switch tv := v.(type) {
		case string:
			out[k] = tv
		case nil:
			out[k] = ""
		default:
			raw, err := json.Marshal(tv)
			if err != nil {
				out[k] = fmt.Sprint(tv)
				continue
			}
			out[k] = string(raw)
		}
	}
	return out
}
