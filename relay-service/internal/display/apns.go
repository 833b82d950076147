package display

import (
	"context"
	"fmt"
	"sync"

	"guard-relay/relay-service/internal/config"
	"guard-relay/shared/constants"
	"guard-relay/shared/models"
	"guard-relay/shared/utils"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
	"go.uber.org/zap"
)

// apnsMaxInFlight ограничивает число одновременных запросов к APNS.
const apnsMaxInFlight = 16

type apnsPushFunc func(ctx context.Context, n *apns2.Notification) (*apns2.Response, error)

type apnsHost struct {
	push          apnsPushFunc
	topic         string
	tokens        TokenProvider
	invalidTokens InvalidTokenSink // может быть nil
	clickURL      string
	logger        *zap.Logger
}

// NewAPNSHost создает хост APNS с авторизацией по ключу .p8.
// Возвращает nil, nil если конфигурация неполная.
func NewAPNSHost(cfg config.APNSConfig, clickURL string, tokens TokenProvider, sink InvalidTokenSink, logger *zap.Logger) (Host, error) {
	if !cfg.Configured() {
		logger.Warn("APNS configuration is incomplete (KeyPath, KeyID, TeamID, Topic), APNS host will not be created")
		return nil, nil
	}

	authKey, err := token.AuthKeyFromFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read APNS key from %s: %w", cfg.KeyPath, err)
	}
	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	logger.Info("APNS host initialized",
		zap.String("key_id", cfg.KeyID),
		zap.String("team_id", cfg.TeamID),
		zap.String("topic", cfg.Topic),
		zap.Bool("production", cfg.Production),
	)
	push := func(ctx context.Context, n *apns2.Notification) (*apns2.Response, error) {
		return client.PushWithContext(ctx, n)
	}
	return newAPNSHost(push, cfg.Topic, clickURL, tokens, sink, logger), nil
}

func newAPNSHost(push apnsPushFunc, topic, clickURL string, tokens TokenProvider, sink InvalidTokenSink, logger *zap.Logger) *apnsHost {
	return &apnsHost{
		push:          push,
		topic:         topic,
		tokens:        tokens,
		invalidTokens: sink,
		clickURL:      clickURL,
		logger:        logger.Named("apns_host"),
	}
}

func (h *apnsHost) Name() string { return "apns" }

// Show отправляет уведомление на все iOS устройства пользователя. Явные токены
// из payload выданы FCM, поэтому здесь не используются.
func (h *apnsHost) Show(ctx context.Context, to models.Recipient, title string, opts models.NotificationOptions) error {
	tokens, err := resolveTokens(ctx, h.tokens, to, false, constants.PlatformIOS)
	if err != nil {
		return fmt.Errorf("resolve apns tokens: %w", err)
	}
	if len(tokens) == 0 {
		h.logger.Debug("No APNS tokens for recipient", zap.String("user_id", to.UserID.String()))
		return nil
	}

	p := buildAPNSPayload(title, opts, h.clickURL)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures int
		firstErr error
	)
	sem := make(chan struct{}, apnsMaxInFlight)
	for _, deviceToken := range tokens {
		wg.Add(1)
		sem <- struct{}{}
		go func(tokenToSend string) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := h.push(ctx, &apns2.Notification{
				DeviceToken: tokenToSend,
				Topic:       h.topic,
				CollapseID:  opts.Tag,
				Payload:     p,
				Priority:    apns2.PriorityHigh,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				h.logger.Error("APNS push call failed", zap.String("token", utils.TokenPrefix(tokenToSend)), zap.Error(err))
				failures++
				if firstErr == nil {
					firstErr = fmt.Errorf("apns send: %w", err)
				}
				return
			}
			if res.Sent() {
				h.logger.Debug("APNS notification sent", zap.String("token", utils.TokenPrefix(tokenToSend)), zap.String("apns_id", res.ApnsID))
				return
			}

			failures++
			if firstErr == nil {
				firstErr = fmt.Errorf("apns delivery failed: %s", res.Reason)
			}
			h.logger.Warn("APNS rejected notification",
				zap.String("token", utils.TokenPrefix(tokenToSend)),
				zap.Int("status_code", res.StatusCode),
				zap.String("reason", res.Reason),
			)
			if isInvalidAPNSReason(res.Reason) && h.invalidTokens != nil {
				if err := h.invalidTokens.PublishTokenDeletion(ctx, tokenToSend); err != nil {
					h.logger.Error("Failed to publish APNS token deletion", zap.Error(err))
				}
			}
		}(deviceToken)
	}
	wg.Wait()

	if failures == len(tokens) {
		return firstErr
	}
	if failures > 0 {
		h.logger.Warn("APNS delivery partially failed", zap.Int("failures", failures), zap.Int("total", len(tokens)))
	}
	return nil
}

// APNS не умеет отзывать уже доставленные уведомления.
func (h *apnsHost) Close(ctx context.Context, to models.Recipient, notificationID string) error {
	return nil
}

func isInvalidAPNSReason(reason string) bool {
	switch reason {
	case apns2.ReasonUnregistered, apns2.ReasonBadDeviceToken, apns2.ReasonDeviceTokenNotForTopic:
		return true
	}
	return false
}

func buildAPNSPayload(title string, opts models.NotificationOptions, clickURL string) *payload.Payload {
	p := payload.NewPayload().
		AlertTitle(title).
		AlertBody(opts.Body).
		Sound("default").
		ThreadID(opts.Tag).
		MutableContent()

	// Кастомные данные кладем на верхний уровень, не в aps
	for k, v := range stringifyData(opts.Data) {
		p.Custom(k, v)
	}
	p.Custom(constants.PushNotificationIDKey, opts.Tag)
	if clickURL != "" {
		p.Custom(constants.PushClickURLKey, clickURL)
	}
	return p
}
