package display

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"guard-relay/relay-service/internal/metrics"
	"guard-relay/relay-service/internal/relay"
	"guard-relay/shared/models"

	"go.uber.org/zap"
)

// Host - одна площадка отображения уведомлений (FCM, APNS, рабочий стол, WebSocket).
type Host interface {
	Name() string
	Show(ctx context.Context, to models.Recipient, title string, opts models.NotificationOptions) error
	Close(ctx context.Context, to models.Recipient, notificationID string) error
}

// InvalidTokenSink receives device tokens that a push service rejected permanently.
type InvalidTokenSink interface {
	PublishTokenDeletion(ctx context.Context, token string) error
}

var _ relay.Registration = (*Multi)(nil)

// Multi рассылает уведомление на все хосты параллельно.
type Multi struct {
	hosts  []Host
	logger *zap.Logger
}

// NewMulti creates a fan-out registration over hosts.
func NewMulti(logger *zap.Logger, hosts ...Host) *Multi {
	names := make([]string, 0, len(hosts))
	for _, h := range hosts {
		names = append(names, h.Name())
	}
	logger.Info("Display hosts configured", zap.Strings("hosts", names))
	return &Multi{hosts: hosts, logger: logger.Named("display")}
}

// Hosts returns the configured hosts in order.
func (m *Multi) Hosts() []Host {
	return m.hosts
}

// ShowNotification succeeds if at least one host rendered the notification.
func (m *Multi) ShowNotification(ctx context.Context, to models.Recipient, title string, opts models.NotificationOptions) error {
	return m.fanOut(ctx, "show", func(h Host) error { return h.Show(ctx, to, title, opts) })
}

// CloseNotification asks every host to dismiss the notification.
func (m *Multi) CloseNotification(ctx context.Context, to models.Recipient, notificationID string) error {
	return m.fanOut(ctx, "close", func(h Host) error { return h.Close(ctx, to, notificationID) })
}

func (m *Multi) fanOut(ctx context.Context, op string, call func(Host) error) error {
	if len(m.hosts) == 0 {
		return errors.New("no display hosts configured")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		sendErrs  []error
		succeeded int
	)
	for _, h := range m.hosts {
		wg.Add(1)
		go func(h Host) {
			defer wg.Done()
			err := call(h)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				m.logger.Error("Display host failed", zap.String("host", h.Name()), zap.String("op", op), zap.Error(err))
				metrics.DisplaySends.WithLabelValues(h.Name(), "error").Inc()
				sendErrs = append(sendErrs, fmt.Errorf("%s: %w", h.Name(), err))
				return
			}
			if op == "show" {
				metrics.DisplaySends.WithLabelValues(h.Name(), "ok").Inc()
			}
			succeeded++
		}(h)
	}
	wg.Wait()

	if succeeded == 0 {
		return errors.Join(sendErrs...)
	}
	return nil
}
