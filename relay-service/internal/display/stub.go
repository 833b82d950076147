package display

import (
	"context"

	"guard-relay/shared/models"

	"go.uber.org/zap"
)

// stubHost только логирует уведомления. Используется, когда ни один реальный хост не настроен.
type stubHost struct {
	logger *zap.Logger
}

func NewStubHost(logger *zap.Logger) Host {
	return &stubHost{logger: logger.Named("stub_host")}
}

func (s *stubHost) Name() string { return "stub" }

func (s *stubHost) Show(ctx context.Context, to models.Recipient, title string, opts models.NotificationOptions) error {
	s.logger.Info("STUB: show notification",
		zap.String("user_id", to.UserID.String()),
		zap.String("notification_id", opts.Tag),
		zap.String("title", title),
		zap.String("body", opts.Body),
		zap.Any("data", opts.Data),
	)
	return nil
}

func (s *stubHost) Close(ctx context.Context, to models.Recipient, notificationID string) error {
	s.logger.Info("STUB: close notification", zap.String("notification_id", notificationID))
	return nil
}
