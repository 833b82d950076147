package interfaces

import (
	"context"

	"guard-relay/shared/models"
)

// NotificationStore хранит показанные уведомления до клика или истечения TTL.
//
//go:generate mockery --name NotificationStore --output ./mocks --outpkg mocks --case=underscore
type NotificationStore interface {
	// Save сохраняет уведомление. Повторное сохранение с тем же ID перезаписывает запись.
	Save(ctx context.Context, n models.ShownNotification) error
	// Get возвращает models.ErrNotFound, если уведомления нет или срок хранения истек.
	Get(ctx context.Context, id string) (*models.ShownNotification, error)
	// Delete идемпотентен: удаление отсутствующей записи не является ошибкой.
	Delete(ctx context.Context, id string) error
}
