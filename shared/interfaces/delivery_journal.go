package interfaces

import (
	"context"

	"guard-relay/shared/models"
)

// DeliveryJournal записывает историю показов и кликов (аудит).
//
//go:generate mockery --name DeliveryJournal --output ./mocks --outpkg mocks --case=underscore
type DeliveryJournal interface {
	RecordShown(ctx context.Context, n models.ShownNotification) error
	RecordClick(ctx context.Context, event models.ClickEvent, result models.ClickResult) error
}
