package mocks

import (
	"context"

	"guard-relay/shared/models"

	"github.com/stretchr/testify/mock"
)

// Mock MessageHandler
type MessageHandler struct {
	mock.Mock
}

func (m *MessageHandler) HandleBackgroundMessage(ctx context.Context, payload models.PushPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}
