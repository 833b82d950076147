package mocks

import (
	"context"

	"guard-relay/relay-service/internal/relay"
	"guard-relay/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock Registration
type Registration struct {
	mock.Mock
}

func (m *Registration) ShowNotification(ctx context.Context, to models.Recipient, title string, opts models.NotificationOptions) error {
	args := m.Called(ctx, to, title, opts)
	return args.Error(0)
}

func (m *Registration) CloseNotification(ctx context.Context, to models.Recipient, notificationID string) error {
	args := m.Called(ctx, to, notificationID)
	return args.Error(0)
}

// Mock Clients
type Clients struct {
	mock.Mock
}

func (m *Clients) MatchAll(ctx context.Context, query models.ClientQuery) ([]relay.Client, error) {
	args := m.Called(ctx, query)
	var clients []relay.Client
	if v := args.Get(0); v != nil {
		clients = v.([]relay.Client)
	}
	return clients, args.Error(1)
}

// Mock WindowOpener
type WindowOpener struct {
	mock.Mock
}

func (m *WindowOpener) OpenWindow(ctx context.Context, userID uuid.UUID, url string) (relay.Client, error) {
	args := m.Called(ctx, userID, url)
	var c relay.Client
	if v := args.Get(0); v != nil {
		c = v.(relay.Client)
	}
	return c, args.Error(1)
}

// Window - клиент, который умеет получать фокус.
type Window struct {
	mock.Mock
	ClientID  string
	ClientURL string
}

func (w *Window) ID() string              { return w.ClientID }
func (w *Window) URL() string             { return w.ClientURL }
func (w *Window) Type() models.ClientType { return models.ClientTypeWindow }

func (w *Window) Focus(ctx context.Context) error {
	args := w.Called(ctx)
	return args.Error(0)
}

// PassiveWindow - клиент без поддержки фокуса.
type PassiveWindow struct {
	ClientID  string
	ClientURL string
}

func (w *PassiveWindow) ID() string              { return w.ClientID }
func (w *PassiveWindow) URL() string             { return w.ClientURL }
func (w *PassiveWindow) Type() models.ClientType { return models.ClientTypeWindow }
