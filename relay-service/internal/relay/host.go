package relay

import (
	"context"

	"guard-relay/shared/models"

	"github.com/google/uuid"
)

// Registration renders and dismisses notifications on a display host.
type Registration interface {
	ShowNotification(ctx context.Context, to models.Recipient, title string, opts models.NotificationOptions) error
	CloseNotification(ctx context.Context, to models.Recipient, notificationID string) error
}

// Client is an open client context (a browser tab, an app window).
type Client interface {
	ID() string
	URL() string
	Type() models.ClientType
}

// Focuser is implemented by clients that can be brought to the foreground.
type Focuser interface {
	Focus(ctx context.Context) error
}

// Clients enumerates open client contexts.
type Clients interface {
	MatchAll(ctx context.Context, query models.ClientQuery) ([]Client, error)
}

// WindowOpener opens a new client window at url.
type WindowOpener interface {
	OpenWindow(ctx context.Context, userID uuid.UUID, url string) (Client, error)
}
