package clients

import (
	"context"
	"slices"
	"sync"

	"guard-relay/relay-service/internal/display"
	"guard-relay/relay-service/internal/metrics"
	"guard-relay/relay-service/internal/relay"
	"guard-relay/shared/constants"
	"guard-relay/shared/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ClickHandler получает клики по уведомлениям, пришедшие от окон.
type ClickHandler func(ctx context.Context, event models.ClickEvent)

var (
	_ relay.Clients      = (*Registry)(nil)
	_ relay.WindowOpener = (*Registry)(nil)
	_ display.Host       = (*Registry)(nil)
)

// Registry хранит подключенные окна в порядке подключения.
type Registry struct {
	mu      sync.RWMutex
	clients []*Client
	onClick ClickHandler
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{logger: logger.Named("clients")}
}

// SetClickHandler must be called before connections are served.
func (r *Registry) SetClickHandler(h ClickHandler) {
	r.mu.Lock()
	r.onClick = h
	r.mu.Unlock()
}

// ServeConn registers an upgraded connection and starts its pumps.
func (r *Registry) ServeConn(conn *websocket.Conn, info ClientInfo) *Client {
	c := newClient(info)
	c.conn = conn
	r.Register(c)

	log := r.logger.With(zap.String("client_id", c.id), zap.String("user_id", c.userID.String()))
	go c.writePump(log)
	go c.readPump(r, log)
	return c
}

func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	r.clients = append(r.clients, c)
	n := len(r.clients)
	r.mu.Unlock()

	metrics.ConnectedClients.Inc()
	r.logger.Info("Client connected",
		zap.String("client_id", c.id),
		zap.String("user_id", c.userID.String()),
		zap.String("url", c.URL()),
		zap.Int("connected", n),
	)
}

// Unregister is idempotent.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	idx := slices.Index(r.clients, c)
	if idx >= 0 {
		r.clients = slices.Delete(r.clients, idx, idx+1)
	}
	r.mu.Unlock()

	if idx < 0 {
		return
	}
	c.close()
	metrics.ConnectedClients.Dec()
	r.logger.Info("Client disconnected", zap.String("client_id", c.id), zap.String("user_id", c.userID.String()))
}

// CloseAll disconnects every client.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	all := slices.Clone(r.clients)
	r.mu.RUnlock()
	for _, c := range all {
		r.Unregister(c)
	}
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// MatchAll returns clients matching query in connection order.
func (r *Registry) MatchAll(ctx context.Context, query models.ClientQuery) ([]relay.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []relay.Client
	for _, c := range r.clients {
		if query.Matches(c.userID, c.typ, c.controlled) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *Registry) forUser(userID uuid.UUID) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Client
	for _, c := range r.clients {
		if userID == uuid.Nil || c.userID == userID {
			out = append(out, c)
		}
	}
	return out
}

// OpenWindow asks the most recently connected window of the user to open url.
// The new window registers itself once it connects, so no client is returned.
// ErrNoClient means no window could take the command.
func (r *Registry) OpenWindow(ctx context.Context, userID uuid.UUID, url string) (relay.Client, error) {
	windows := r.forUser(userID)
	for i := len(windows) - 1; i >= 0; i-- {
		c := windows[i]
		if c.typ != models.ClientTypeWindow {
			continue
		}
		err := c.Send(ctx, Message{Type: constants.WSEventOpenWindow, URL: url})
		if err == nil {
			r.logger.Info("Open window requested", zap.String("client_id", c.id), zap.String("url", url))
			return nil, nil
		}
		r.logger.Warn("Client could not take open_window", zap.String("client_id", c.id), zap.Error(err))
	}
	return nil, models.ErrNoClient
}

func (r *Registry) Name() string { return "websocket" }

// Show delivers the notification to every window of the recipient. A recipient
// without a user id reaches every connected window.
func (r *Registry) Show(ctx context.Context, to models.Recipient, title string, opts models.NotificationOptions) error {
	return r.deliver(ctx, to.UserID, Message{
		Type:           constants.WSEventShowNotification,
		NotificationID: opts.Tag,
		Title:          title,
		Options:        &opts,
	})
}

func (r *Registry) Close(ctx context.Context, to models.Recipient, notificationID string) error {
	return r.deliver(ctx, to.UserID, Message{Type: constants.WSEventCloseNotification, NotificationID: notificationID})
}

func (r *Registry) deliver(ctx context.Context, userID uuid.UUID, msg Message) error {
	targets := r.forUser(userID)
	if len(targets) == 0 {
		// Пользователь офлайн: доставку берут на себя push хосты.
		r.logger.Debug("No connected windows for recipient", zap.String("type", msg.Type), zap.String("user_id", userID.String()))
		return nil
	}
	delivered := 0
	var lastErr error
	for _, c := range targets {
		if err := c.Send(ctx, msg); err != nil {
			r.logger.Warn("Failed to queue message", zap.String("type", msg.Type), zap.String("client_id", c.id), zap.Error(err))
			lastErr = err
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return lastErr
	}
	return nil
}

func (r *Registry) handleMessage(c *Client, msg Message) {
	log := r.logger.With(zap.String("client_id", c.id), zap.String("type", msg.Type))
	switch msg.Type {
	case constants.WSEventNotificationClick:
		if msg.NotificationID == "" {
			log.Warn("Click without notification id ignored")
			return
		}
		r.mu.RLock()
		onClick := r.onClick
		r.mu.RUnlock()
		if onClick == nil {
			log.Warn("No click handler registered")
			return
		}
		event := models.ClickEvent{NotificationID: msg.NotificationID, UserID: c.userID, Action: msg.Action}
		// Обработка клика сама пишет в окна, поэтому не блокируем чтение.
		go onClick(context.Background(), event)
	case constants.WSEventNavigate:
		c.setURL(msg.URL)
		log.Debug("Client navigated", zap.String("url", msg.URL))
	default:
		log.Warn("Unexpected client message ignored")
	}
}
