package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"guard-relay/relay-service/internal/metrics"
	"guard-relay/shared/constants"
	"guard-relay/shared/interfaces"
	"guard-relay/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options - статические параметры отображения и маршрутизации клика.
type Options struct {
	FallbackTitle string
	FallbackBody  string
	Icon          string
	Badge         string
	Origin        string // https://app.example
	TargetPath    string // путь, который открывается по клику
}

// DefaultOptions возвращает значения, совпадающие с веб-клиентом.
func DefaultOptions(origin string) Options {
	return Options{
		FallbackTitle: constants.PushFallbackTitle,
		FallbackBody:  constants.PushFallbackBody,
		Icon:          constants.PushDefaultIcon,
		Badge:         constants.PushDefaultBadge,
		Origin:        origin,
		TargetPath:    constants.PushClickTargetPath,
	}
}

// Relay renders background push payloads and routes clicks on them to client windows.
// Its handlers are stateless and safe for concurrent use.
type Relay struct {
	registration Registration
	clients      Clients
	opener       WindowOpener // nil: хост не умеет открывать окна
	store        interfaces.NotificationStore
	journal      interfaces.DeliveryJournal // nil: журнал отключен
	logger       *zap.Logger
	opts         Options
	targetURL    string

	mu      sync.Mutex
	closing bool // выставляется в Wait; новые продолжения отклоняются
	pending sync.WaitGroup
	now     func() time.Time
	newID   func() string
}

// New creates a Relay. opener and journal may be nil.
func New(
	registration Registration,
	clients Clients,
	opener WindowOpener,
	store interfaces.NotificationStore,
	journal interfaces.DeliveryJournal,
	opts Options,
	logger *zap.Logger,
) (*Relay, error) {
	if registration == nil || clients == nil || store == nil {
		return nil, errors.New("relay: registration, clients and store are required")
	}
	target, err := ResolveTargetURL(opts.Origin, opts.TargetPath)
	if err != nil {
		return nil, err
	}
	return &Relay{
		registration: registration,
		clients:      clients,
		opener:       opener,
		store:        store,
		journal:      journal,
		logger:       logger.Named("relay"),
		opts:         opts,
		targetURL:    target,
		now:          time.Now,
		newID:        uuid.NewString,
	}, nil
}

// TargetURL is the absolute URL a click navigates to.
func (r *Relay) TargetURL() string {
	return r.targetURL
}

// ResolveTargetURL resolves path against origin the way new URL(path, origin) does.
func ResolveTargetURL(origin, path string) (string, error) {
	base, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid origin %q: scheme and host are required", origin)
	}
	if path == "" {
		path = constants.PushClickTargetPath
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid target path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// DisplayText returns the title and body to show for payload. Missing or empty
// fields are replaced by the fallbacks.
func DisplayText(payload models.PushPayload, fallbackTitle, fallbackBody string) (title, body string) {
	title, body = fallbackTitle, fallbackBody
	if n := payload.Notification; n != nil {
		if n.Title != "" {
			title = n.Title
		}
		if n.Body != "" {
			body = n.Body
		}
	}
	return title, body
}

// HandleBackgroundMessage derives display text for payload and asks the display host to
// render it. The payload data is attached unmodified. A display failure is returned to the
// caller; nothing is retried.
func (r *Relay) HandleBackgroundMessage(ctx context.Context, payload models.PushPayload) error {
	title, body := DisplayText(payload, r.opts.FallbackTitle, r.opts.FallbackBody)
	if n := payload.Notification; n == nil || n.Title == "" {
		metrics.FallbacksUsed.WithLabelValues("title").Inc()
	}
	if n := payload.Notification; n == nil || n.Body == "" {
		metrics.FallbacksUsed.WithLabelValues("body").Inc()
	}

	shown := models.ShownNotification{
		ID:     r.newID(),
		UserID: payload.UserID,
		Title:  title,
		Options: models.NotificationOptions{
			Body:  body,
			Icon:  r.opts.Icon,
			Badge: r.opts.Badge,
			Data:  payload.Data,
		},
		ShownAt: r.now().UTC(),
	}
	shown.Options.Tag = shown.ID
	if payload.Notification != nil {
		shown.Options.Image = payload.Notification.Image
	}

	log := r.logger.With(
		zap.String("notification_id", shown.ID),
		zap.String("user_id", payload.UserID.String()),
		zap.String("title", title),
	)
	log.Debug("Background message received", zap.Bool("has_notification", payload.Notification != nil), zap.Int("data_keys", len(payload.Data)))

	// Данные нужны для клика; без них уведомление все равно показываем.
	if err := r.store.Save(ctx, shown); err != nil {
		log.Warn("Failed to store shown notification", zap.Error(err))
	}

	to := models.Recipient{UserID: payload.UserID, DeviceTokens: payload.DeviceTokens}
	if err := r.registration.ShowNotification(ctx, to, title, shown.Options); err != nil {
		metrics.NotificationsShown.WithLabelValues("error").Inc()
		log.Error("Failed to show notification", zap.Error(err))
		return fmt.Errorf("show notification %s: %w: %w", shown.ID, models.ErrDisplayFailed, err)
	}
	metrics.NotificationsShown.WithLabelValues("ok").Inc()
	log.Info("Notification shown")

	if r.journal != nil {
		if err := r.journal.RecordShown(ctx, shown); err != nil {
			log.Warn("Failed to journal shown notification", zap.Error(err))
		}
	}
	return nil
}

// HandleNotificationClick dismisses the clicked notification, then focuses an open window
// already at the target URL or opens a new one. The routing continuation is registered as
// pending work: the call blocks on it and Wait does not return before it finishes, even if
// ctx is cancelled first. Once Wait has been called new clicks fail with ErrShuttingDown.
func (r *Relay) HandleNotificationClick(ctx context.Context, event models.ClickEvent) (models.ClickResult, error) {
	log := r.logger.With(zap.String("notification_id", event.NotificationID))
	if r.isClosing() {
		log.Warn("Click rejected, relay is shutting down")
		return models.ClickResult{URL: r.targetURL, Outcome: models.ClickOutcomeNone}, models.ErrShuttingDown
	}
	log.Info("Notification clicked", zap.String("action", event.Action))

	var data map[string]any
	userID := event.UserID
	shown, err := r.store.Get(ctx, event.NotificationID)
	switch {
	case err == nil:
		data = shown.Options.Data
		if userID == uuid.Nil {
			userID = shown.UserID
		}
	case errors.Is(err, models.ErrNotFound):
		log.Warn("Clicked notification is unknown or expired")
	default:
		log.Warn("Failed to load clicked notification", zap.Error(err))
	}
	log = log.With(zap.String("user_id", userID.String()))

	if err := r.store.Delete(ctx, event.NotificationID); err != nil {
		log.Warn("Failed to delete clicked notification", zap.Error(err))
	}
	if err := r.registration.CloseNotification(ctx, models.Recipient{UserID: userID}, event.NotificationID); err != nil {
		log.Warn("Failed to close notification", zap.Error(err))
	}

	result, err := r.waitUntil(ctx, func(ctx context.Context) (models.ClickResult, error) {
		return r.routeClick(ctx, userID)
	})
	if err != nil {
		metrics.NotificationClicks.WithLabelValues("error").Inc()
		log.Error("Failed to route notification click", zap.Error(err))
		return models.ClickResult{URL: r.targetURL, Outcome: models.ClickOutcomeNone}, err
	}
	result.Data = data
	metrics.NotificationClicks.WithLabelValues(string(result.Outcome)).Inc()
	log.Info("Notification click routed", zap.String("outcome", string(result.Outcome)), zap.String("client_id", result.ClientID))

	if r.journal != nil {
		if err := r.journal.RecordClick(ctx, event, result); err != nil {
			log.Warn("Failed to journal notification click", zap.Error(err))
		}
	}
	return result, nil
}

func (r *Relay) routeClick(ctx context.Context, userID uuid.UUID) (models.ClickResult, error) {
	result := models.ClickResult{URL: r.targetURL, Outcome: models.ClickOutcomeNone}

	windows, err := r.clients.MatchAll(ctx, models.ClientQuery{
		UserID:              userID,
		Type:                models.ClientTypeWindow,
		IncludeUncontrolled: true,
	})
	if err != nil {
		return result, fmt.Errorf("match clients: %w", err)
	}

	for _, c := range windows {
		focuser, ok := c.(Focuser)
		if c.URL() != r.targetURL || !ok {
			continue
		}
		if err := focuser.Focus(ctx); err != nil {
			return result, fmt.Errorf("focus client %s: %w", c.ID(), err)
		}
		result.Outcome = models.ClickOutcomeFocused
		result.ClientID = c.ID()
		return result, nil
	}

	if r.opener == nil {
		r.logger.Debug("No matching window and host cannot open windows", zap.String("url", r.targetURL))
		return result, nil
	}
	opened, err := r.opener.OpenWindow(ctx, userID, r.targetURL)
	if errors.Is(err, models.ErrNoClient) {
		r.logger.Debug("No window can open the target, caller opens it", zap.String("url", r.targetURL))
		result.Outcome = models.ClickOutcomeOpenRequested
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("open window: %w", err)
	}
	result.Outcome = models.ClickOutcomeOpened
	if opened != nil {
		result.ClientID = opened.ID()
	}
	return result, nil
}

// waitUntil runs fn as pending work detached from ctx cancellation.
func (r *Relay) waitUntil(ctx context.Context, fn func(context.Context) (models.ClickResult, error)) (models.ClickResult, error) {
	type outcome struct {
		result models.ClickResult
		err    error
	}
	done := make(chan outcome, 1)

	// Add под мьютексом: после того как Wait выставил closing, счетчик не растет.
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return models.ClickResult{}, models.ErrShuttingDown
	}
	r.pending.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.pending.Done()
		res, err := fn(context.WithoutCancel(ctx))
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return models.ClickResult{}, ctx.Err()
	}
}

func (r *Relay) isClosing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closing
}

// Wait stops accepting clicks and blocks until every pending click continuation
// has finished or ctx is done. It may be called more than once.
func (r *Relay) Wait(ctx context.Context) error {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
