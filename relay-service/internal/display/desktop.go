package display

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"guard-relay/relay-service/internal/config"
	"guard-relay/relay-service/internal/relay"
	"guard-relay/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// commandRunner запускает внешнюю команду и ждет ее завершения.
type commandRunner func(ctx context.Context, name string, args ...string) error

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (output: %s)", name, err, out)
	}
	return nil
}

// powershellLiteral заключает s в одинарные кавычки PowerShell. Внутри таких строк
// $(...) не раскрывается; кавычки (включая типографские, которые PowerShell тоже
// считает одинарными) удваиваются.
func powershellLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'', '\u2018', '\u2019', '\u201A', '\u201B':
			b.WriteRune(r)
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}

// DesktopHost показывает уведомления средствами ОС и открывает ссылки в браузере по умолчанию.
type DesktopHost struct {
	appName string
	icon    string
	run     commandRunner
	logger  *zap.Logger
}

var (
	_ Host               = (*DesktopHost)(nil)
	_ relay.WindowOpener = (*DesktopHost)(nil)
)

// NewDesktopHost fails when the platform notifier is not installed.
func NewDesktopHost(cfg config.DesktopConfig, logger *zap.Logger) (*DesktopHost, error) {
	name, _ := notifyCommand(cfg.AppName, "", "", "")
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("desktop notifier %q not available: %w", name, err)
	}
	logger.Info("Desktop host initialized", zap.String("notifier", name), zap.String("app_name", cfg.AppName))
	return newDesktopHost(cfg, runCommand, logger), nil
}

func newDesktopHost(cfg config.DesktopConfig, run commandRunner, logger *zap.Logger) *DesktopHost {
	return &DesktopHost{
		appName: cfg.AppName,
		icon:    cfg.IconPath,
		run:     run,
		logger:  logger.Named("desktop_host"),
	}
}

func (h *DesktopHost) Name() string { return "desktop" }

// Show ignores the recipient: the desktop belongs to a single user.
func (h *DesktopHost) Show(ctx context.Context, to models.Recipient, title string, opts models.NotificationOptions) error {
	name, args := notifyCommand(h.appName, title, opts.Body, h.icon)
	if err := h.run(ctx, name, args...); err != nil {
		return fmt.Errorf("desktop notify: %w", err)
	}
	h.logger.Debug("Desktop notification shown", zap.String("notification_id", opts.Tag))
	return nil
}

// Системные уведомления закрываются сами.
func (h *DesktopHost) Close(ctx context.Context, to models.Recipient, notificationID string) error {
	return nil
}

// OpenWindow opens url in the default browser.
func (h *DesktopHost) OpenWindow(ctx context.Context, userID uuid.UUID, url string) (relay.Client, error) {
	name, args := openCommand(url)
	if err := h.run(ctx, name, args...); err != nil {
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	h.logger.Info("Browser window opened", zap.String("url", url))
	return &browserWindow{id: uuid.NewString(), url: url}, nil
}

// browserWindow - окно, открытое через ОС. Фокусировать его позже нельзя.
type browserWindow struct {
	id  string
	url string
}

func (w *browserWindow) ID() string              { return w.id }
func (w *browserWindow) URL() string             { return w.url }
func (w *browserWindow) Type() models.ClientType { return models.ClientTypeWindow }
