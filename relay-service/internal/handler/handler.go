package handler

import (
	"context"
	"net/http"

	"guard-relay/relay-service/internal/clients"
	"guard-relay/shared/database"
	"guard-relay/shared/middleware"
	"guard-relay/shared/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// NotificationRelay - обработчики событий уведомлений.
type NotificationRelay interface {
	HandleBackgroundMessage(ctx context.Context, payload models.PushPayload) error
	HandleNotificationClick(ctx context.Context, event models.ClickEvent) (models.ClickResult, error)
}

// ConnectionServer регистрирует WebSocket соединения окон.
type ConnectionServer interface {
	ServeConn(conn *websocket.Conn, info clients.ClientInfo) *clients.Client
}

// JournalReader читает историю доставки. Может отсутствовать.
type JournalReader interface {
	ListByNotification(ctx context.Context, notificationID string) ([]database.JournalEntry, error)
}

type RelayHandler struct {
	relay              NotificationRelay
	connections        ConnectionServer
	journal            JournalReader
	verifier           middleware.TokenVerifier
	interServiceSecret string
	upgrader           websocket.Upgrader
	logger             *zap.Logger
}

// NewRelayHandler creates the HTTP handler. journal may be nil.
func NewRelayHandler(
	relay NotificationRelay,
	connections ConnectionServer,
	journal JournalReader,
	verifier middleware.TokenVerifier,
	interServiceSecret string,
	allowedOrigins []string,
	logger *zap.Logger,
) *RelayHandler {
	return &RelayHandler{
		relay:              relay,
		connections:        connections,
		journal:            journal,
		verifier:           verifier,
		interServiceSecret: interServiceSecret,
		upgrader:           newUpgrader(allowedOrigins),
		logger:             logger.Named("handler"),
	}
}

func (h *RelayHandler) RegisterRoutes(router *gin.Engine) {
	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	// Токен окна передается в query, заголовки браузер при апгрейде не отправляет.
	router.GET("/ws", h.serveWS)

	protected := router.Group("/notifications")
	protected.Use(middleware.GinAuth(h.verifier, h.logger))
	{
		protected.POST("/:id/click", h.clickNotification)
	}

	internal := router.Group("/internal")
	internal.Use(middleware.InterServiceAuth(h.interServiceSecret, h.logger))
	{
		internal.POST("/push", h.push)
		internal.GET("/notifications/:id/journal", h.journalEntries)
	}
}
