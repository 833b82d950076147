package handler

import (
	"encoding/json"
	"net/http"

	"guard-relay/shared/database"
	"guard-relay/shared/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type clickRequest struct {
	Action string `json:"action"`
}

// POST /internal/push - тот же путь, что и сообщение из очереди, но синхронно.
func (h *RelayHandler) push(c *gin.Context) {
	var payload models.PushPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("Invalid push payload", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid push payload"})
		return
	}
	if err := h.relay.HandleBackgroundMessage(c.Request.Context(), payload); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// POST /notifications/:id/click
func (h *RelayHandler) clickNotification(c *gin.Context) {
	userID, ok := c.Get("user_id")
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Unauthorized"})
		return
	}

	var req clickRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: "Invalid request body"})
			return
		}
	}

	result, err := h.relay.HandleNotificationClick(c.Request.Context(), models.ClickEvent{
		NotificationID: c.Param("id"),
		UserID:         userID.(uuid.UUID),
		Action:         req.Action,
	})
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type journalEntryResponse struct {
	database.JournalEntry
	Data json.RawMessage `json:"data,omitempty"`
}

// GET /internal/notifications/:id/journal
func (h *RelayHandler) journalEntries(c *gin.Context) {
	if h.journal == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, models.ErrorResponse{Code: models.ErrCodeUnavailable, Message: "Delivery journal is disabled"})
		return
	}
	entries, err := h.journal.ListByNotification(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}
	resp := make([]journalEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, journalEntryResponse{JournalEntry: e, Data: json.RawMessage(e.Data)})
	}
	c.JSON(http.StatusOK, resp)
}
