package handler

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"

	"guard-relay/relay-service/internal/clients"
	"guard-relay/shared/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			return slices.Contains(allowedOrigins, origin)
		},
	}
}

// GET /ws?token=&url=&type=&controlled=
func (h *RelayHandler) serveWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Unauthorized: Missing token"})
		return
	}
	userID, err := h.verifier(c.Request.Context(), token)
	if err != nil {
		h.logger.Warn("WebSocket token rejected", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Code: models.ErrCodeUnauthorized, Message: "Unauthorized: Invalid token"})
		return
	}

	info, err := parseClientInfo(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: err.Error()})
		return
	}
	info.UserID = userID

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrader уже записал ответ
		h.logger.Error("Failed to upgrade connection", zap.Error(err), zap.String("user_id", userID.String()))
		return
	}
	client := h.connections.ServeConn(conn, info)
	h.logger.Info("WebSocket connection established", zap.String("client_id", client.ID()), zap.String("user_id", userID.String()))
}

func parseClientInfo(c *gin.Context) (clients.ClientInfo, error) {
	info := clients.ClientInfo{Type: models.ClientTypeWindow, Controlled: true}

	if raw := c.Query("url"); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			return info, errInvalidQuery("url")
		}
		info.URL = u.String()
	}
	switch typ := models.ClientType(c.Query("type")); typ {
	case "":
	case models.ClientTypeWindow, models.ClientTypeWorker:
		info.Type = typ
	default:
		return info, errInvalidQuery("type")
	}
	if raw := c.Query("controlled"); raw != "" {
		controlled, err := strconv.ParseBool(raw)
		if err != nil {
			return info, errInvalidQuery("controlled")
		}
		info.Controlled = controlled
	}
	return info, nil
}
