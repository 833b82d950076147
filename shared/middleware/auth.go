package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"guard-relay/shared/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenVerifier проверяет строку токена и возвращает UserID.
// Ошибки: models.ErrTokenInvalid, models.ErrTokenExpired, models.ErrTokenMalformed.
type TokenVerifier func(ctx context.Context, tokenString string) (uuid.UUID, error)

// InterServiceTokenHeader - заголовок для межсервисных вызовов.
const InterServiceTokenHeader = "X-Internal-Service-Token"

// GinAuth проверяет Bearer токен и кладет UserID в контекст запроса и в gin.Context ("user_id").
func GinAuth(verifier TokenVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.With(zap.String("path", c.Request.URL.Path))

		parts := strings.Split(c.GetHeader("Authorization"), " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			log.Warn("Missing or malformed Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Missing token"})
			return
		}

		userID, err := verifier(c.Request.Context(), parts[1])
		if err != nil {
			status := http.StatusUnauthorized
			msg := "Unauthorized: Invalid token"
			switch {
			case errors.Is(err, models.ErrTokenExpired):
				msg = "Unauthorized: Token expired"
			case errors.Is(err, models.ErrTokenMalformed), errors.Is(err, models.ErrTokenInvalid):
			default:
				log.Error("Unexpected token verification error", zap.Error(err))
				status = http.StatusInternalServerError
				msg = "Internal server error during token verification"
			}
			log.Warn("Token verification failed", zap.Error(err))
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		c.Set("user_id", userID)
		c.Request = c.Request.WithContext(models.WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// InterServiceAuth пропускает только запросы с корректным X-Internal-Service-Token.
// Пустой secret закрывает эндпоинт полностью.
func InterServiceAuth(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(InterServiceTokenHeader)
		if secret == "" || token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			logger.Warn("Inter-service token rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Bool("secretConfigured", secret != ""),
			)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid inter-service token"})
			return
		}
		c.Next()
	}
}
