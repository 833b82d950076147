package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"guard-relay/shared/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGinAuth(t *testing.T) {
	userID := uuid.New()
	verifier := func(ctx context.Context, token string) (uuid.UUID, error) {
		switch token {
		case "good":
			return userID, nil
		case "expired":
			return uuid.Nil, models.ErrTokenExpired
		case "boom":
			return uuid.Nil, assert.AnError
		}
		return uuid.Nil, models.ErrTokenInvalid
	}

	router := gin.New()
	router.GET("/me", GinAuth(verifier, zap.NewNop()), func(c *gin.Context) {
		fromCtx, ok := models.GetUserIDFromContext(c.Request.Context())
		assert.True(t, ok)
		assert.Equal(t, userID, fromCtx)
		c.String(http.StatusOK, c.MustGet("user_id").(uuid.UUID).String())
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"malformed", "Token good", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusOK},
		{"expired", "Bearer expired", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
		{"verifier failure", "Bearer boom", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, userID.String(), w.Body.String())
			}
		})
	}
}

func TestInterServiceAuth(t *testing.T) {
	newRouter := func(secret string) *gin.Engine {
		r := gin.New()
		r.POST("/internal", InterServiceAuth(secret, zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusNoContent) })
		return r
	}

	do := func(r *gin.Engine, token string) int {
		req := httptest.NewRequest(http.MethodPost, "/internal", nil)
		if token != "" {
			req.Header.Set(InterServiceTokenHeader, token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, do(newRouter("s"), "s"))
	assert.Equal(t, http.StatusUnauthorized, do(newRouter("s"), "x"))
	assert.Equal(t, http.StatusUnauthorized, do(newRouter("s"), ""))
	assert.Equal(t, http.StatusUnauthorized, do(newRouter(""), ""))
}

func TestGinZapLogger_SetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(GinZapLogger(zap.NewNop()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}
