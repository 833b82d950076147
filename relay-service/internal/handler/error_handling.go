package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"guard-relay/shared/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func errInvalidQuery(param string) error {
	return fmt.Errorf("%w: invalid query parameter %q", models.ErrBadRequest, param)
}

func handleServiceError(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	var errResp models.ErrorResponse

	switch {
	case errors.Is(err, models.ErrBadRequest):
		statusCode = http.StatusBadRequest
		errResp = models.ErrorResponse{Code: models.ErrCodeBadRequest, Message: err.Error()}
	case errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		errResp = models.ErrorResponse{Code: models.ErrCodeNotFound, Message: "Notification not found"}
	case errors.Is(err, models.ErrNoClient), errors.Is(err, models.ErrClientGone):
		statusCode = http.StatusConflict
		errResp = models.ErrorResponse{Code: models.ErrCodeNoClient, Message: "No client window available"}
	case errors.Is(err, models.ErrShuttingDown):
		statusCode = http.StatusServiceUnavailable
		errResp = models.ErrorResponse{Code: models.ErrCodeUnavailable, Message: "Service is shutting down"}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		statusCode = http.StatusServiceUnavailable
		errResp = models.ErrorResponse{Code: models.ErrCodeUnavailable, Message: "Request cancelled"}
	case errors.Is(err, models.ErrDisplayFailed):
		statusCode = http.StatusBadGateway
		errResp = models.ErrorResponse{Code: models.ErrCodeDisplay, Message: "Notification could not be displayed"}
	default:
		logger.Error("Unhandled internal error", zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResp = models.ErrorResponse{Code: models.ErrCodeInternal, Message: "An unexpected internal error occurred"}
	}

	c.AbortWithStatusJSON(statusCode, errResp)
}
