package models

import "errors"

// Application-wide standard errors
var (
	ErrNotFound = errors.New("resource not found")

	// Token Errors
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Client routing
	ErrNoClient      = errors.New("no connected client")
	ErrClientGone    = errors.New("client disconnected")
	ErrQueueOverflow = errors.New("client outbound queue is full")

	// Relay is draining pending work and accepts no new clicks
	ErrShuttingDown = errors.New("relay is shutting down")

	// Display
	ErrDisplayFailed = errors.New("notification display failed")

	ErrBadRequest = errors.New("bad request")
)

// Error codes returned in ErrorResponse.Code.
const (
	ErrCodeBadRequest   = 40000
	ErrCodeUnauthorized = 40100
	ErrCodeNotFound     = 40400
	ErrCodeNoClient     = 40901
	ErrCodeDisplay      = 50201
	ErrCodeInternal     = 50000
	ErrCodeUnavailable  = 50300
)

// ErrorResponse - тело ответа с ошибкой.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
