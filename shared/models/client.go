package models

import "github.com/google/uuid"

// ClientType - тип клиентского контекста.
type ClientType string

const (
	ClientTypeWindow ClientType = "window"
	ClientTypeWorker ClientType = "worker"
	ClientTypeAll    ClientType = "all"
)

// ClientQuery ограничивает набор клиентов при перечислении.
type ClientQuery struct {
	UserID              uuid.UUID
	Type                ClientType
	IncludeUncontrolled bool
}

// Matches reports whether a client with the given attributes satisfies the query.
func (q ClientQuery) Matches(userID uuid.UUID, typ ClientType, controlled bool) bool {
	if q.UserID != uuid.Nil && q.UserID != userID {
		return false
	}
	if q.Type != "" && q.Type != ClientTypeAll && q.Type != typ {
		return false
	}
	return controlled || q.IncludeUncontrolled
}
