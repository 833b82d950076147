package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"guard-relay/shared/interfaces"
	"guard-relay/shared/models"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check
var _ interfaces.DeliveryJournal = (*PgDeliveryJournal)(nil)

// Journal event kinds.
const (
	JournalEventShown   = "shown"
	JournalEventClicked = "clicked"
)

// DBTX - общий интерфейс для pgxpool.Pool и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	pgxscan.Querier
}

var _ DBTX = (*pgxpool.Pool)(nil)

// JournalEntry - одна строка notification_deliveries.
type JournalEntry struct {
	ID             int64      `db:"id" json:"id"`
	NotificationID string     `db:"notification_id" json:"notification_id"`
	UserID         *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	Event          string     `db:"event" json:"event"`
	Title          *string    `db:"title" json:"title,omitempty"`
	Body           *string    `db:"body" json:"body,omitempty"`
	Outcome        *string    `db:"outcome" json:"outcome,omitempty"`
	ClientID       *string    `db:"client_id" json:"client_id,omitempty"`
	TargetURL      *string    `db:"target_url" json:"target_url,omitempty"`
	Data           []byte     `db:"data" json:"data,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

const (
	insertJournalEntryQuery = `
		INSERT INTO notification_deliveries
			(notification_id, user_id, event, title, body, outcome, client_id, target_url, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	listJournalByNotificationQuery = `
		SELECT id, notification_id, user_id, event, title, body, outcome, client_id, target_url, data, created_at
		FROM notification_deliveries
		WHERE notification_id = $1
		ORDER BY id`
)

// PgDeliveryJournal пишет историю доставки в PostgreSQL.
type PgDeliveryJournal struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgDeliveryJournal создает журнал поверх пула или транзакции.
func NewPgDeliveryJournal(db DBTX, logger *zap.Logger) *PgDeliveryJournal {
	return &PgDeliveryJournal{
		db:     db,
		logger: logger.Named("PgDeliveryJournal"),
	}
}

func nullableUserID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (j *PgDeliveryJournal) insert(ctx context.Context, e JournalEntry) error {
	_, err := j.db.Exec(ctx, insertJournalEntryQuery,
		e.NotificationID, e.UserID, e.Event, e.Title, e.Body, e.Outcome, e.ClientID, e.TargetURL, e.Data,
	)
	if err != nil {
		j.logger.Error("Failed to insert journal entry",
			zap.Error(err),
			zap.String("notification_id", e.NotificationID),
			zap.String("event", e.Event),
		)
		return fmt.Errorf("failed to insert %s journal entry for %s: %w", e.Event, e.NotificationID, err)
	}
	return nil
}

// RecordShown записывает показ уведомления.
func (j *PgDeliveryJournal) RecordShown(ctx context.Context, n models.ShownNotification) error {
	var data []byte
	if n.Options.Data != nil {
		raw, err := json.Marshal(n.Options.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal notification data: %w", err)
		}
		data = raw
	}
	return j.insert(ctx, JournalEntry{
		NotificationID: n.ID,
		UserID:         nullableUserID(n.UserID),
		Event:          JournalEventShown,
		Title:          nullableString(n.Title),
		Body:           nullableString(n.Options.Body),
		Data:           data,
	})
}

// RecordClick записывает результат обработки клика.
func (j *PgDeliveryJournal) RecordClick(ctx context.Context, event models.ClickEvent, result models.ClickResult) error {
	return j.insert(ctx, JournalEntry{
		NotificationID: event.NotificationID,
		UserID:         nullableUserID(event.UserID),
		Event:          JournalEventClicked,
		Outcome:        nullableString(string(result.Outcome)),
		ClientID:       nullableString(result.ClientID),
		TargetURL:      nullableString(result.URL),
	})
}

// ListByNotification возвращает все записи по уведомлению в порядке добавления.
func (j *PgDeliveryJournal) ListByNotification(ctx context.Context, notificationID string) ([]JournalEntry, error) {
	var entries []JournalEntry
	if err := pgxscan.Select(ctx, j.db, &entries, listJournalByNotificationQuery, notificationID); err != nil {
		j.logger.Error("Failed to list journal entries", zap.Error(err), zap.String("notification_id", notificationID))
		return nil, fmt.Errorf("failed to list journal entries for %s: %w", notificationID, err)
	}
	return entries, nil
}
