package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PushPayload - сообщение, которое транспорт доставляет, когда у клиента нет активного окна.
// Все поля опциональны.
type PushPayload struct {
	UserID       uuid.UUID         `json:"user_id,omitempty"`       // Получатель (опционально)
	DeviceTokens []string          `json:"device_tokens,omitempty"` // Конкретные токены устройств (опционально)
	Notification *PushNotification `json:"notification,omitempty"`  // Видимая часть уведомления
	Data         map[string]any    `json:"data,omitempty"`          // Непрозрачные данные, передаются как есть
}

// UnmarshalJSON treats an empty or null user_id as uuid.Nil.
func (p *PushPayload) UnmarshalJSON(data []byte) error {
	type plain PushPayload
	aux := struct {
		UserID *string `json:"user_id"`
		*plain
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.UserID = uuid.Nil
	if aux.UserID == nil || *aux.UserID == "" {
		return nil
	}
	id, err := uuid.Parse(*aux.UserID)
	if err != nil {
		return fmt.Errorf("invalid user_id %q: %w", *aux.UserID, err)
	}
	p.UserID = id
	return nil
}

// PushNotification содержит видимые части push-сообщения.
type PushNotification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
	Image string `json:"image,omitempty"` // URL изображения (опционально)
}

// NotificationOptions are the rendering options handed to a display host together with the title.
type NotificationOptions struct {
	Tag   string         `json:"tag"` // ID of the shown notification
	Body  string         `json:"body"`
	Icon  string         `json:"icon"`
	Badge string         `json:"badge"`
	Image string         `json:"image,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Recipient identifies who a notification is rendered for.
type Recipient struct {
	UserID       uuid.UUID
	DeviceTokens []string
}

// ShownNotification is a notification that was handed to a display host and can still be clicked.
type ShownNotification struct {
	ID      string              `json:"id"`
	UserID  uuid.UUID           `json:"user_id"`
	Title   string              `json:"title"`
	Options NotificationOptions `json:"options"`
	ShownAt time.Time           `json:"shown_at"`
}

// ClickEvent is a click on a previously shown notification.
type ClickEvent struct {
	NotificationID string    `json:"notification_id"`
	UserID         uuid.UUID `json:"user_id"`
	Action         string    `json:"action,omitempty"`
}

// ClickOutcome describes how a click was routed.
type ClickOutcome string

const (
	ClickOutcomeFocused ClickOutcome = "focused"
	ClickOutcomeOpened  ClickOutcome = "opened"
	// Открыть окно некому: вызывающая сторона сама открывает ClickResult.URL.
	ClickOutcomeOpenRequested ClickOutcome = "open_requested"
	ClickOutcomeNone          ClickOutcome = "none"
)

// ClickResult is returned once the click continuation has finished.
type ClickResult struct {
	Outcome  ClickOutcome   `json:"outcome"`
	ClientID string         `json:"client_id,omitempty"`
	URL      string         `json:"url"`
	Data     map[string]any `json:"data,omitempty"`
}

// DeviceTokenInfo содержит информацию о токене устройства.
type DeviceTokenInfo struct {
	Token    string `json:"token"`    // FCM или APNS токен
	Platform string `json:"platform"` // web, android, ios
}
