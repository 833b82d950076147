package clients

import "guard-relay/shared/models"

// Message - кадр протокола между relay и клиентским окном (в обе стороны).
type Message struct {
	Type           string                      `json:"type"`
	NotificationID string                      `json:"notification_id,omitempty"`
	Title          string                      `json:"title,omitempty"`
	Options        *models.NotificationOptions `json:"options,omitempty"`
	URL            string                      `json:"url,omitempty"`
	Action         string                      `json:"action,omitempty"`
}
