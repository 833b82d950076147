package constants

// Типы сообщений WebSocket между relay и клиентскими окнами.
const (
	// relay -> client
	WSEventFocus             = "focus"
	WSEventOpenWindow        = "open_window"
	WSEventShowNotification  = "show_notification"
	WSEventCloseNotification = "close_notification"

	// client -> relay
	WSEventNotificationClick = "notification_click"
	WSEventNavigate          = "navigate" // клиент сообщает о смене URL
)
