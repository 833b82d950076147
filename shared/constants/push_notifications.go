package constants

// Тексты по умолчанию, если в payload нет заголовка или текста.
const (
	PushFallbackTitle = "Guard Bildirimi"
	PushFallbackBody  = "Yeni bir bildirim var."
)

// Ресурсы, которые прикладываются к каждому уведомлению.
const (
	PushDefaultIcon  = "/icons/Icon-192.png"
	PushDefaultBadge = "/icons/Icon-192.png"
)

// PushClickTargetPath - путь, который открывается по клику (корень приложения).
const PushClickTargetPath = "/"

// Ключи, которые relay добавляет в data payload при доставке через FCM/APNS.
const (
	PushNotificationIDKey = "notification_id"
	PushClickURLKey       = "click_url"
)

// Платформы токенов устройств.
const (
	PlatformWeb     = "web"
	PlatformAndroid = "android"
	PlatformIOS     = "ios"
)
