package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsShown = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_notifications_shown_total",
		Help: "Notifications handed to display hosts, by status.",
	}, []string{"status"})

	FallbacksUsed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_notification_fallbacks_total",
		Help: "Times a fallback text replaced a missing title or body.",
	}, []string{"field"})

	NotificationClicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_notification_clicks_total",
		Help: "Notification clicks by routing outcome.",
	}, []string{"outcome"})

	DisplaySends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_display_sends_total",
		Help: "Sends per display host, by status.",
	}, []string{"host", "status"})

	PushMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_push_messages_total",
		Help: "Push payloads consumed from the transport, by result.",
	}, []string{"result"})

	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connected_clients",
		Help: "Client contexts currently connected over WebSocket.",
	})
)
