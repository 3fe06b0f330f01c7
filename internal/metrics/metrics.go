// Package metrics declares the Prometheus instruments of the realtime core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "careerlink_connections_active",
			Help: "Currently open realtime connections",
		},
	)

	// MessagesDelivered counts pushes that reached a live client,
	// split by path: "live" at send time, "flush" on reconnect.
	MessagesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerlink_messages_delivered_total",
			Help: "Messages pushed to a live connection",
		},
		[]string{"path"},
	)

	MessagesQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "careerlink_messages_queued_total",
			Help: "Messages parked for offline recipients",
		},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "careerlink_notifications_created_total",
			Help: "Notifications persisted, by priority",
		},
		[]string{"priority"},
	)

	PresenceByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "careerlink_presence_sessions",
			Help: "Live sessions by presence status",
		},
		[]string{"status"},
	)

	ProcessRSSBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "careerlink_process_rss_bytes",
			Help: "Resident memory of the server process",
		},
	)

	ProcessCPUPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "careerlink_process_cpu_percent",
			Help: "CPU usage of the server process",
		},
	)
)
