package app

import (
	"sync/atomic"
	"time"
)

// Metrics are process-wide counters exposed on the /metrics endpoint.
type Metrics struct {
	ConnectedClients atomic.Int64

	TotalConnections atomic.Uint64
	TotalDisconnects atomic.Uint64
	MessagesIn       atomic.Uint64
	MessagesOut      atomic.Uint64
	Broadcasts       atomic.Uint64
	DroppedSends     atomic.Uint64
	KickedSlow       atomic.Uint64
	UploadsCompleted atomic.Uint64

	StartTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

type MetricsSnapshot struct {
	UptimeSeconds float64 `json:"uptimeSeconds"`

	ConnectedClients int64 `json:"connectedClients"`

	TotalConnections uint64 `json:"totalConnections"`
	TotalDisconnects uint64 `json:"totalDisconnects"`
	MessagesIn       uint64 `json:"messagesIn"`
	MessagesOut      uint64 `json:"messagesOut"`
	Broadcasts       uint64 `json:"broadcasts"`
	DroppedSends     uint64 `json:"droppedSends"`
	KickedSlow       uint64 `json:"kickedSlowClients"`
	UploadsCompleted uint64 `json:"uploadsCompleted"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds: time.Since(m.StartTime).Seconds(),

		ConnectedClients: m.ConnectedClients.Load(),

		TotalConnections: m.TotalConnections.Load(),
		TotalDisconnects: m.TotalDisconnects.Load(),
		MessagesIn:       m.MessagesIn.Load(),
		MessagesOut:      m.MessagesOut.Load(),
		Broadcasts:       m.Broadcasts.Load(),
		DroppedSends:     m.DroppedSends.Load(),
		KickedSlow:       m.KickedSlow.Load(),
		UploadsCompleted: m.UploadsCompleted.Load(),
	}
}
