package api

import (
	"context"
	"sync/atomic"

	"questnotify/internal/eventbus"
)

// Collector aggregates bus events into the counters reported by
// GET /api/status.
type Collector struct {
	opened  atomic.Int64
	closed  atomic.Int64
	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewCollector() *Collector { return &Collector{} }

// Run consumes bus events until ctx is done. Counters are best-effort:
// the bus drops events under backpressure rather than blocking
// publishers.
func (c *Collector) Run(ctx context.Context, bus eventbus.Bus) {
	events, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case eventbus.TypeSessionConnected:
				c.opened.Add(1)
			case eventbus.TypeSessionClosed:
				c.closed.Add(1)
			case eventbus.TypeNotifySent:
				c.sent.Add(1)
			case eventbus.TypeNotifyDropped:
				c.dropped.Add(1)
			case eventbus.TypeAudienceFailed:
				c.failed.Add(1)
			}
		}
	}
}

// Counters is the JSON shape embedded in the status response.
type Counters struct {
	SessionsOpened       int64 `json:"sessions_opened"`
	SessionsClosed       int64 `json:"sessions_closed"`
	NotificationsSent    int64 `json:"notifications_sent"`
	NotificationsDropped int64 `json:"notifications_dropped"`
	AudienceFailures     int64 `json:"audience_failures"`
}

func (c *Collector) Snapshot() Counters {
	return Counters{
		SessionsOpened:       c.opened.Load(),
		SessionsClosed:       c.closed.Load(),
		NotificationsSent:    c.sent.Load(),
		NotificationsDropped: c.dropped.Load(),
		AudienceFailures:     c.failed.Load(),
	}
}
