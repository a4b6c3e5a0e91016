package api

import (
	"time"

	"gabagool-mm/internal/engine"
)

// DashboardEvent is the wrapper for every event broadcast over the
// WebSocket hub.
type DashboardEvent struct {
	Type      string      `json:"type"` // "snapshot", "fill", "halt", "resume", "panic_close", "market_selected"
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewSnapshotEvent wraps an initial Snapshot for a newly-connected client.
func NewSnapshotEvent(snap Snapshot) DashboardEvent {
	return DashboardEvent{Type: "snapshot", Timestamp: snap.Timestamp, Data: snap}
}

// dashboardEventFromEngine converts an orchestrator event into the
// dashboard's wire format. The payload is the engine event itself; Type
// and Timestamp are lifted to the envelope so clients can switch on Type
// without unmarshalling Data first.
func dashboardEventFromEngine(evt engine.Event) DashboardEvent {
	return DashboardEvent{Type: evt.Type, Timestamp: evt.Timestamp, Data: evt}
}
