package model

import "time"

// EventKind classifies a suspicious client-side signal
type EventKind string

const (
	EventTabSwitch        EventKind = "tab-switch"
	EventBlur             EventKind = "blur"
	EventExitFullscreen   EventKind = "exit-fullscreen"
	EventDevtoolsOpen     EventKind = "devtools-open"
	EventCopy             EventKind = "copy"
	EventPaste            EventKind = "paste"
	EventContextMenu      EventKind = "context-menu"
	EventResize           EventKind = "resize"
	EventVisibilityHidden EventKind = "visibility-hidden"
	EventNetworkOffline   EventKind = "network-offline"
	EventMultiMonitorHint EventKind = "multi-monitor-hint"
)

// ProctorEvent is an append-only log entry on an attempt.
// Never mutated or deleted once recorded.
type ProctorEvent struct {
	ID        string            `json:"id" bson:"_id,omitempty"`
	AttemptID string            `json:"attemptId" bson:"attemptId"`
	Kind      EventKind         `json:"kind" bson:"kind"`
	At        time.Time         `json:"at" bson:"at"`
	Meta      map[string]string `json:"meta,omitempty" bson:"meta,omitempty"`
}

// RiskBand buckets a proctoring score for display
type RiskBand string

const (
	RiskLow    RiskBand = "low"    // [0, 40)
	RiskMedium RiskBand = "medium" // [40, 75)
	RiskHigh   RiskBand = "high"   // [75, 100]
)
