// Package telemetry emits session lifecycle audit events, best-effort and
// asynchronously, to OTel Logs and optionally to Kafka.
package telemetry

import "time"

// Event types emitted by the session service.
const (
	EventLogin   = "session.login"
	EventRefresh = "session.refresh"
	EventExpired = "session.expired"
	EventLogout  = "session.logout"
	EventPurge   = "session.purge"
)

// Event is a single session lifecycle audit event. Serialized as JSON on the
// wire (Kafka) and mapped to attributes for OTel log records.
type Event struct {
	SessionID string    `json:"sessionId,omitempty"`
	EventType string    `json:"eventType"`
	Source    string    `json:"source,omitempty"` // "http" or "reaper"
	ClientIP  string    `json:"clientIp,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
