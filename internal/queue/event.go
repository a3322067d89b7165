// Package queue carries session lifecycle events to RabbitMQ and back
// into the audit log.
package queue

// Event types published on the session events queue.
const (
	EventSessionIssued   = "session.issued"
	EventSessionRevoked  = "session.revoked"
	EventSessionsExpired = "session.expired"
)

// SessionEvent is published whenever a session is issued, revoked, or
// swept by the reaper.  It carries enough context for the audit consumer
// to write a line without querying the database.  The token itself is
// never included.
type SessionEvent struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	Email      string `json:"email,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	Count      int64  `json:"count,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
