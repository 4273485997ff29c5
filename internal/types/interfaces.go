// internal/types/interfaces.go
package types

// EventSink receives every event appended to a conversation log. Sinks are
// best-effort: a failing sink is logged by the caller, never surfaced to the
// code doing the logging.
type EventSink interface {
	Record(event *Event) error
}

// InboundQuery is a user query arriving from any front-end (web, telegram,
// CLI, stored task) before it is resolved to a session.
type InboundQuery struct {
	Source     string     `json:"source"`
	SessionKey SessionKey `json:"session_key"`
	UserID     string     `json:"user_id"`
	Text       string     `json:"text"`
}
