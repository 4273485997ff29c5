// internal/tracker/export.go
package tracker

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/cloudclaw/internal/types"
)

// FormatJSON is the only export format currently implemented. The format
// argument exists so callers fail cleanly rather than silently getting JSON
// when they asked for something else.
const FormatJSON = "json"

// UnsupportedFormatError is returned when an export is requested in a format
// the log does not implement.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported export format: %s (supported: %s)", e.Format, FormatJSON)
}

// sessionExport is the serialized shape of a whole-session export.
type sessionExport struct {
	SessionID types.SessionID `json:"session_id"`
	Summary   *Summary        `json:"summary"`
	Events    []*types.Event  `json:"events"`
}

// ExportConversation serializes one conversation's call tree.
func (l *Log) ExportConversation(id types.ConversationID, format string) ([]byte, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(l.ConversationTree(id), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal conversation export: %w", err)
	}
	return data, nil
}

// ExportSession serializes the session id, summary, and every retained event.
func (l *Log) ExportSession(format string) ([]byte, error) {
	if err := checkFormat(format); err != nil {
		return nil, err
	}

	export := sessionExport{
		SessionID: l.sessionID,
		Summary:   l.Summary(),
		Events:    l.Recent(l.Len()),
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session export: %w", err)
	}
	return data, nil
}

// checkFormat accepts the format case-insensitively ("json" and "JSON").
func checkFormat(format string) error {
	if !strings.EqualFold(format, FormatJSON) {
		return &UnsupportedFormatError{Format: format}
	}
	return nil
}
