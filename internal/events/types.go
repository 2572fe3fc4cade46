package events

import (
	"strings"

	"spacegun/internal/domain"
)

// EventType is the severity of a notification.
type EventType string

const (
	// EventTypeNormal indicates normal, non-problematic events.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning indicates events that may require attention.
	EventTypeWarning EventType = "Warning"
)

// EventData is what templates are rendered with.
type EventData struct {
	Event    domain.Event
	Severity EventType
}

// getEventType returns Warning when the message or any field reports a
// failure.
func getEventType(event domain.Event) EventType {
	if failed(event.Message) {
		return EventTypeWarning
	}
	for _, f := range event.Fields {
		if failed(f.Value) {
			return EventTypeWarning
		}
	}
	return EventTypeNormal
}

func failed(s string) bool {
	return strings.Contains(strings.ToLower(s), "fail")
}
