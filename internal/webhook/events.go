// Package webhook handles inbound messaging-platform events: it verifies
// request signatures, parses message events, and replies with generated
// short links. It sits outside the allocation engine; engine failures are
// translated into user-facing reply texts here.
package webhook

import (
	"encoding/json"
	"fmt"
)

// Event is a single webhook event. Only text message events are acted on;
// everything else is ignored.
type Event struct {
	Type       string       `json:"type"`
	ReplyToken string       `json:"replyToken"`
	Source     EventSource  `json:"source"`
	Message    EventMessage `json:"message"`
}

// EventSource identifies who sent the event.
type EventSource struct {
	UserID string `json:"userId"`
}

// EventMessage is the message payload of a message event.
type EventMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type eventEnvelope struct {
	Events []Event `json:"events"`
}

// ParseEvents decodes a webhook request body into its events.
func ParseEvents(body []byte) ([]Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	return envelope.Events, nil
}

// IsTextMessage reports whether the event carries user text worth handling.
func (e Event) IsTextMessage() bool {
	return e.Type == "message" && e.Message.Type == "text" && e.Message.Text != ""
}
