// Package line models the messaging platform's webhook payloads and
// implements the reply client.
package line

import (
	"encoding/json"
	"fmt"
)

// Event types and message types we care about. Everything else in a
// delivery is skipped, not rejected.
const (
	EventTypeMessage = "message"
	MessageTypeText  = "text"
)

// WebhookBody is the parsed form of one delivery: a batch of events.
type WebhookBody struct {
	Destination string  `json:"destination,omitempty"`
	Events      []Event `json:"events"`
}

// Event is one user action within a delivery.
type Event struct {
	Type       string   `json:"type"`
	ReplyToken string   `json:"replyToken,omitempty"`
	Message    *Message `json:"message,omitempty"`
}

// Message is the message payload of a message event.
type Message struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// IsTextMessage reports whether the event is a text message the pipeline
// handles.
func (e Event) IsTextMessage() bool {
	return e.Type == EventTypeMessage && e.Message != nil && e.Message.Type == MessageTypeText
}

// ParseWebhookBody decodes a delivery body. Parsing happens strictly after
// signature verification; the raw bytes are never re-serialized.
func ParseWebhookBody(raw []byte) (*WebhookBody, error) {
	var body WebhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("parse webhook body: %w", err)
	}
	return &body, nil
}
