package websocket

import (
	"encoding/json"

	"github.com/isdelr/iserve-be/internal/models"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewEventMessage wraps an activity event for delivery.
func NewEventMessage(event models.Event) []byte {
	return encode(Message{Action: "event", Payload: event})
}

// NewErrorMessage reports a problem with a client request.
func NewErrorMessage(msg string) []byte {
	return encode(Message{Action: "error", Payload: map[string]string{"message": msg}})
}

// NewPongMessage answers a client ping.
func NewPongMessage() []byte {
	return encode(Message{Action: "pong"})
}

func encode(m Message) []byte {
	b, err := json.Marshal(m)
	if err != nil {
		return []byte(`{"action":"error"}`)
	}
	return b
}
