package websocket

import (
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/protoplast/internal/types"
)

// Client represents a WebSocket client connection
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	remote    string
	connected time.Time
}

// UpdateMessage is one template store change as sent to the browser.
type UpdateMessage struct {
	Type      types.EventType `json:"type"`
	Template  string          `json:"template"`
	Handle    string          `json:"handle"`
	Revision  uint64          `json:"revision"`
	Timestamp time.Time       `json:"timestamp"`
}

// MessageFromEvent converts a store event into its wire form.
func MessageFromEvent(event types.TemplateEvent) UpdateMessage {
	return UpdateMessage{
		Type:      event.Type,
		Template:  event.ID,
		Handle:    event.Handle.String(),
		Revision:  event.Revision,
		Timestamp: event.Timestamp,
	}
}
