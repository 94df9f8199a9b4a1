// Package live streams accepted webhook deliveries to connected websocket
// clients, feeding the dashboard inbox as events arrive.
package live

import (
	"encoding/json"
	"time"
)

// MessageType identifies a frame on the live feed.
type MessageType string

const (
	MessageTypePing MessageType = "ping"

	MessageTypeConnected MessageType = "connected"
	MessageTypeDelivery  MessageType = "delivery"
	MessageTypePong      MessageType = "pong"
	MessageTypeError     MessageType = "error"
)

// Message is the frame structure in both directions.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ConnectedPayload is sent once after the upgrade.
type ConnectedPayload struct {
	ClientID string `json:"client_id"`
}

// DeliveryPayload describes one accepted delivery.
type DeliveryPayload struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	Known      bool            `json:"known"`
	Data       json.RawMessage `json:"data,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	ReceivedAt time.Time       `json:"received_at"`
}

// ErrorPayload is sent in reply to a frame the hub cannot handle.
type ErrorPayload struct {
	Message string `json:"message"`
}
