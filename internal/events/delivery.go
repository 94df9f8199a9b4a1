package events

import (
	"encoding/json"
	"time"
)

// Delivery is one accepted webhook call.
type Delivery struct {
	ID         string
	Event      Event
	Data       json.RawMessage
	RequestID  string
	RemoteAddr string
	ReceivedAt time.Time
}

// PayloadJSON encodes the normalized payload of a recognized event. Unknown
// events have no schema and yield nil.
func PayloadJSON(ev Event) (json.RawMessage, error) {
	var payload any
	switch e := ev.(type) {
	case Message:
		payload = e.Payload
	case Lead:
		payload = e.Payload
	case Conversion:
		payload = e.Payload
	case Payment:
		payload = e.Payload
	default:
		return nil, nil
	}
	return json.Marshal(payload)
}
