package hub

import "encoding/json"

// Kind selects the websocket frame type a message is written as.
type Kind uint8

const (
	Text   Kind = iota + 1 // JSON envelopes
	Binary                 // JPEG preview frames
)

// Message is one broadcast payload, encoded once and shared by all clients.
type Message struct {
	Kind Kind
	Data []byte
}

// Envelope types on the status feed.
const (
	TypeState  = "state"  // session.State after every counter change
	TypeStatus = "status" // full dashboard status
)

// Envelope tags a JSON payload so dashboards can switch on Type.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Encode marshals data into a text message wrapped in an envelope.
func Encode(typ string, data any) (Message, error) {
	b, err := json.Marshal(Envelope{Type: typ, Data: data})
	if err != nil {
		return Message{}, err
	}
	return Message{Kind: Text, Data: b}, nil
}
