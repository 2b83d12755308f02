package hub

import "encoding/json"

// Client-to-server message types.
const (
	MsgPing       = "ping"
	MsgSubscribe  = "subscribe"
	MsgGetHistory = "getHistory"
)

// Server-to-client message types.
const (
	MsgPong    = "pong"
	MsgHistory = "history"
	MsgRequest = "request"
	MsgError   = "error"
)

// ClientMessage is a control message from a viewer.
type ClientMessage struct {
	Type string `json:"type"`

	// EndpointID scopes subscribe and getHistory; empty means all
	// endpoints, including requests that matched none.
	EndpointID string `json:"endpointId,omitempty"`
}

// ServerMessage is any message sent to a viewer. Data holds the log entry
// for "request", the entry slice for "history", and the message text for
// "error"; it is absent on "pong".
type ServerMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

func encodeServerMessage(typ string, data any) ([]byte, error) {
	return json.Marshal(ServerMessage{Type: typ, Data: data})
}
