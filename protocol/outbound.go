package protocol

import "encoding/json"

type outbound struct {
	Type    Type `json:"type"`
	Payload any  `json:"payload,omitempty"`
}

type handshake struct {
	Type    Type   `json:"type"`
	Client  string `json:"client"`
	Version string `json:"version"`
}

type actionPayload struct {
	TargetX float64 `json:"targetX"`
	TargetY float64 `json:"targetY"`
}

// Handshake encodes the greeting sent once the socket opens.
func Handshake(client, version string) []byte {
	b, _ := json.Marshal(handshake{Type: TypeHandshake, Client: client, Version: version})
	return b
}

// PlayerAction encodes a move request toward grid cell (x, y).
func PlayerAction(x, y float64) []byte {
	b, _ := json.Marshal(outbound{Type: TypePlayerAction, Payload: actionPayload{TargetX: x, TargetY: y}})
	return b
}

// Pong encodes the reply to a server ping.
func Pong() []byte {
	b, _ := json.Marshal(outbound{Type: TypePong})
	return b
}

// Ping encodes a client keepalive.
func Ping() []byte {
	b, _ := json.Marshal(outbound{Type: TypePing})
	return b
}
