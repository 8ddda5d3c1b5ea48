// Package protocol decodes the JSON text frames exchanged with the world
// server and applies them to a world.State.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Type is the envelope discriminator.
type Type string

const (
	TypeInit         Type = "init_data"
	TypeAOI          Type = "aoi_update"
	TypeSkillItemIDs Type = "skill_item_ids"
	TypeError        Type = "error"
	TypePing         Type = "ping"
	TypePong         Type = "pong"
	TypeHandshake    Type = "handshake"
	TypePlayerAction Type = "player_action"
)

var (
	// ErrUnknownType is returned for envelopes whose type is not handled and
	// cannot be inferred from the payload.
	ErrUnknownType = errors.New("protocol: unknown message type")
	// ErrMissingField is returned when a payload lacks a field required to
	// apply it at all.
	ErrMissingField = errors.New("protocol: missing required field")
)

// Message is one decoded envelope. Payload is left raw until the typed
// decoder for Type consumes it.
type Message struct {
	Type     Type
	Payload  json.RawMessage
	Inferred bool
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode parses one text frame. Frames without a type are classified by
// the structure of their payload; a frame without a payload object is
// inspected as a whole.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	payload := env.Payload
	if len(bytes.TrimSpace(payload)) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		payload = nil
	}
	if env.Type != "" {
		return Message{Type: Type(env.Type), Payload: payload}, nil
	}
	probe := payload
	if probe == nil {
		probe = data
	}
	t, ok := inferType(probe)
	if !ok {
		return Message{Payload: payload}, ErrUnknownType
	}
	return Message{Type: t, Payload: probe, Inferred: true}, nil
}

// inferType looks for the structural hints that identify untyped payloads:
// grid dimensions mean init_data, a player record plus playerID mean
// aoi_update, and associatedItemIds means skill_item_ids.
func inferType(payload []byte) (Type, bool) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(payload, &keys); err != nil {
		return "", false
	}
	has := func(k string) bool {
		_, ok := keys[k]
		return ok
	}
	switch {
	case has("gridW") && has("gridH"):
		return TypeInit, true
	case has("player") && has("playerID"):
		return TypeAOI, true
	case has("associatedItemIds"):
		return TypeSkillItemIDs, true
	}
	return "", false
}
