package protocol

import (
	"fmt"
	"time"

	"cyberia/world"
)

// Result reports what Apply did with a frame.
type Result struct {
	Type Type
	// Applied is false when the frame was well formed but had no effect,
	// such as a repeated init_data.
	Applied bool
	// SkillItems carries the ids from a skill_item_ids frame so callers can
	// warm their caches.
	SkillItems []string
}

// Apply decodes one inbound frame and mutates st accordingly. A frame that
// fails to parse leaves st untouched. Ping frames are reported but not
// answered; the caller owns the transport and sends Pong.
func Apply(st *world.State, data []byte, now time.Time) (Result, error) {
	msg, err := Decode(data)
	if err != nil {
		return Result{Type: msg.Type}, err
	}
	res := Result{Type: msg.Type}
	switch msg.Type {
	case TypeInit:
		cfg, err := DecodeInit(msg.Payload)
		if err != nil {
			return res, err
		}
		res.Applied = st.ApplyInit(cfg)
	case TypeAOI:
		u, err := DecodeAOI(msg.Payload)
		if err != nil {
			return res, err
		}
		st.ApplyAOI(u, now)
		res.Applied = true
	case TypeSkillItemIDs:
		ids, err := DecodeSkillItems(msg.Payload)
		if err != nil {
			return res, err
		}
		st.SetSkillItems(ids)
		res.SkillItems = ids
		res.Applied = true
	case TypeError:
		text, err := DecodeError(msg.Payload)
		if err != nil {
			return res, err
		}
		st.SetError(text, now)
		res.Applied = true
	case TypePing:
		res.Applied = true
	case TypePong:
		st.NotePong(now)
		res.Applied = true
	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	return res, nil
}
