package world

import "time"

// EffectKind identifies a transient visual effect.
type EffectKind uint8

const (
	// EffectTargetMarker marks the cell the local player is walking to.
	EffectTargetMarker EffectKind = iota
)

const (
	targetMarkerTTL = 600 * time.Millisecond
	maxEffects      = 64
)

// Effect is a short-lived visual anchored at a grid position.
type Effect struct {
	Kind    EffectKind
	Pos     Vec2
	Started time.Time
	TTL     time.Duration
}

// Progress returns the fraction of the effect's lifetime elapsed at now,
// clamped to [0,1].
func (e Effect) Progress(now time.Time) float64 {
	if e.TTL <= 0 {
		return 1
	}
	p := float64(now.Sub(e.Started)) / float64(e.TTL)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Expired reports whether the effect has run its course.
func (e Effect) Expired(now time.Time) bool {
	return !now.Before(e.Started.Add(e.TTL))
}

// call with s.mu held
func (s *State) spawnEffect(kind EffectKind, pos Vec2, now time.Time) {
	if len(s.effects) >= maxEffects {
		s.effects = append(s.effects[:0], s.effects[1:]...)
	}
	s.effects = append(s.effects, Effect{Kind: kind, Pos: pos, Started: now, TTL: targetMarkerTTL})
}

// UpdateEffects drops expired effects. It runs once per frame after render.
func (s *State) UpdateEffects(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.effects[:0]
	for _, e := range s.effects {
		if !e.Expired(now) {
			kept = append(kept, e)
		}
	}
	s.effects = kept
}
