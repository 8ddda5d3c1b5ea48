// Package anim tracks the animation state of every (entity, item) pair and
// picks the frame to draw each tick.
package anim

import (
	"time"

	"cyberia/assets"
	"cyberia/world"
)

// DefaultFrameDuration applies when an object layer has no frame duration.
const DefaultFrameDuration = 100 * time.Millisecond

const (
	keyDefaultIdle = "default_idle"
	keyNoneIdle    = "none_idle"
)

// Key identifies one animated pair.
type Key struct {
	EntityID string
	ItemID   string
}

// State is the animation state of one pair.
type State struct {
	AnimationKey    string
	FrameIndex      int
	LastUpdate      time.Time
	LastFacing      world.Direction
	LastStateString string
}

// Engine owns every State. It does no I/O and is driven only by the render
// tick.
type Engine struct {
	states map[string]map[string]*State
	n      int
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{states: make(map[string]map[string]*State)}
}

func (e *Engine) state(k Key) *State {
	items, ok := e.states[k.EntityID]
	if !ok {
		items = make(map[string]*State)
		e.states[k.EntityID] = items
	}
	st, ok := items[k.ItemID]
	if !ok {
		st = &State{}
		items[k.ItemID] = st
		e.n++
	}
	return st
}

// AnimationKey returns "<dir>_<mode>" for a stateful item and default_idle
// for a stateless one. DirNone maps to down, teleporting to idle.
func AnimationKey(dir world.Direction, mode world.Mode, stateless bool) string {
	if stateless {
		return keyDefaultIdle
	}
	d := "down"
	if dir != world.DirNone && dir.Valid() {
		d = dir.String()
	}
	m := "idle"
	if mode == world.ModeWalking {
		m = "walking"
	}
	return d + "_" + m
}

func frameCount(key string, layer *assets.ObjectLayerMeta, atlas *assets.AtlasMeta) int {
	if n := atlas.FrameCount(key); n > 0 {
		return n
	}
	return layer.FrameCount(key)
}

// StepAndResolveFrame advances the pair's animation to now and returns the
// animation key and frame index to draw. ok is false when the key has no
// frames in either metadata record.
func (e *Engine) StepAndResolveFrame(entityID, itemID string, dir world.Direction, mode world.Mode,
	layer *assets.ObjectLayerMeta, atlas *assets.AtlasMeta, now time.Time) (key string, frame int, ok bool) {
	st := e.state(Key{EntityID: entityID, ItemID: itemID})

	if dir != world.DirNone {
		st.LastFacing = dir
	} else if mode == world.ModeIdle && st.LastFacing != world.DirNone {
		dir = st.LastFacing
	}

	stateless := layer != nil && layer.IsStateless
	key = AnimationKey(dir, mode, stateless)
	count := frameCount(key, layer, atlas)
	if count == 0 && stateless {
		key = keyNoneIdle
		count = frameCount(key, layer, atlas)
	}
	if count == 0 {
		return "", 0, false
	}

	if key != st.LastStateString {
		st.LastStateString = key
		st.AnimationKey = key
		st.FrameIndex = 0
		st.LastUpdate = now
	}

	dur := DefaultFrameDuration
	if layer != nil && layer.FrameDurationMS > 0 {
		dur = time.Duration(layer.FrameDurationMS) * time.Millisecond
	}
	if now.Sub(st.LastUpdate) >= dur {
		st.FrameIndex++
		st.LastUpdate = now
	}
	st.FrameIndex %= count
	return key, st.FrameIndex, true
}

// Get returns a copy of the state of k.
func (e *Engine) Get(k Key) (State, bool) {
	st, ok := e.states[k.EntityID][k.ItemID]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Forget drops every state owned by entityID.
func (e *Engine) Forget(entityID string) {
	e.n -= len(e.states[entityID])
	delete(e.states, entityID)
}

// Len returns the number of tracked pairs.
func (e *Engine) Len() int { return e.n }

// Reset drops all state.
func (e *Engine) Reset() {
	e.states = make(map[string]map[string]*State)
	e.n = 0
}
