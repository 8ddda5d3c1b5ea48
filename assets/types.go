// Package assets resolves object-layer metadata, atlas metadata and atlas
// textures from the asset API. Lookups never block: the first call for a key
// starts a fetch and later calls observe its completion.
package assets

import (
	"errors"
	"sort"
)

var (
	// ErrEmptyResult is returned when a query envelope holds no record.
	ErrEmptyResult = errors.New("assets: empty result")
	// ErrUnexpectedEnvelope is returned for bodies matching no known
	// envelope shape.
	ErrUnexpectedEnvelope = errors.New("assets: unexpected envelope")
	// ErrCacheFull is reported when a cache is at its cap and a new key was
	// refused.
	ErrCacheFull = errors.New("assets: cache full")
)

// AssetState is the load state of one cache entry. Transitions are
// Idle -> Loading -> Ready | Error and never go back.
type AssetState uint8

const (
	StateIdle AssetState = iota
	StateLoading
	StateReady
	StateError
)

func (s AssetState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "idle"
}

// Stats holds the stat block of an object layer.
type Stats struct {
	Effect       int
	Resistance   int
	Agility      int
	Range        int
	Intelligence int
	Utility      int
}

// ObjectLayerMeta describes one composable visual item.
type ObjectLayerMeta struct {
	ItemID          string
	ItemType        string
	Description     string
	Activable       bool
	IsStateless     bool
	FrameDurationMS int
	FrameCounts     map[string]int
	Stats           Stats
	ContentHash     string
}

// FrameCount returns the number of frames for an animation key.
func (m *ObjectLayerMeta) FrameCount(key string) int {
	if m == nil {
		return 0
	}
	return m.FrameCounts[key]
}

// FrameRect is the source rectangle of one frame inside its atlas.
type FrameRect struct {
	X, Y, W, H int
	Seq        int
}

// AtlasMeta maps animation keys to frame rectangles inside one atlas image.
type AtlasMeta struct {
	ItemKey      string
	AtlasFileID  string
	Width        int
	Height       int
	CellPixelDim int
	Frames       map[string][]FrameRect
}

// FrameCount returns the number of frames for an animation key.
func (a *AtlasMeta) FrameCount(key string) int {
	if a == nil {
		return 0
	}
	return len(a.Frames[key])
}

// Frame returns frame i of key.
func (a *AtlasMeta) Frame(key string, i int) (FrameRect, bool) {
	if a == nil {
		return FrameRect{}, false
	}
	frames := a.Frames[key]
	if i < 0 || i >= len(frames) {
		return FrameRect{}, false
	}
	return frames[i], true
}

func sortFrames(frames []FrameRect) {
	sort.SliceStable(frames, func(i, j int) bool { return frames[i].Seq < frames[j].Seq })
}
