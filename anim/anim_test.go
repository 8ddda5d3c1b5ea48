package anim

import (
	"testing"
	"time"

	"cyberia/assets"
	"cyberia/world"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Time { return t0.Add(time.Duration(n) * time.Millisecond) }

func walkLayer() *assets.ObjectLayerMeta {
	return &assets.ObjectLayerMeta{
		ItemID:          "anon",
		ItemType:        "skin",
		FrameDurationMS: 100,
		FrameCounts:     map[string]int{"down_walking": 4, "down_idle": 2, "left_idle": 3, "right_walking": 2},
	}
}

func TestAnimationTick(t *testing.T) {
	e := NewEngine()
	layer := walkLayer()
	if _, f, ok := e.StepAndResolveFrame("p", "anon", world.DirS, world.ModeWalking, layer, nil, t0); !ok || f != 0 {
		t.Fatalf("first frame = %d,%v", f, ok)
	}
	want := []int{1, 2, 3, 0}
	for i, at := range []int{450, 550, 650, 750} {
		key, f, ok := e.StepAndResolveFrame("p", "anon", world.DirS, world.ModeWalking, layer, nil, ms(at))
		if !ok || key != "down_walking" {
			t.Fatalf("step %d: key=%q ok=%v", i, key, ok)
		}
		if f != want[i] {
			t.Fatalf("step %d: frame = %d, want %d", i, f, want[i])
		}
	}
}

func TestKeyChangeResets(t *testing.T) {
	e := NewEngine()
	layer := walkLayer()
	e.StepAndResolveFrame("p", "anon", world.DirS, world.ModeWalking, layer, nil, t0)
	e.StepAndResolveFrame("p", "anon", world.DirS, world.ModeWalking, layer, nil, ms(100))
	e.StepAndResolveFrame("p", "anon", world.DirS, world.ModeWalking, layer, nil, ms(200))
	key, f, _ := e.StepAndResolveFrame("p", "anon", world.DirE, world.ModeWalking, layer, nil, ms(250))
	if key != "right_walking" || f != 0 {
		t.Fatalf("after change: %q frame %d", key, f)
	}
	st, _ := e.Get(Key{EntityID: "p", ItemID: "anon"})
	if !st.LastUpdate.Equal(ms(250)) || st.LastStateString != "right_walking" {
		t.Fatalf("state = %+v", st)
	}
}

func TestFacingMemory(t *testing.T) {
	tests := []struct {
		name string
		prev world.Direction
		dir  world.Direction
		mode world.Mode
		want string
	}{
		{"idle none keeps facing", world.DirW, world.DirNone, world.ModeIdle, "left_idle"},
		{"no memory maps down", world.DirNone, world.DirNone, world.ModeIdle, "down_idle"},
		{"walking none is down", world.DirW, world.DirNone, world.ModeWalking, "down_walking"},
		{"explicit wins", world.DirW, world.DirS, world.ModeIdle, "down_idle"},
		{"teleport is idle", world.DirNone, world.DirW, world.ModeTeleporting, "left_idle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine()
			layer := walkLayer()
			layer.FrameCounts["left_walking"] = 1
			if tt.prev != world.DirNone {
				e.StepAndResolveFrame("p", "anon", tt.prev, world.ModeWalking, layer, nil, t0)
			}
			key, _, ok := e.StepAndResolveFrame("p", "anon", tt.dir, tt.mode, layer, nil, ms(10))
			if !ok || key != tt.want {
				t.Fatalf("key = %q ok=%v, want %q", key, ok, tt.want)
			}
		})
	}
}

func TestStatelessAndMissingFrames(t *testing.T) {
	e := NewEngine()
	layer := &assets.ObjectLayerMeta{IsStateless: true, FrameCounts: map[string]int{"default_idle": 1}}
	if key, _, ok := e.StepAndResolveFrame("p", "i", world.DirE, world.ModeWalking, layer, nil, t0); !ok || key != "default_idle" {
		t.Fatalf("stateless key = %q", key)
	}
	if _, _, ok := e.StepAndResolveFrame("p", "j", world.DirE, world.ModeWalking, walkLayer(), nil, t0); !ok {
		t.Fatalf("right_walking missing")
	}
	if _, _, ok := e.StepAndResolveFrame("p", "k", world.DirN, world.ModeWalking, walkLayer(), nil, t0); ok {
		t.Fatalf("up_walking has no frames but resolved")
	}
}

func TestAtlasCountPreferred(t *testing.T) {
	e := NewEngine()
	atlas := &assets.AtlasMeta{Frames: map[string][]assets.FrameRect{
		"down_walking": {{W: 1, H: 1}, {W: 1, H: 1}},
	}}
	layer := walkLayer()
	seen := map[int]bool{}
	for i := 0; i < 10; i++ {
		_, f, ok := e.StepAndResolveFrame("p", "anon", world.DirS, world.ModeWalking, layer, atlas, ms(i*100))
		if !ok || f < 0 || f >= 2 {
			t.Fatalf("frame %d out of atlas range (ok=%v)", f, ok)
		}
		seen[f] = true
	}
	if len(seen) != 2 {
		t.Fatalf("frames seen = %v", seen)
	}
}

func TestForget(t *testing.T) {
	e := NewEngine()
	layer := walkLayer()
	e.StepAndResolveFrame("a", "x", world.DirS, world.ModeIdle, layer, nil, t0)
	e.StepAndResolveFrame("a", "y", world.DirS, world.ModeIdle, layer, nil, t0)
	e.StepAndResolveFrame("b", "x", world.DirS, world.ModeIdle, layer, nil, t0)
	if e.Len() != 3 {
		t.Fatalf("Len = %d", e.Len())
	}
	e.Forget("a")
	if e.Len() != 1 {
		t.Fatalf("Len after Forget = %d", e.Len())
	}
	if _, ok := e.Get(Key{EntityID: "a", ItemID: "x"}); ok {
		t.Fatalf("forgotten state still present")
	}
	e.Reset()
	if e.Len() != 0 {
		t.Fatalf("Len after Reset = %d", e.Len())
	}
}
