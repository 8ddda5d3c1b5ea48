package world

import (
	"math"
	"reflect"
	"testing"
	"time"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		GridW:               100,
		GridH:               100,
		CellSize:            12,
		FPS:                 60,
		InterpolationMS:     200,
		DefaultObjectWidth:  1,
		DefaultObjectHeight: 1,
		CameraSmoothing:     0.15,
		CameraZoom:          1,
	}
}

func playerAt(id string, x, y float64) *PlayerUpdate {
	return &PlayerUpdate{EntityUpdate: EntityUpdate{ID: id, Pos: Vec2{x, y}, Dims: Size{1, 1}}}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestApplyInitOnce(t *testing.T) {
	s := New()
	if s.Initialized() {
		t.Fatalf("new world reports initialized")
	}
	if !s.ApplyInit(testConfig()) {
		t.Fatalf("first ApplyInit rejected")
	}
	cfg := testConfig()
	cfg.CellSize = 99
	if s.ApplyInit(cfg) {
		t.Fatalf("second ApplyInit accepted")
	}
	if got := s.Config().CellSize; got != 12 {
		t.Fatalf("CellSize = %v, want 12", got)
	}
	p := s.Player()
	if p.InterpPos != (Vec2{}) || p.Dims != (Size{1, 1}) {
		t.Fatalf("player before first AOI = %+v", p)
	}
}

func TestInterpolationFactor(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		window  float64
		want    float64
	}{
		{"start", 0, 200, 0},
		{"half", 100 * time.Millisecond, 200, 0.5},
		{"past", 900 * time.Millisecond, 200, 1},
		{"negative", -50 * time.Millisecond, 200, 0},
		{"zero window snaps", 10 * time.Millisecond, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InterpolationFactor(t0.Add(tt.elapsed), t0, tt.window)
			if !approx(got, tt.want) {
				t.Fatalf("factor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBotWithoutHistorySnaps(t *testing.T) {
	s := New()
	s.ApplyInit(testConfig())
	s.ApplyAOI(AOIUpdate{
		Player: playerAt("p1", 10, 10),
		Bots:   []EntityUpdate{{ID: "b1", Pos: Vec2{12, 10}, Dims: Size{1, 1}}},
	}, t0)
	s.Interpolate(t0.Add(100 * time.Millisecond))
	b, ok := s.Bot("b1")
	if !ok {
		t.Fatalf("bot b1 missing")
	}
	if !approx(b.InterpPos.X, 12) || !approx(b.InterpPos.Y, 10) {
		t.Fatalf("b1 interp = %+v, want (12,10)", b.InterpPos)
	}
}

func TestPositionSmoothing(t *testing.T) {
	s := New()
	s.ApplyInit(testConfig())
	s.ApplyAOI(AOIUpdate{Player: playerAt("p1", 10, 10)}, t0)
	second := t0.Add(200 * time.Millisecond)
	s.Interpolate(second)
	s.ApplyAOI(AOIUpdate{Player: playerAt("p1", 11, 10)}, second)

	p := s.Player()
	if p.InterpPos != (Vec2{10, 10}) {
		t.Fatalf("interp moved on update: %+v", p.InterpPos)
	}
	if p.PrevPos != (Vec2{10, 10}) || p.ServerPos != (Vec2{11, 10}) {
		t.Fatalf("prev/server = %+v/%+v", p.PrevPos, p.ServerPos)
	}

	s.Interpolate(second.Add(100 * time.Millisecond))
	if got := s.Player().InterpPos.X; !approx(got, 10.5) {
		t.Fatalf("interp x = %v, want 10.5", got)
	}
}

func TestInterpolationStaysOnSegment(t *testing.T) {
	s := New()
	s.ApplyInit(testConfig())
	now := t0
	positions := []Vec2{{0, 0}, {3, 1}, {-2, 4}, {5, 5}, {5, -3}}
	for _, pos := range positions {
		s.ApplyAOI(AOIUpdate{
			Player: playerAt("p1", pos.X, pos.Y),
			Bots:   []EntityUpdate{{ID: "b", Pos: Vec2{pos.Y, pos.X}}},
		}, now)
		for step := 0; step < 5; step++ {
			now = now.Add(37 * time.Millisecond)
			s.Interpolate(now)
			for _, e := range []Entity{s.Player().Entity, mustBot(t, s, "b")} {
				if !inBox(e.InterpPos, e.PrevPos, e.ServerPos) {
					t.Fatalf("%s interp %+v outside [%+v,%+v]", e.ID, e.InterpPos, e.PrevPos, e.ServerPos)
				}
			}
		}
	}
}

func mustBot(t *testing.T, s *State, id string) Entity {
	t.Helper()
	b, ok := s.Bot(id)
	if !ok {
		t.Fatalf("bot %s missing", id)
	}
	return b
}

func inBox(p, a, b Vec2) bool {
	const eps = 1e-9
	return p.X >= math.Min(a.X, b.X)-eps && p.X <= math.Max(a.X, b.X)+eps &&
		p.Y >= math.Min(a.Y, b.Y)-eps && p.Y <= math.Max(a.Y, b.Y)+eps
}

func TestAbsentEntitiesRemoved(t *testing.T) {
	s := New()
	s.ApplyInit(testConfig())
	s.ApplyAOI(AOIUpdate{
		Player:  playerAt("me", 0, 0),
		Players: []PlayerUpdate{*playerAt("p2", 1, 1), *playerAt("p3", 2, 2)},
		Bots:    []EntityUpdate{{ID: "b1"}, {ID: "b2"}},
	}, t0)
	s.ApplyAOI(AOIUpdate{
		Player:  playerAt("me", 0, 0),
		Players: []PlayerUpdate{*playerAt("p3", 2, 2)},
		Bots:    []EntityUpdate{{ID: "b2"}},
	}, t0.Add(time.Second))

	if _, ok := s.VisiblePlayer("p2"); ok {
		t.Fatalf("p2 not removed")
	}
	if _, ok := s.Bot("b1"); ok {
		t.Fatalf("b1 not removed")
	}
	removed := s.TakeRemoved()
	want := map[string]bool{"p2": true, "b1": true}
	if len(removed) != len(want) {
		t.Fatalf("removed = %v", removed)
	}
	for _, id := range removed {
		if !want[id] {
			t.Fatalf("unexpected removal %q", id)
		}
	}
	if again := s.TakeRemoved(); len(again) != 0 {
		t.Fatalf("TakeRemoved not cleared: %v", again)
	}
}

func TestLocalPlayerNotDuplicated(t *testing.T) {
	s := New()
	s.ApplyInit(testConfig())
	s.ApplyAOI(AOIUpdate{
		Player:  playerAt("me", 4, 4),
		Players: []PlayerUpdate{*playerAt("me", 4, 4), *playerAt("other", 1, 1)},
	}, t0)
	if _, ok := s.VisiblePlayer("me"); ok {
		t.Fatalf("local player listed as visible player")
	}
	if players, _, _ := s.Counts(); players != 1 {
		t.Fatalf("players = %d, want 1", players)
	}
}

func TestStaticObjectsRebuilt(t *testing.T) {
	s := New()
	s.ApplyInit(testConfig())
	s.ApplyAOI(AOIUpdate{
		Player: playerAt("me", 0, 0),
		Objects: []ObjectUpdate{
			{ID: "f1", Kind: KindFloor, Pos: Vec2{0, 0}},
			{ID: "o1", Kind: KindObstacle, Pos: Vec2{1, 0}, Dims: Size{2, 1}},
			{ID: "g1", Kind: KindPortal, Pos: Vec2{3, 3}, PortalLabel: "town"},
		},
	}, t0)
	snap := s.Snapshot()
	if len(snap.Floors) != 1 || len(snap.Obstacles) != 1 || len(snap.Portals) != 1 {
		t.Fatalf("snapshot objects = %d/%d/%d", len(snap.Floors), len(snap.Obstacles), len(snap.Portals))
	}
	if snap.Floors[0].Dims != (Size{1, 1}) {
		t.Fatalf("floor dims default = %+v", snap.Floors[0].Dims)
	}
	if snap.Portals[0].PortalLabel != "town" {
		t.Fatalf("portal label = %q", snap.Portals[0].PortalLabel)
	}

	s.ApplyAOI(AOIUpdate{
		Player:  playerAt("me", 0, 0),
		Objects: []ObjectUpdate{{ID: "fg", Kind: KindForeground}},
	}, t0.Add(time.Second))
	snap = s.Snapshot()
	if len(snap.Floors)+len(snap.Obstacles)+len(snap.Portals) != 0 || len(snap.Foregrounds) != 1 {
		t.Fatalf("objects not rebuilt: %+v", snap)
	}
}

func TestReapplySameAOIIsIdempotent(t *testing.T) {
	u := AOIUpdate{
		Player:  playerAt("me", 5, 5),
		Players: []PlayerUpdate{*playerAt("p2", 1, 2)},
		Bots:    []EntityUpdate{{ID: "b1", Pos: Vec2{3, 3}, Direction: DirE, Mode: ModeWalking}},
		Objects: []ObjectUpdate{{ID: "f", Kind: KindFloor}},
	}
	s := New()
	s.ApplyInit(testConfig())
	s.ApplyAOI(u, t0)
	s.Interpolate(t0.Add(time.Second))
	first := s.Snapshot()

	later := t0.Add(2 * time.Second)
	s.ApplyAOI(u, later)
	s.Interpolate(later.Add(time.Second))
	second := s.Snapshot()

	first.LastUpdate, second.LastUpdate = time.Time{}, time.Time{}
	first.Effects, second.Effects = nil, nil
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("state differs after reapply:\n%+v\n%+v", first, second)
	}
}

func TestTeleportSnaps(t *testing.T) {
	s := New()
	s.ApplyInit(testConfig())
	s.ApplyAOI(AOIUpdate{Player: playerAt("me", 0, 0)}, t0)
	u := playerAt("me", 40, 40)
	u.Mode = ModeTeleporting
	s.ApplyAOI(AOIUpdate{Player: u}, t0.Add(time.Second))
	if p := s.Player(); p.InterpPos != (Vec2{40, 40}) || p.PrevPos != (Vec2{40, 40}) {
		t.Fatalf("teleport did not snap: %+v", p.Entity)
	}
}

func TestErrorExpires(t *testing.T) {
	s := New()
	s.SetError("boom", t0)
	if msg, ok := s.ActiveError(t0.Add(4 * time.Second)); !ok || msg != "boom" {
		t.Fatalf("ActiveError = %q,%v", msg, ok)
	}
	if _, ok := s.ActiveError(t0.Add(5 * time.Second)); ok {
		t.Fatalf("error still active after window")
	}
}

func TestTargetMarkerEffect(t *testing.T) {
	s := New()
	s.ApplyInit(testConfig())
	u := playerAt("me", 0, 0)
	u.HasTarget = true
	u.TargetPos = Vec2{5, 5}
	s.ApplyAOI(AOIUpdate{Player: u}, t0)
	s.ApplyAOI(AOIUpdate{Player: u}, t0.Add(50*time.Millisecond))
	if n := len(s.Snapshot().Effects); n != 1 {
		t.Fatalf("effects = %d, want 1", n)
	}
	s.UpdateEffects(t0.Add(time.Second))
	if n := len(s.Snapshot().Effects); n != 0 {
		t.Fatalf("effects after expiry = %d", n)
	}
}

func TestVanishedObjectsQueuedForRemoval(t *testing.T) {
	s := New()
	s.ApplyInit(testConfig())
	s.ApplyAOI(AOIUpdate{
		Player: playerAt("me", 0, 0),
		Objects: []ObjectUpdate{
			{ID: "grass-1", Kind: KindFloor},
			{ID: "rock-1", Kind: KindObstacle},
		},
	}, t0)
	if got := s.TakeRemoved(); len(got) != 0 {
		t.Fatalf("removed after first update = %v", got)
	}
	s.ApplyAOI(AOIUpdate{
		Player:  playerAt("me", 0, 0),
		Objects: []ObjectUpdate{{ID: "rock-1", Kind: KindObstacle}},
	}, t0.Add(time.Second))
	got := s.TakeRemoved()
	if len(got) != 1 || got[0] != "grass-1" {
		t.Fatalf("removed = %v, want [grass-1]", got)
	}
}
