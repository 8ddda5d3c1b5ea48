package world

import (
	"sort"
	"sync"
	"time"
)

// sanity limits for a single AOI update; anything past these is dropped.
const (
	maxVisiblePlayers = 1024
	maxVisibleBots    = 1024
	maxVisibleObjects = 8192
	maxPathCells      = 1024
)

// EntityUpdate is one sighting of an interpolated entity.
type EntityUpdate struct {
	ID        string
	Pos       Vec2
	Dims      Size
	Direction Direction
	Mode      Mode
	Life      float64
	MaxLife   float64
	Layers    []LayerBinding
}

// PlayerUpdate is one sighting of a player.
type PlayerUpdate struct {
	EntityUpdate
	MapID     int
	TargetPos Vec2
	HasTarget bool
	Path      []Vec2
}

// ObjectUpdate is one static grid object from an AOI update.
type ObjectUpdate struct {
	ID          string
	Kind        ObjectKind
	Pos         Vec2
	Dims        Size
	Layers      []LayerBinding
	PortalLabel string
}

// AOIUpdate is the decoded content of one aoi_update payload. Player is nil
// when the payload carried no usable local player record.
type AOIUpdate struct {
	Player  *PlayerUpdate
	Players []PlayerUpdate
	Bots    []EntityUpdate
	Objects []ObjectUpdate
}

// State is the local replica of the server world: map configuration, the
// local player, visible players and bots, and static objects.
type State struct {
	mu sync.RWMutex

	initialized bool
	cfg         Config

	player     Player
	playerSeen bool

	players map[string]*Player
	bots    map[string]*Entity

	objects map[ObjectKind]map[string]*StaticObject

	skillItems []string
	lastUpdate time.Time
	lastPong   time.Time

	errMsg     string
	errExpires time.Time

	effects []Effect
	removed []string
}

// New returns an empty, uninitialized world.
func New() *State {
	s := &State{}
	s.reset()
	return s
}

func (s *State) reset() {
	s.initialized = false
	s.cfg = Config{}
	s.player = Player{}
	s.playerSeen = false
	s.players = make(map[string]*Player)
	s.bots = make(map[string]*Entity)
	s.objects = map[ObjectKind]map[string]*StaticObject{
		KindFloor:      {},
		KindObstacle:   {},
		KindPortal:     {},
		KindForeground: {},
	}
	s.skillItems = nil
	s.lastUpdate = time.Time{}
	s.lastPong = time.Time{}
	s.errMsg = ""
	s.errExpires = time.Time{}
	s.effects = nil
	s.removed = nil
}

// Reset clears all world state. Used on teardown and reconnect.
func (s *State) Reset() {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
}

// ApplyInit stores the global configuration. It is applied exactly once;
// later calls are ignored and report false.
func (s *State) ApplyInit(cfg Config) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return false
	}
	if cfg.CameraZoom <= 0 {
		cfg.CameraZoom = 1
	}
	s.cfg = cfg
	s.initialized = true
	if !s.playerSeen {
		s.player.Dims = cfg.DefaultDims()
	}
	return true
}

// Initialized reports whether init_data has been applied.
func (s *State) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Config returns the applied configuration.
func (s *State) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ApplyAOI applies one area-of-interest update. Entities keep their
// interpolation history: PrevPos takes the current InterpPos and ServerPos
// the new position while InterpPos is left alone, so the display never
// jumps. Players and bots absent from u are removed and queued for
// TakeRemoved; static objects are rebuilt from scratch and the ids that
// vanished are queued the same way.
func (s *State) ApplyAOI(u AOIUpdate, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := s.cfg.DefaultDims()

	if u.Player != nil {
		s.applyLocalPlayer(*u.Player, defaults, now)
	}

	seenPlayers := make(map[string]struct{}, len(u.Players))
	for i, pu := range u.Players {
		if i >= maxVisiblePlayers {
			break
		}
		if pu.ID == "" || pu.ID == s.player.ID {
			continue
		}
		seenPlayers[pu.ID] = struct{}{}
		p, ok := s.players[pu.ID]
		if !ok {
			p = &Player{}
			s.players[pu.ID] = p
		}
		applyPlayer(p, pu, defaults, !ok)
	}

	seenBots := make(map[string]struct{}, len(u.Bots))
	for i, bu := range u.Bots {
		if i >= maxVisibleBots {
			break
		}
		if bu.ID == "" {
			continue
		}
		seenBots[bu.ID] = struct{}{}
		b, ok := s.bots[bu.ID]
		if !ok {
			b = &Entity{}
			s.bots[bu.ID] = b
		}
		applyEntity(b, bu, defaults, !ok)
	}

	previous := make(map[string]struct{})
	for kind, objs := range s.objects {
		for id := range objs {
			previous[id] = struct{}{}
		}
		s.objects[kind] = make(map[string]*StaticObject)
	}
	for i, ou := range u.Objects {
		if i >= maxVisibleObjects {
			break
		}
		if ou.ID == "" {
			continue
		}
		dims := ou.Dims
		if dims.W <= 0 || dims.H <= 0 {
			dims = defaults
		}
		s.objects[ou.Kind][ou.ID] = &StaticObject{
			ID:          ou.ID,
			Pos:         ou.Pos,
			Dims:        dims,
			Kind:        ou.Kind,
			Layers:      copyLayers(ou.Layers),
			PortalLabel: ou.PortalLabel,
		}
	}

	for id := range s.players {
		if _, ok := seenPlayers[id]; !ok {
			delete(s.players, id)
			s.removed = append(s.removed, id)
		}
	}
	for id := range s.bots {
		if _, ok := seenBots[id]; !ok {
			delete(s.bots, id)
			s.removed = append(s.removed, id)
		}
	}
	for id := range previous {
		if !s.hasObjectLocked(id) {
			s.removed = append(s.removed, id)
		}
	}

	s.lastUpdate = now
}

func (s *State) hasObjectLocked(id string) bool {
	for _, objs := range s.objects {
		if _, ok := objs[id]; ok {
			return true
		}
	}
	return false
}

func (s *State) applyLocalPlayer(pu PlayerUpdate, defaults Size, now time.Time) {
	fresh := !s.playerSeen || s.player.ID != pu.ID || s.player.MapID != pu.MapID
	if s.playerSeen && s.player.ID != "" && s.player.ID != pu.ID {
		s.removed = append(s.removed, s.player.ID)
	}
	prevTarget, hadTarget := s.player.TargetPos, s.player.HasTarget
	applyPlayer(&s.player, pu, defaults, fresh)
	s.playerSeen = true
	if pu.HasTarget && (!hadTarget || prevTarget != pu.TargetPos) {
		s.spawnEffect(EffectTargetMarker, pu.TargetPos, now)
	}
}

func applyPlayer(p *Player, pu PlayerUpdate, defaults Size, fresh bool) {
	applyEntity(&p.Entity, pu.EntityUpdate, defaults, fresh)
	p.MapID = pu.MapID
	p.TargetPos = pu.TargetPos
	p.HasTarget = pu.HasTarget
	path := pu.Path
	if len(path) > maxPathCells {
		path = path[:maxPathCells]
	}
	p.Path = append([]Vec2(nil), path...)
}

// applyEntity updates e from u. A fresh entity, or one that is teleporting,
// snaps to its server position.
func applyEntity(e *Entity, u EntityUpdate, defaults Size, fresh bool) {
	e.ID = u.ID
	if fresh || u.Mode == ModeTeleporting {
		e.ServerPos = u.Pos
		e.PrevPos = u.Pos
		e.InterpPos = u.Pos
	} else {
		e.PrevPos = e.InterpPos
		e.ServerPos = u.Pos
	}
	e.Dims = u.Dims
	if e.Dims.W <= 0 || e.Dims.H <= 0 {
		e.Dims = defaults
	}
	e.Direction = u.Direction
	e.Mode = u.Mode
	e.Life = u.Life
	e.MaxLife = u.MaxLife
	e.Layers = copyLayers(u.Layers)
}

func copyLayers(in []LayerBinding) []LayerBinding {
	if len(in) == 0 {
		return nil
	}
	return append([]LayerBinding(nil), in...)
}

// TakeRemoved returns and clears the ids of entities removed since the last
// call, so owners of per-entity state can release it.
func (s *State) TakeRemoved() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.removed
	s.removed = nil
	return out
}

// SetSkillItems stores the item ids associated with the player's skills.
func (s *State) SetSkillItems(ids []string) {
	s.mu.Lock()
	s.skillItems = append([]string(nil), ids...)
	s.mu.Unlock()
}

// SkillItems returns the stored skill item ids.
func (s *State) SkillItems() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.skillItems...)
}

// SetError stores a server error message for display until the error
// window elapses.
func (s *State) SetError(msg string, now time.Time) {
	s.mu.Lock()
	s.errMsg = msg
	s.errExpires = now.Add(errorDisplayWindow)
	s.mu.Unlock()
}

// ActiveError returns the current error message if it is still within its
// display window. Expired messages are cleared.
func (s *State) ActiveError(now time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errMsg == "" {
		return "", false
	}
	if !now.Before(s.errExpires) {
		s.errMsg = ""
		return "", false
	}
	return s.errMsg, true
}

// NotePong records the arrival of a pong.
func (s *State) NotePong(now time.Time) {
	s.mu.Lock()
	s.lastPong = now
	s.mu.Unlock()
}

// LastPong returns when the last pong arrived.
func (s *State) LastPong() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPong
}

// LastUpdate returns the time of the last applied AOI update.
func (s *State) LastUpdate() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdate
}

// Player returns a copy of the local player.
func (s *State) Player() Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.player
}

// VisiblePlayer returns a copy of a visible player by id.
func (s *State) VisiblePlayer(id string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Bot returns a copy of a visible bot by id.
func (s *State) Bot(id string) (Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bots[id]
	if !ok {
		return Entity{}, false
	}
	return *b, true
}

// Snapshot is a read-only copy of the world used by one rendered frame.
// Slices are sorted by id so iteration order is stable.
type Snapshot struct {
	Initialized bool
	Config      Config
	HasPlayer   bool
	Player      Player
	Players     []Player
	Bots        []Entity
	Floors      []StaticObject
	Obstacles   []StaticObject
	Portals     []StaticObject
	Foregrounds []StaticObject
	Effects     []Effect
	LastUpdate  time.Time
}

// Snapshot copies the shared state under the read lock. Layer and path
// slices are shared; the mutator always replaces them instead of editing.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Initialized: s.initialized,
		Config:      s.cfg,
		HasPlayer:   s.initialized || s.playerSeen,
		Player:      s.player,
		Players:     make([]Player, 0, len(s.players)),
		Bots:        make([]Entity, 0, len(s.bots)),
		Floors:      sortedObjects(s.objects[KindFloor]),
		Obstacles:   sortedObjects(s.objects[KindObstacle]),
		Portals:     sortedObjects(s.objects[KindPortal]),
		Foregrounds: sortedObjects(s.objects[KindForeground]),
		Effects:     append([]Effect(nil), s.effects...),
		LastUpdate:  s.lastUpdate,
	}
	for _, p := range s.players {
		snap.Players = append(snap.Players, *p)
	}
	sort.Slice(snap.Players, func(i, j int) bool { return snap.Players[i].ID < snap.Players[j].ID })
	for _, b := range s.bots {
		snap.Bots = append(snap.Bots, *b)
	}
	sort.Slice(snap.Bots, func(i, j int) bool { return snap.Bots[i].ID < snap.Bots[j].ID })
	return snap
}

func sortedObjects(m map[string]*StaticObject) []StaticObject {
	out := make([]StaticObject, 0, len(m))
	for _, o := range m {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Counts returns the number of visible players, bots and static objects.
func (s *State) Counts() (players, bots, objects int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.objects {
		objects += len(m)
	}
	return len(s.players), len(s.bots), objects
}
