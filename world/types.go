package world

import "time"

// Direction is an eight-way compass facing. The zero value is DirNone.
type Direction uint8

const (
	DirNone Direction = iota
	DirN
	DirNE
	DirE
	DirSE
	DirS
	DirSW
	DirW
	DirNW
)

// animation prefixes, indexed by Direction
var directionNames = [...]string{
	DirNone: "none",
	DirN:    "up",
	DirNE:   "up_right",
	DirE:    "right",
	DirSE:   "down_right",
	DirS:    "down",
	DirSW:   "down_left",
	DirW:    "left",
	DirNW:   "up_left",
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "none"
}

// Valid reports whether d is one of the nine declared values.
func (d Direction) Valid() bool {
	return int(d) < len(directionNames)
}

// ParseDirection maps an animation prefix or compass abbreviation to a
// Direction. Unknown names yield DirNone.
func ParseDirection(s string) Direction {
	switch s {
	case "up", "N", "n", "UP":
		return DirN
	case "up_right", "NE", "ne", "UP_RIGHT":
		return DirNE
	case "right", "E", "e", "RIGHT":
		return DirE
	case "down_right", "SE", "se", "DOWN_RIGHT":
		return DirSE
	case "down", "S", "s", "DOWN":
		return DirS
	case "down_left", "SW", "sw", "DOWN_LEFT":
		return DirSW
	case "left", "W", "w", "LEFT":
		return DirW
	case "up_left", "NW", "nw", "UP_LEFT":
		return DirNW
	}
	return DirNone
}

// Mode is the movement mode reported by the server.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeWalking
	ModeTeleporting
)

func (m Mode) String() string {
	switch m {
	case ModeWalking:
		return "walking"
	case ModeTeleporting:
		return "teleporting"
	}
	return "idle"
}

// ParseMode maps a mode name to a Mode. Unknown names yield ModeIdle.
func ParseMode(s string) Mode {
	switch s {
	case "walking", "WALKING":
		return ModeWalking
	case "teleporting", "TELEPORTING":
		return ModeTeleporting
	}
	return ModeIdle
}

// Vec2 is a position in grid cells.
type Vec2 struct {
	X, Y float64
}

// Lerp returns the point at fraction f of the way from a to b.
func Lerp(a, b Vec2, f float64) Vec2 {
	return Vec2{X: a.X + (b.X-a.X)*f, Y: a.Y + (b.Y-a.Y)*f}
}

// Size is a width/height pair in grid cells.
type Size struct {
	W, H float64
}

// LayerBinding attaches one object layer (skin, weapon, ...) to its owner.
type LayerBinding struct {
	ItemID   string
	Active   bool
	Quantity int
}

// Entity is an interpolated, animated world participant. InterpPos always
// lies on the segment between PrevPos and ServerPos.
type Entity struct {
	ID        string
	ServerPos Vec2
	PrevPos   Vec2
	InterpPos Vec2
	Dims      Size
	Direction Direction
	Mode      Mode
	Life      float64
	MaxLife   float64
	Layers    []LayerBinding
}

// Bottom returns the depth key used for z-ordering: the interpolated
// y coordinate of the entity's lower edge.
func (e *Entity) Bottom() float64 {
	return e.InterpPos.Y + e.Dims.H
}

// Player is an Entity with map and path information.
type Player struct {
	Entity
	MapID     int
	TargetPos Vec2
	HasTarget bool
	Path      []Vec2
}

// ObjectKind classifies static grid objects.
type ObjectKind uint8

const (
	KindFloor ObjectKind = iota
	KindObstacle
	KindPortal
	KindForeground
)

func (k ObjectKind) String() string {
	switch k {
	case KindObstacle:
		return "obstacle"
	case KindPortal:
		return "portal"
	case KindForeground:
		return "foreground"
	}
	return "floor"
}

// ParseObjectKind maps the server's Type tag to an ObjectKind. ok is false
// for tags that are not static objects (bots, unknown types).
func ParseObjectKind(s string) (ObjectKind, bool) {
	switch s {
	case "floor":
		return KindFloor, true
	case "obstacle":
		return KindObstacle, true
	case "portal":
		return KindPortal, true
	case "foreground":
		return KindForeground, true
	}
	return 0, false
}

// StaticObject is a non-interpolated grid object rebuilt on every AOI update.
type StaticObject struct {
	ID          string
	Pos         Vec2
	Dims        Size
	Kind        ObjectKind
	Layers      []LayerBinding
	PortalLabel string
}

// Color is an 8-bit RGBA colour from the server palette.
type Color struct {
	R, G, B, A uint8
}

// Config is the global configuration carried by init_data.
type Config struct {
	GridW, GridH        int
	CellSize            float64
	FPS                 int
	InterpolationMS     float64
	AOIRadius           float64
	DefaultObjectWidth  float64
	DefaultObjectHeight float64
	CameraSmoothing     float64
	CameraZoom          float64
	Colors              map[string]Color
	SumStatsLimit       int
	DevUI               bool
}

// DefaultDims returns the configured default entity dimensions, never zero.
func (c Config) DefaultDims() Size {
	d := Size{W: c.DefaultObjectWidth, H: c.DefaultObjectHeight}
	if d.W <= 0 {
		d.W = 1
	}
	if d.H <= 0 {
		d.H = 1
	}
	return d
}

// Color returns the palette entry for name, or fallback when absent.
func (c Config) Color(name string, fallback Color) Color {
	if col, ok := c.Colors[name]; ok {
		return col
	}
	return fallback
}

// errorDisplayWindow is how long a server error stays visible.
const errorDisplayWindow = 5 * time.Second
