package render

import (
	"image"
	"image/color"
	"sort"
	"strings"
	"time"

	"cyberia/anim"
	"cyberia/assets"
	"cyberia/world"
)

// MaxLayersPerEntity bounds the bindings composed for one entity.
const MaxLayersPerEntity = 20

// PlaceholderColor fills entities whose layers are not all ready.
var PlaceholderColor = color.RGBA{R: 100, G: 100, B: 100, A: 200}

var (
	backgroundColor = color.RGBA{R: 24, G: 24, B: 28, A: 255}
	floorColor      = color.RGBA{R: 60, G: 110, B: 60, A: 255}
	obstacleColor   = color.RGBA{R: 100, G: 100, B: 100, A: 255}
	portalColor     = color.RGBA{R: 140, G: 80, B: 200, A: 255}
	foregroundColor = color.RGBA{R: 30, G: 90, B: 30, A: 160}
	markerColor     = color.RGBA{R: 255, G: 220, B: 0, A: 255}
	pathColor       = color.RGBA{R: 255, G: 255, B: 255, A: 60}
	aoiColor        = color.RGBA{R: 0, G: 200, B: 255, A: 120}
	labelColor      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Role tells who an entity is for tie-breaking and debug tints.
type Role uint8

const (
	RoleSelf Role = iota
	RoleOther
	RoleBot
	RoleFloor
	RoleObstacle
	RolePortal
	RoleForeground
)

var roleTint = map[Role]color.RGBA{
	RoleSelf:       {0, 121, 241, 255},
	RoleOther:      {0, 228, 48, 255},
	RoleBot:        {230, 41, 55, 255},
	RoleFloor:      {80, 80, 80, 255},
	RoleObstacle:   {255, 161, 0, 255},
	RolePortal:     {200, 122, 255, 255},
	RoleForeground: {0, 158, 47, 255},
}

// Assets is the lookup surface the renderer needs from the resolver.
type Assets interface {
	GetOrFetchObjectLayer(itemID string) (*assets.ObjectLayerMeta, bool)
	GetOrFetchAtlas(itemKey string) (*assets.AtlasMeta, bool)
	GetAtlasTexture(fileID string) (assets.Texture, bool)
}

// Stats counts what the last frame drew.
type Stats struct {
	Entities     int
	Objects      int
	LayersDrawn  int
	Placeholders int
	Loading      int
}

// Renderer draws world snapshots. It holds identifiers only; world state,
// metadata and textures belong to their owners.
type Renderer struct {
	assets Assets
	anim   *anim.Engine
	cam    Camera

	// ForceDevUI turns on debug overlays regardless of the server flag.
	ForceDevUI bool

	stats Stats
}

// New returns a renderer resolving layers through a and animating with e.
func New(a Assets, e *anim.Engine) *Renderer {
	return &Renderer{assets: a, anim: e}
}

// Camera returns the renderer's camera.
func (r *Renderer) Camera() *Camera { return &r.cam }

// Stats returns counts from the last Frame.
func (r *Renderer) Stats() Stats { return r.stats }

type drawEntity struct {
	role   Role
	entity world.Entity
	path   []world.Vec2
	target *world.Vec2
}

// Frame draws one frame of snap onto c. Nothing is drawn before the world
// is initialized.
func (r *Renderer) Frame(c Canvas, snap world.Snapshot, now time.Time, screenW, screenH int) {
	r.stats = Stats{}
	if !snap.Initialized {
		return
	}
	cfg := snap.Config
	cell := cfg.CellSize
	if cell <= 0 {
		cell = 1
	}

	if snap.HasPlayer {
		p := snap.Player.Entity
		desired := world.Vec2{
			X: (p.InterpPos.X + p.Dims.W/2) * cell,
			Y: (p.InterpPos.Y + p.Dims.H/2) * cell,
		}
		r.cam.Update(desired, cfg.CameraSmoothing, cfg.CameraZoom, screenW, screenH)
	}

	grid := Rect{W: float64(cfg.GridW) * cell, H: float64(cfg.GridH) * cell}
	c.FillRect(r.cam.ScreenRect(grid), colorOf(cfg, "BACKGROUND", backgroundColor))

	r.drawObjects(c, cfg, snap.Floors, RoleFloor, colorOf(cfg, "FLOOR", floorColor), now)
	r.drawObjects(c, cfg, snap.Obstacles, RoleObstacle, colorOf(cfg, "OBSTACLE", obstacleColor), now)
	r.drawObjects(c, cfg, snap.Portals, RolePortal, colorOf(cfg, "PORTAL", portalColor), now)

	entities := sortEntities(collectEntities(snap))
	for _, de := range entities {
		r.stats.Entities++
		e := de.entity
		dst := r.cam.ScreenRect(worldRect(e.InterpPos, e.Dims, cell))
		r.drawComposite(c, e.ID, e.Layers, e.Direction, e.Mode, dst, PlaceholderColor, now)
	}

	r.drawObjects(c, cfg, snap.Foregrounds, RoleForeground, colorOf(cfg, "FOREGROUND", foregroundColor), now)
	r.drawEffects(c, snap.Effects, cell, now)

	if cfg.DevUI || r.ForceDevUI {
		r.drawDebug(c, snap, entities, cell)
	}
}

func collectEntities(snap world.Snapshot) []drawEntity {
	out := make([]drawEntity, 0, 1+len(snap.Players)+len(snap.Bots))
	if snap.HasPlayer {
		de := drawEntity{role: RoleSelf, entity: snap.Player.Entity, path: snap.Player.Path}
		if snap.Player.HasTarget {
			t := snap.Player.TargetPos
			de.target = &t
		}
		out = append(out, de)
	}
	for _, p := range snap.Players {
		out = append(out, drawEntity{role: RoleOther, entity: p.Entity})
	}
	for _, b := range snap.Bots {
		out = append(out, drawEntity{role: RoleBot, entity: b})
	}
	return out
}

// sortEntities orders entities by the bottom edge of their interpolated
// rectangle. Ties break by role, then id, so equal depths always draw in
// the same order.
func sortEntities(list []drawEntity) []drawEntity {
	sort.SliceStable(list, func(i, j int) bool {
		bi, bj := list[i].entity.Bottom(), list[j].entity.Bottom()
		if bi != bj {
			return bi < bj
		}
		if list[i].role != list[j].role {
			return list[i].role < list[j].role
		}
		return list[i].entity.ID < list[j].entity.ID
	})
	return list
}

func worldRect(pos world.Vec2, dims world.Size, cell float64) Rect {
	return Rect{X: pos.X * cell, Y: pos.Y * cell, W: dims.W * cell, H: dims.H * cell}
}

func colorOf(cfg world.Config, name string, fallback color.RGBA) color.RGBA {
	c := cfg.Color(name, world.Color{R: fallback.R, G: fallback.G, B: fallback.B, A: fallback.A})
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

func (r *Renderer) drawObjects(c Canvas, cfg world.Config, objs []world.StaticObject, role Role, fill color.RGBA, now time.Time) {
	cell := cfg.CellSize
	if cell <= 0 {
		cell = 1
	}
	for _, o := range objs {
		r.stats.Objects++
		dst := r.cam.ScreenRect(worldRect(o.Pos, o.Dims, cell))
		if hasRenderable(o.Layers) {
			r.drawComposite(c, o.ID, o.Layers, world.DirNone, world.ModeIdle, dst, PlaceholderColor, now)
		} else {
			c.FillRect(dst, fill)
		}
		if role == RolePortal && o.PortalLabel != "" {
			c.DrawText(o.PortalLabel, dst.X, dst.Y-2, labelColor)
		}
	}
}

func hasRenderable(layers []world.LayerBinding) bool {
	for _, l := range layers {
		if l.Active && l.ItemID != "" {
			return true
		}
	}
	return false
}

type layerDraw struct {
	binding  world.LayerBinding
	priority int
	meta     *assets.ObjectLayerMeta
	atlas    *assets.AtlasMeta
}

// drawComposite draws every ready layer of one owner into dst, or the
// placeholder when any layer is not ready or none is renderable.
func (r *Renderer) drawComposite(c Canvas, ownerID string, layers []world.LayerBinding,
	dir world.Direction, mode world.Mode, dst Rect, placeholder color.RGBA, now time.Time) {
	draws := make([]layerDraw, 0, len(layers))
	loading := false
	for _, b := range layers {
		if len(draws) >= MaxLayersPerEntity {
			break
		}
		if !b.Active || b.ItemID == "" {
			continue
		}
		meta, okMeta := r.assets.GetOrFetchObjectLayer(b.ItemID)
		atlas, okAtlas := r.assets.GetOrFetchAtlas(b.ItemID)
		if !okMeta && !okAtlas {
			loading = true
		}
		ld := layerDraw{binding: b, priority: priorityOther, meta: meta, atlas: atlas}
		if okMeta {
			ld.priority = Priority(meta.ItemType)
		}
		draws = append(draws, ld)
	}
	if loading {
		r.stats.Loading++
	}
	if len(draws) == 0 {
		r.placeholder(c, dst, placeholder)
		return
	}
	sort.SliceStable(draws, func(i, j int) bool { return draws[i].priority < draws[j].priority })

	type ready struct {
		tex   assets.Texture
		frame Frame
	}
	out := make([]ready, 0, len(draws))
	allReady := true
	for _, d := range draws {
		if d.atlas == nil {
			allReady = false
			continue
		}
		key, idx, ok := r.anim.StepAndResolveFrame(ownerID, d.binding.ItemID, dir, mode, d.meta, d.atlas, now)
		if !ok {
			allReady = false
			continue
		}
		fr, ok := d.atlas.Frame(key, idx)
		if !ok {
			allReady = false
			continue
		}
		tex, ok := r.assets.GetAtlasTexture(d.atlas.AtlasFileID)
		if !ok {
			allReady = false
			continue
		}
		out = append(out, ready{
			tex:   tex,
			frame: Frame{Atlas: d.atlas.AtlasFileID, Src: image.Rect(fr.X, fr.Y, fr.X+fr.W, fr.Y+fr.H)},
		})
	}
	if !allReady {
		r.placeholder(c, dst, placeholder)
		return
	}
	for _, o := range out {
		c.DrawFrame(o.tex, o.frame, dst)
		r.stats.LayersDrawn++
	}
}

func (r *Renderer) placeholder(c Canvas, dst Rect, col color.RGBA) {
	c.FillRect(dst, col)
	r.stats.Placeholders++
}

func (r *Renderer) drawEffects(c Canvas, effects []world.Effect, cell float64, now time.Time) {
	for _, fx := range effects {
		switch fx.Kind {
		case world.EffectTargetMarker:
			p := fx.Progress(now)
			inset := cell * 0.4 * p
			rect := Rect{
				X: fx.Pos.X*cell + inset,
				Y: fx.Pos.Y*cell + inset,
				W: cell - 2*inset,
				H: cell - 2*inset,
			}
			col := markerColor
			col.A = uint8(float64(col.A) * (1 - p))
			c.StrokeRect(r.cam.ScreenRect(rect), 2, col)
		}
	}
}

func (r *Renderer) drawDebug(c Canvas, snap world.Snapshot, entities []drawEntity, cell float64) {
	outline := func(objs []world.StaticObject, role Role) {
		for _, o := range objs {
			c.StrokeRect(r.cam.ScreenRect(worldRect(o.Pos, o.Dims, cell)), 1, roleTint[role])
		}
	}
	outline(snap.Floors, RoleFloor)
	outline(snap.Obstacles, RoleObstacle)
	outline(snap.Portals, RolePortal)
	outline(snap.Foregrounds, RoleForeground)

	for _, de := range entities {
		e := de.entity
		dst := r.cam.ScreenRect(worldRect(e.InterpPos, e.Dims, cell))
		c.StrokeRect(dst, 1, roleTint[de.role])
		if de.role != RoleSelf {
			continue
		}
		for _, step := range de.path {
			c.FillRect(r.cam.ScreenRect(worldRect(step, world.Size{W: 1, H: 1}, cell)), pathColor)
		}
		if de.target != nil {
			c.StrokeRect(r.cam.ScreenRect(worldRect(*de.target, world.Size{W: 1, H: 1}, cell)), 2, markerColor)
		}
		if radius := snap.Config.AOIRadius; radius > 0 {
			cx := e.InterpPos.X + e.Dims.W/2
			cy := e.InterpPos.Y + e.Dims.H/2
			aoi := Rect{X: (cx - radius) * cell, Y: (cy - radius) * cell, W: 2 * radius * cell, H: 2 * radius * cell}
			c.StrokeRect(r.cam.ScreenRect(aoi), 1, aoiColor)
		}
		c.DrawText(strings.ToUpper(e.Mode.String()), dst.X, dst.Y+dst.H+2, labelColor)
	}
}
