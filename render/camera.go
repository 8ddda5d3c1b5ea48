package render

import (
	"github.com/hajimehoshi/ebiten/v2"

	"cyberia/world"
)

// Camera follows a point in world pixel space.
type Camera struct {
	Target world.Vec2
	Offset world.Vec2
	Zoom   float64
	placed bool
}

// Update eases Target toward desired by smoothing and centres the view in a
// screen of the given size. The first update snaps to desired.
func (c *Camera) Update(desired world.Vec2, smoothing, zoom float64, screenW, screenH int) {
	if smoothing <= 0 || smoothing > 1 {
		smoothing = 1
	}
	if !c.placed {
		c.Target = desired
		c.placed = true
	} else {
		c.Target.X += (desired.X - c.Target.X) * smoothing
		c.Target.Y += (desired.Y - c.Target.Y) * smoothing
	}
	c.Offset = world.Vec2{X: float64(screenW) / 2, Y: float64(screenH) / 2}
	if zoom <= 0 {
		zoom = 1
	}
	c.Zoom = zoom
}

// Reset forgets the camera position.
func (c *Camera) Reset() {
	*c = Camera{}
}

// GeoM returns the world-pixel to screen transform.
func (c *Camera) GeoM() ebiten.GeoM {
	var g ebiten.GeoM
	g.Translate(-c.Target.X, -c.Target.Y)
	zoom := c.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	g.Scale(zoom, zoom)
	g.Translate(c.Offset.X, c.Offset.Y)
	return g
}

// ScreenRect maps a rectangle in world pixels to screen space.
func (c *Camera) ScreenRect(r Rect) Rect {
	g := c.GeoM()
	x0, y0 := g.Apply(r.X, r.Y)
	x1, y1 := g.Apply(r.X+r.W, r.Y+r.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// ScreenPoint maps a point in world pixels to screen space.
func (c *Camera) ScreenPoint(p world.Vec2) world.Vec2 {
	g := c.GeoM()
	x, y := g.Apply(p.X, p.Y)
	return world.Vec2{X: x, Y: y}
}
