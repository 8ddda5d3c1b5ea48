// Package render composes the world snapshot into draw calls: static
// objects, depth-sorted entities built from prioritised object layers,
// effects and developer overlays.
package render

import (
	"image"
	"image/color"

	"cyberia/assets"
)

// Rect is an axis-aligned rectangle in pixels.
type Rect struct {
	X, Y, W, H float64
}

// Frame names a source rectangle inside an atlas.
type Frame struct {
	Atlas string
	Src   image.Rectangle
}

// Canvas is the set of drawing primitives the renderer needs. All
// coordinates are screen pixels.
type Canvas interface {
	FillRect(r Rect, c color.RGBA)
	StrokeRect(r Rect, width float32, c color.RGBA)
	DrawFrame(tex assets.Texture, f Frame, dst Rect)
	DrawText(s string, x, y float64, c color.RGBA)
}
