package render

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/hajimehoshi/ebiten/v2"
	text "github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"cyberia/assets"
)

var drawOptsPool = sync.Pool{
	New: func() any { return &ebiten.DrawImageOptions{} },
}

func acquireDrawOpts() *ebiten.DrawImageOptions {
	op := drawOptsPool.Get().(*ebiten.DrawImageOptions)
	*op = ebiten.DrawImageOptions{}
	op.Filter = ebiten.FilterNearest
	op.DisableMipmaps = true
	return op
}

func releaseDrawOpts(op *ebiten.DrawImageOptions) {
	drawOptsPool.Put(op)
}

// EbitenCanvas implements Canvas on an *ebiten.Image. Frame sub-images are
// kept in a cost-bounded cache keyed by atlas and source rectangle.
type EbitenCanvas struct {
	dst    *ebiten.Image
	face   text.Face
	frames *ristretto.Cache[string, *ebiten.Image]
}

// NewEbitenCanvas returns a canvas drawing labels with face (may be nil).
// Call Bind before each frame.
func NewEbitenCanvas(face text.Face) (*EbitenCanvas, error) {
	frames, err := ristretto.NewCache[string, *ebiten.Image](&ristretto.Config[string, *ebiten.Image]{
		NumCounters: 40000,
		MaxCost:     4096,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("frame cache: %w", err)
	}
	return &EbitenCanvas{face: face, frames: frames}, nil
}

// Bind sets the image drawn on by later calls.
func (c *EbitenCanvas) Bind(dst *ebiten.Image) {
	c.dst = dst
}

func (c *EbitenCanvas) FillRect(r Rect, col color.RGBA) {
	if c.dst == nil || r.W <= 0 || r.H <= 0 {
		return
	}
	vector.DrawFilledRect(c.dst, float32(r.X), float32(r.Y), float32(r.W), float32(r.H), col, false)
}

func (c *EbitenCanvas) StrokeRect(r Rect, width float32, col color.RGBA) {
	if c.dst == nil || r.W <= 0 || r.H <= 0 {
		return
	}
	vector.StrokeRect(c.dst, float32(r.X), float32(r.Y), float32(r.W), float32(r.H), width, col, false)
}

func (c *EbitenCanvas) DrawFrame(tex assets.Texture, f Frame, dst Rect) {
	atlas, ok := tex.(*ebiten.Image)
	if c.dst == nil || !ok || f.Src.Empty() || dst.W <= 0 || dst.H <= 0 {
		return
	}
	sub := c.subImage(atlas, f)
	op := acquireDrawOpts()
	op.GeoM.Scale(dst.W/float64(f.Src.Dx()), dst.H/float64(f.Src.Dy()))
	op.GeoM.Translate(dst.X, dst.Y)
	c.dst.DrawImage(sub, op)
	releaseDrawOpts(op)
}

func (c *EbitenCanvas) subImage(atlas *ebiten.Image, f Frame) *ebiten.Image {
	key := fmt.Sprintf("%s|%d,%d,%d,%d", f.Atlas, f.Src.Min.X, f.Src.Min.Y, f.Src.Max.X, f.Src.Max.Y)
	if sub, ok := c.frames.Get(key); ok {
		return sub
	}
	sub := atlas.SubImage(f.Src).(*ebiten.Image)
	c.frames.Set(key, sub, 1)
	return sub
}

func (c *EbitenCanvas) DrawText(s string, x, y float64, col color.RGBA) {
	if c.dst == nil || c.face == nil || s == "" {
		return
	}
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(col)
	op.PrimaryAlign = text.AlignStart
	op.SecondaryAlign = text.AlignEnd
	text.Draw(c.dst, s, c.face, op)
}

// Purge drops cached sub-images. Call it when atlases are released.
func (c *EbitenCanvas) Purge() {
	c.frames.Clear()
}

// Close releases the frame cache.
func (c *EbitenCanvas) Close() {
	c.frames.Close()
}
