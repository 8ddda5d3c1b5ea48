package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"

	"github.com/hajimehoshi/ebiten/v2"
	_ "golang.org/x/image/webp"
)

// Texture is an uploaded atlas raster.
type Texture interface {
	Bounds() image.Rectangle
	Deallocate()
}

// Uploader turns a decoded atlas into a Texture. Tests replace it to avoid
// touching the GPU.
var Uploader = func(img image.Image) (Texture, error) {
	return ebiten.NewImageFromImage(img), nil
}

// decodeTexture decodes PNG or WebP bytes and uploads the result.
func decodeTexture(data []byte) (Texture, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode atlas image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("decode atlas image: empty %s", format)
	}
	tex, err := Uploader(img)
	if err != nil {
		return nil, fmt.Errorf("upload atlas image: %w", err)
	}
	return tex, nil
}

func textureBytes(t Texture) int64 {
	b := t.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
