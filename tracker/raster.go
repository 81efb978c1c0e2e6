package tracker

import (
	"image"

	"golang.org/x/image/draw"
)

// Canvas is the drawable surface the maze bitmap is painted into and
// sampled from.
type Canvas interface {
	Size() (width, height int)
	Clear()
	Draw(src image.Image)
	RGB(x, y int) (r, g, b uint8)
}

// Raster is an in-memory RGBA Canvas. Draw scales the source to fill the
// whole raster, the same way a browser canvas stretches drawImage.
type Raster struct {
	img    *image.RGBA
	scaler draw.Scaler
}

func NewRaster(width, height int) *Raster {
	return &Raster{
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
		scaler: draw.NearestNeighbor,
	}
}

// WithScaler swaps the interpolator used by Draw.
func (r *Raster) WithScaler(s draw.Scaler) *Raster {
	r.scaler = s
	return r
}

func (r *Raster) Size() (int, int) {
	b := r.img.Bounds()
	return b.Dx(), b.Dy()
}

func (r *Raster) Clear() {
	draw.Draw(r.img, r.img.Bounds(), image.Transparent, image.Point{}, draw.Src)
}

func (r *Raster) Draw(src image.Image) {
	r.scaler.Scale(r.img, r.img.Bounds(), src, src.Bounds(), draw.Over, nil)
}

// RGB reads back a pixel. Out-of-range reads return black, like an
// unpainted canvas.
func (r *Raster) RGB(x, y int) (uint8, uint8, uint8) {
	c := r.img.RGBAAt(x, y)
	return c.R, c.G, c.B
}

// Image exposes the painted buffer.
func (r *Raster) Image() *image.RGBA {
	return r.img
}
