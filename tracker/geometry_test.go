package tracker

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransform_ScalesPerAxis(t *testing.T) {
	tests := []struct {
		name       string
		surface    Rect
		w, h       int
		cx, cy     float64
		wantX      float64
		wantY      float64
		wantScaleX float64
		wantScaleY float64
	}{
		{"identity", Rect{0, 0, 400, 300}, 400, 300, 120, 80, 120, 80, 1, 1},
		{"shrunk by css", Rect{0, 0, 200, 150}, 400, 300, 100, 75, 200, 150, 2, 2},
		{"stretched by css", Rect{0, 0, 800, 600}, 400, 300, 400, 300, 200, 150, 0.5, 0.5},
		{"anisotropic", Rect{0, 0, 200, 600}, 400, 300, 50, 60, 100, 30, 2, 0.5},
		{"offset surface", Rect{100, 50, 200, 150}, 400, 300, 150, 125, 100, 150, 2, 2},
		{"collapsed axis", Rect{10, 10, 0, 0}, 400, 300, 15, 20, 5, 10, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTransform(tt.surface, tt.w, tt.h)
			assert.InDelta(t, tt.wantScaleX, tr.ScaleX, 1e-9)
			assert.InDelta(t, tt.wantScaleY, tr.ScaleY, 1e-9)

			x, y := tr.Point(tt.cx, tt.cy)
			assert.InDelta(t, tt.wantX, x, 1e-9)
			assert.InDelta(t, tt.wantY, y, 1e-9)
		})
	}
}

func TestTransform_RectRoundTrip(t *testing.T) {
	tr := NewTransform(Rect{X: 40, Y: 60, W: 310, H: 155}, 620, 465)
	canvas := Rect{X: 20, Y: 30, W: 40, H: 60}

	onScreen := tr.Inverse(canvas)
	back := tr.Rect(onScreen)
	assert.InDelta(t, canvas.X, back.X, 1e-9)
	assert.InDelta(t, canvas.Y, back.Y, 1e-9)
	assert.InDelta(t, canvas.W, back.W, 1e-9)
	assert.InDelta(t, canvas.H, back.H, 1e-9)
}

func TestRect_Contains(t *testing.T) {
	r := Rect{X: 10, Y: 10, W: 5, H: 5}
	assert.True(t, r.Contains(10, 10))
	assert.True(t, r.Contains(15, 15))
	assert.True(t, r.Contains(12.5, 11))
	assert.False(t, r.Contains(9.99, 12))
	assert.False(t, r.Contains(12, 15.01))
}

func TestRaster_DrawScalesAndSamples(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.Set(0, 0, color.RGBA{R: 255, A: 255})
	src.Set(1, 0, color.RGBA{G: 255, A: 255})
	src.Set(0, 1, color.RGBA{B: 255, A: 255})
	src.Set(1, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	r := NewRaster(10, 10)
	w, h := r.Size()
	assert.Equal(t, 10, w)
	assert.Equal(t, 10, h)

	r.Draw(src)

	red, g, b := r.RGB(1, 1)
	assert.Equal(t, [3]uint8{255, 0, 0}, [3]uint8{red, g, b})
	red, g, b = r.RGB(8, 2)
	assert.Equal(t, [3]uint8{0, 255, 0}, [3]uint8{red, g, b})
	red, g, b = r.RGB(9, 9)
	assert.Equal(t, [3]uint8{10, 20, 30}, [3]uint8{red, g, b})

	r.Clear()
	red, g, b = r.RGB(9, 9)
	assert.Equal(t, [3]uint8{0, 0, 0}, [3]uint8{red, g, b})
}

func TestRaster_OutOfRangeReadsBlack(t *testing.T) {
	white := image.NewRGBA(image.Rect(0, 0, 1, 1))
	white.Set(0, 0, color.White)

	r := NewRaster(4, 4)
	r.Draw(white)

	red, g, b := r.RGB(-1, 0)
	assert.Equal(t, [3]uint8{0, 0, 0}, [3]uint8{red, g, b})
	red, g, b = r.RGB(0, 0)
	assert.Equal(t, [3]uint8{255, 255, 255}, [3]uint8{red, g, b})
}
