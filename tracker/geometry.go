package tracker

// Rect is an axis-aligned rectangle. Both edges are inclusive.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.W &&
		y >= r.Y && y <= r.Y+r.H
}

// Frame is the on-screen geometry observed for a single pointer event:
// the drawable surface and the two zone markers, all in screen coordinates.
type Frame struct {
	Surface Rect
	Start   Rect
	Goal    Rect
}

// Layout supplies the current Frame. It is consulted on every event
// because the host may resize or move the surface at any time.
type Layout interface {
	Frame() Frame
}

// LayoutFunc adapts a function literal to the Layout interface.
type LayoutFunc func() Frame

func (f LayoutFunc) Frame() Frame {
	return f()
}

// StaticLayout is a Layout that never changes.
type StaticLayout Frame

func (l StaticLayout) Frame() Frame {
	return Frame(l)
}

// Transform maps screen coordinates onto a canvas' intrinsic pixel grid.
type Transform struct {
	OriginX, OriginY float64
	ScaleX, ScaleY   float64
}

// NewTransform builds the mapping for a surface displayed at surface but
// backed by a width x height pixel buffer. A collapsed axis keeps scale 1.
func NewTransform(surface Rect, width, height int) Transform {
	t := Transform{OriginX: surface.X, OriginY: surface.Y, ScaleX: 1, ScaleY: 1}
	if surface.W > 0 {
		t.ScaleX = float64(width) / surface.W
	}
	if surface.H > 0 {
		t.ScaleY = float64(height) / surface.H
	}
	return t
}

// Point converts a screen point to canvas pixel space.
func (t Transform) Point(clientX, clientY float64) (float64, float64) {
	return (clientX - t.OriginX) * t.ScaleX, (clientY - t.OriginY) * t.ScaleY
}

// Rect converts a screen rectangle to canvas pixel space.
func (t Transform) Rect(r Rect) Rect {
	x, y := t.Point(r.X, r.Y)
	return Rect{X: x, Y: y, W: r.W * t.ScaleX, H: r.H * t.ScaleY}
}

// Inverse maps a canvas rectangle back onto the screen.
func (t Transform) Inverse(r Rect) Rect {
	return Rect{
		X: r.X/t.ScaleX + t.OriginX,
		Y: r.Y/t.ScaleY + t.OriginY,
		W: r.W / t.ScaleX,
		H: r.H / t.ScaleY,
	}
}
