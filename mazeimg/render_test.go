package mazeimg

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mazegate/tracker"
)

func renderTestMaze(t *testing.T) (*Maze, *image.RGBA, Layout) {
	t.Helper()
	m, err := Generate(Options{Width: 15, Height: 11, Seed: 5})
	require.NoError(t, err)
	img, layout := Render(m, RenderOptions{CellSize: 10, HeaderHeight: 40})
	return m, img, layout
}

func isPath(img *image.RGBA, x, y int) bool {
	c := img.RGBAAt(x, y)
	return tracker.IsPathPixel(c.R, c.G, c.B, tracker.DefaultThreshold)
}

func TestRender_Dimensions(t *testing.T) {
	m, img, layout := renderTestMaze(t)
	assert.Equal(t, m.Width*10, img.Bounds().Dx())
	assert.Equal(t, m.Height*10+40, img.Bounds().Dy())
	assert.Equal(t, img.Bounds().Dx(), layout.Width)
	assert.Equal(t, img.Bounds().Dy(), layout.Height)

	assert.Equal(t, tracker.Rect{X: 10, Y: 50, W: 9, H: 9}, layout.Start)
	assert.Equal(t, tracker.Rect{
		X: float64(m.Goal.X * 10),
		Y: float64(m.Goal.Y*10 + 40),
		W: 9,
		H: 9,
	}, layout.Goal)
}

func TestRender_PixelsMatchGrid(t *testing.T) {
	m, img, _ := renderTestMaze(t)

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			// Sample a cell corner so the zone dots do not interfere.
			px, py := x*10+1, y*10+40+1
			if m.Grid[y][x] == WALL {
				assert.False(t, isPath(img, px, py), "wall cell (%d,%d)", x, y)
			} else {
				assert.True(t, isPath(img, px, py), "open cell (%d,%d)", x, y)
			}
		}
	}
}

func TestRender_ZonesAreWalkable(t *testing.T) {
	_, img, layout := renderTestMaze(t)
	for _, zone := range []tracker.Rect{layout.Start, layout.Goal} {
		for y := int(zone.Y); y <= int(zone.Y+zone.H); y++ {
			for x := int(zone.X); x <= int(zone.X+zone.W); x++ {
				require.True(t, isPath(img, x, y), "zone pixel (%d,%d)", x, y)
			}
		}
	}
}

func TestRender_HeaderIsNotPath(t *testing.T) {
	_, img, _ := renderTestMaze(t)
	textPixels := 0
	for y := 0; y < 40; y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			assert.False(t, isPath(img, x, y), "header pixel (%d,%d)", x, y)
			if img.RGBAAt(x, y) != colorHeader {
				textPixels++
			}
		}
	}
	assert.Positive(t, textPixels, "header title was not drawn")
}

func TestLayout_Frame(t *testing.T) {
	layout := Layout{
		Width:  200,
		Height: 100,
		Start:  tracker.Rect{X: 10, Y: 10, W: 9, H: 9},
		Goal:   tracker.Rect{X: 180, Y: 80, W: 9, H: 9},
	}
	frame := layout.Frame(tracker.Rect{X: 5, Y: 5, W: 100, H: 50})

	assert.Equal(t, tracker.Rect{X: 10, Y: 10, W: 4.5, H: 4.5}, frame.Start)
	assert.Equal(t, tracker.Rect{X: 95, Y: 45, W: 4.5, H: 4.5}, frame.Goal)
}

func TestPNG_RoundTrip(t *testing.T) {
	_, img, _ := renderTestMaze(t)
	data, err := EncodePNG(img)
	require.NoError(t, err)

	decoded, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	path := filepath.Join(t.TempDir(), "maze.png")
	require.NoError(t, os.WriteFile(path, data, 0644))
	loaded, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), loaded.Bounds())
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode(strings.NewReader("definitely not a png"))
	assert.ErrorContains(t, err, "failed to decode maze image")

	_, err = LoadImage(filepath.Join(t.TempDir(), "nope.png"))
	assert.Error(t, err)
}

// =============================================================================
// END-TO-END WITH THE TRACKER
// =============================================================================

type nopView struct{ last string }

func (v *nopView) MoveAvatar(float64, float64) {}
func (v *nopView) SetStatus(msg string)        { v.last = msg }

type valueField struct{ value string }

func (f *valueField) Set(v string) { f.value = v }

// newMazeTracker shows the bitmap at half size at screen offset (100, 50).
func newMazeTracker(t *testing.T, img image.Image, layout Layout) (*tracker.Tracker, *valueField, tracker.Frame) {
	t.Helper()
	surface := tracker.Rect{X: 100, Y: 50, W: float64(layout.Width) / 2, H: float64(layout.Height) / 2}
	frame := layout.Frame(surface)
	field := &valueField{}

	tr, err := tracker.New(tracker.Deps{
		Canvas: tracker.NewRaster(layout.Width, layout.Height),
		Layout: tracker.StaticLayout(frame),
		View:   &nopView{},
		Field:  field,
	}, tracker.DefaultConfig())
	require.NoError(t, err)
	tr.ImageLoaded(img)
	return tr, field, frame
}

func cellCentre(frame tracker.Frame, p Position) (float64, float64) {
	// 10px cells shown at half size, below a 40px (20 on screen) header.
	return frame.Surface.X + float64(p.X*5) + 2.5, frame.Surface.Y + 20 + float64(p.Y*5) + 2.5
}

func TestRenderedMaze_SolutionVerifies(t *testing.T) {
	m, img, layout := renderTestMaze(t)
	tr, field, frame := newMazeTracker(t, img, layout)

	for _, p := range m.Solve() {
		tr.PointerMove(cellCentre(frame, p))
		require.NotEqual(t, tracker.NotStarted, tr.State(), "run reset at %v", p)
	}
	assert.Equal(t, tracker.Completed, tr.State())
	assert.Equal(t, tracker.Verified, field.value)
}

func TestRenderedMaze_WallResets(t *testing.T) {
	m, img, layout := renderTestMaze(t)
	tr, field, frame := newMazeTracker(t, img, layout)

	tr.PointerMove(cellCentre(frame, m.Start))
	require.Equal(t, tracker.InProgress, tr.State())

	tr.PointerMove(cellCentre(frame, Position{0, 0}))
	assert.Equal(t, tracker.NotStarted, tr.State())

	tr.PointerMove(cellCentre(frame, m.Goal))
	assert.Equal(t, tracker.NotStarted, tr.State())
	assert.Equal(t, tracker.Unverified, field.value)
}
