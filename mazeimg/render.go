package mazeimg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"mazegate/tracker"
)

// Palette. Path-like colours keep r+g+b under tracker.DefaultThreshold so
// the dark-is-path predicate lets the pointer walk over them; everything
// else is well above it.
var (
	colorHeader   = color.RGBA{248, 249, 250, 255}
	colorText     = color.RGBA{196, 120, 20, 255}
	colorSubtitle = color.RGBA{120, 110, 100, 255}
	colorWall     = color.RGBA{250, 220, 120, 255}
	colorPath     = color.RGBA{34, 30, 28, 255}
	colorStart    = color.RGBA{20, 70, 0, 255}
	colorGoal     = color.RGBA{85, 10, 0, 255}
	colorStartDot = color.RGBA{10, 85, 0, 255}
	colorGoalDot  = color.RGBA{95, 0, 0, 255}
)

type RenderOptions struct {
	CellSize     int `yaml:"cell_size" json:"cell_size"`
	HeaderHeight int `yaml:"header_height" json:"header_height"`
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{CellSize: 16, HeaderHeight: 40}
}

// Layout describes a rendered bitmap: its intrinsic size and the START and
// GOAL zones in intrinsic pixel coordinates.
type Layout struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Start  tracker.Rect `json:"start"`
	Goal   tracker.Rect `json:"goal"`
}

// Frame places the layout on a surface shown at the given screen rect,
// scaling the zones with it.
func (l Layout) Frame(surface tracker.Rect) tracker.Frame {
	tr := tracker.NewTransform(surface, l.Width, l.Height)
	return tracker.Frame{
		Surface: surface,
		Start:   tr.Inverse(l.Start),
		Goal:    tr.Inverse(l.Goal),
	}
}

// Render draws the maze below a title header.
func Render(m *Maze, opts RenderOptions) (*image.RGBA, Layout) {
	if opts.CellSize <= 0 {
		opts.CellSize = DefaultRenderOptions().CellSize
	}
	if opts.HeaderHeight < 0 {
		opts.HeaderHeight = 0
	}
	cellSize := opts.CellSize
	header := opts.HeaderHeight

	totalWidth := m.Width * cellSize
	totalHeight := m.Height*cellSize + header
	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))

	draw.Draw(img, image.Rect(0, 0, totalWidth, header), &image.Uniform{colorHeader}, image.Point{}, draw.Src)
	if header >= 30 {
		drawText(img, "CHEESE MAZE", totalWidth/2, header/2-13, colorText)
		drawText(img, "START -> cheese, dark path only", totalWidth/2, header/2+2, colorSubtitle)
	}

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := colorPath
			switch m.Grid[y][x] {
			case WALL:
				c = colorWall
			case START:
				c = colorStart
			case GOAL:
				c = colorGoal
			}
			draw.Draw(img, cellRect(x, y, cellSize, header), &image.Uniform{c}, image.Point{}, draw.Src)
		}
	}

	radius := int(float64(cellSize) * 0.35)
	fillCircle(img, m.Start.X*cellSize+cellSize/2, m.Start.Y*cellSize+cellSize/2+header, radius, colorStartDot)
	fillCircle(img, m.Goal.X*cellSize+cellSize/2, m.Goal.Y*cellSize+cellSize/2+header, radius, colorGoalDot)

	layout := Layout{
		Width:  totalWidth,
		Height: totalHeight,
		Start:  zoneRect(m.Start, cellSize, header),
		Goal:   zoneRect(m.Goal, cellSize, header),
	}
	return img, layout
}

func cellRect(x, y, cellSize, header int) image.Rectangle {
	return image.Rect(x*cellSize, y*cellSize+header, (x+1)*cellSize, (y+1)*cellSize+header)
}

// zoneRect covers exactly the cell's pixels; the tracker's rects are
// inclusive, hence the -1.
func zoneRect(p Position, cellSize, header int) tracker.Rect {
	return tracker.Rect{
		X: float64(p.X * cellSize),
		Y: float64(p.Y*cellSize + header),
		W: float64(cellSize - 1),
		H: float64(cellSize - 1),
	}
}

func fillCircle(img *image.RGBA, centerX, centerY, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				img.SetRGBA(centerX+dx, centerY+dy, c)
			}
		}
	}
}

// drawText centres text horizontally on centerX with its top at y.
func drawText(img *image.RGBA, text string, centerX, y int, textColor color.RGBA) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
	}

	textWidth := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.Point26_6{
		X: fixed.I(centerX - textWidth/2),
		Y: fixed.I(y + basicfont.Face7x13.Ascent),
	}
	drawer.DrawString(text)
}

func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode maze png: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads any registered image format; PNG is always available.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode maze image: %w", err)
	}
	return img, nil
}

func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open maze image: %w", err)
	}
	defer f.Close()
	return Decode(f)
}
