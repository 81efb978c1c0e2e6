package main

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"mazegate/mazeimg"
	"mazegate/tracker"
)

const (
	// cellAspect is the height of a terminal cell in units of its width.
	cellAspect = 2
	// statusRows are reserved below the maze for the info and status lines.
	statusRows = 2
)

var (
	avatarStyle = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	zoneStyle   = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	infoStyle   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	statusStyle = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
)

// widget hosts a tracker in a terminal. Screen cells are the client
// coordinate space: the pointer in cell (x, y) is reported at its centre.
type widget struct {
	screen  tcell.Screen
	logger  *zap.Logger
	raster  *tracker.Raster
	layout  mazeimg.Layout
	surface tracker.Rect
	tracker *tracker.Tracker
	remote  *remoteRun

	status    string
	avatarX   float64
	avatarY   float64
	avatarSet bool
	field     string
	inside    bool
}

// remoteRun mirrors local pointer events into a server session.
type remoteRun struct {
	api  *apiClient
	id   string
	last *SessionSnapshot
	err  error
}

func newWidget(screen tcell.Screen, layout mazeimg.Layout, cfg tracker.Config, logger *zap.Logger) (*widget, error) {
	w := &widget{
		screen: screen,
		logger: logger,
		layout: layout,
		raster: tracker.NewRaster(layout.Width, layout.Height),
	}

	t, err := tracker.New(tracker.Deps{
		Canvas: w.raster,
		Layout: w,
		View:   w,
		Field:  w,
		Logger: logger,
		OnTransition: func(tr tracker.Transition) {
			logger.Info("run transition",
				zap.Stringer("from", tr.From),
				zap.Stringer("to", tr.To),
				zap.String("reason", string(tr.Reason)))
		},
	}, cfg)
	if err != nil {
		return nil, err
	}
	w.tracker = t
	w.resize()
	return w, nil
}

func (w *widget) Frame() tracker.Frame {
	return w.layout.Frame(w.surface)
}

func (w *widget) MoveAvatar(x, y float64) {
	w.avatarX, w.avatarY = x, y
	w.avatarSet = true
}

func (w *widget) SetStatus(msg string) {
	w.status = msg
}

func (w *widget) Set(value string) {
	w.field = value
}

// load hands the fetch result to the tracker.
func (w *widget) load(img image.Image, err error) {
	if err != nil {
		w.tracker.ImageFailed(err)
	} else {
		w.tracker.ImageLoaded(img)
	}
	w.draw()
}

// resize fits the bitmap into the screen above the status rows, keeping
// its aspect ratio and centring it horizontally.
func (w *widget) resize() {
	sw, sh := w.screen.Size()
	rows := sh - statusRows
	width, height := w.layout.Width, w.layout.Height
	if sw < 1 || rows < 1 || width == 0 || height == 0 {
		w.surface = tracker.Rect{}
		return
	}

	cols, lines := sw, rows
	if sw*height <= rows*cellAspect*width {
		lines = max(1, sw*height/(width*cellAspect))
	} else {
		cols = max(1, rows*cellAspect*width/height)
	}

	w.surface = tracker.Rect{
		X: float64((sw - cols) / 2),
		W: float64(cols),
		H: float64(lines),
	}
}

// handleEvent feeds one terminal event to the tracker and redraws. It
// reports whether the user asked to quit.
func (w *widget) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		w.resize()
		w.screen.Sync()
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q' {
			return true
		}
	case *tcell.EventMouse:
		x, y := ev.Position()
		px, py := float64(x)+0.5, float64(y)+0.5
		if w.surface.Contains(px, py) {
			w.inside = true
			w.tracker.PointerMove(px, py)
			w.forward("move", px, py)
		} else if w.inside {
			w.inside = false
			w.tracker.PointerLeave()
			w.forward("leave", 0, 0)
		}
	}
	w.draw()
	return false
}

// forward replays a pointer event on the server session. The server sees
// the surface at its origin, sized in cells.
func (w *widget) forward(kind string, px, py float64) {
	if w.remote == nil || w.remote.err != nil {
		return
	}

	req := PointerRequest{
		Type:          kind,
		X:             px - w.surface.X,
		Y:             py - w.surface.Y,
		DisplayWidth:  w.surface.W,
		DisplayHeight: w.surface.H,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	snap, err := w.remote.api.Pointer(ctx, w.remote.id, req)
	if err != nil {
		w.remote.err = err
		w.logger.Warn("remote session stopped", zap.String("session", w.remote.id), zap.Error(err))
		return
	}
	w.remote.last = snap
}

func (w *widget) draw() {
	w.screen.Clear()

	if w.tracker.Ready() && w.surface.W > 0 {
		w.drawBitmap()
		frame := w.Frame()
		w.drawMarker(frame.Start, 'S')
		w.drawMarker(frame.Goal, 'G')
		if w.avatarSet {
			ax := int(w.surface.X + w.avatarX/100*w.surface.W)
			ay := int(w.surface.Y + w.avatarY/100*w.surface.H)
			w.screen.SetContent(ax, ay, '●', nil, avatarStyle)
		}
	}

	_, sh := w.screen.Size()
	info := fmt.Sprintf("state=%s captcha_ok=%s", w.tracker.State(), w.field)
	if w.remote != nil {
		switch {
		case w.remote.err != nil:
			info += " remote=offline"
		case w.remote.last != nil:
			info += fmt.Sprintf(" remote=%s/%s", w.remote.last.State, w.remote.last.CaptchaOK)
		}
	}
	w.drawText(0, sh-2, info+"  (q to quit)", infoStyle)
	w.drawText(0, sh-1, w.status, statusStyle)
	w.screen.Show()
}

// drawBitmap samples the canvas at the centre of every surface cell.
func (w *widget) drawBitmap() {
	tf := tracker.NewTransform(w.surface, w.layout.Width, w.layout.Height)
	for row := 0; row < int(w.surface.H); row++ {
		for col := 0; col < int(w.surface.W); col++ {
			x, y := int(w.surface.X)+col, int(w.surface.Y)+row
			cx, cy := tf.Point(float64(x)+0.5, float64(y)+0.5)
			r, g, b := w.raster.RGB(int(cx), int(cy))
			bg := tcell.NewRGBColor(int32(r), int32(g), int32(b))
			w.screen.SetContent(x, y, ' ', nil, tcell.StyleDefault.Background(bg))
		}
	}
}

func (w *widget) drawMarker(zone tracker.Rect, mark rune) {
	x := int(zone.X + zone.W/2)
	y := int(zone.Y + zone.H/2)
	_, _, style, _ := w.screen.GetContent(x, y)
	_, bg, _ := style.Decompose()
	w.screen.SetContent(x, y, mark, nil, zoneStyle.Background(bg))
}

func (w *widget) drawText(x, y int, text string, style tcell.Style) {
	for _, r := range text {
		w.screen.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
}

// run polls events until the user quits or the screen is finalized.
func (w *widget) run() {
	for {
		ev := w.screen.PollEvent()
		if ev == nil {
			return
		}
		if w.handleEvent(ev) {
			return
		}
	}
}
