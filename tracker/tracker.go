// Package tracker implements the maze verification widget: it follows a
// pointer across a rendered maze bitmap and flips a verification field once
// the pointer travels from the START zone to the GOAL zone without leaving
// the path.
//
// A Tracker is driven by a single event loop and is not safe for
// concurrent use.
package tracker

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"go.uber.org/zap"
)

type State int

const (
	NotStarted State = iota
	InProgress
	Completed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Verification field values.
const (
	Unverified = "0"
	Verified   = "1"
)

const (
	// DefaultThreshold is the brightness sum below which a pixel is path.
	DefaultThreshold = 100
	// MaxThreshold makes every pixel path.
	MaxThreshold = 3*255 + 1
)

// Status messages shown to the user.
const (
	MsgReady      = "Move your mouse into START to begin."
	MsgStarted    = "Nice! Stay on the path and reach the cheese 🧀."
	MsgLeftMaze   = "You left the maze. Start again from START."
	MsgHitWall    = "You hit a wall 😵 Try again from START."
	MsgCompleted  = "Maze completed ✅ You're not a bot."
	MsgLoadFailed = "Maze image failed to load 🤕"
)

type Reason string

const (
	ReasonStarted   Reason = "started"
	ReasonLeftMaze  Reason = "left_maze"
	ReasonHitWall   Reason = "hit_wall"
	ReasonCompleted Reason = "completed"
)

// Transition records one state change of a run.
type Transition struct {
	From   State
	To     State
	Reason Reason
	At     time.Time
}

// View renders the widget's visible side effects.
type View interface {
	// MoveAvatar places the pointer avatar, as percentages of the canvas.
	MoveAvatar(percentX, percentY float64)
	SetStatus(msg string)
}

// Field is the hidden form input holding Unverified or Verified.
type Field interface {
	Set(value string)
}

var (
	ErrMissingDependency = errors.New("tracker: missing dependency")
	ErrInvalidThreshold  = errors.New("tracker: threshold out of range")
)

type Config struct {
	// Threshold is compared against r+g+b of the sampled pixel.
	// Zero selects DefaultThreshold.
	Threshold int `yaml:"threshold" json:"threshold"`
}

func DefaultConfig() Config {
	return Config{Threshold: DefaultThreshold}
}

// Deps are the collaborators a Tracker needs. Canvas, Layout, View and
// Field are required.
type Deps struct {
	Canvas Canvas
	Layout Layout
	View   View
	Field  Field

	Logger       *zap.Logger
	OnTransition func(Transition)
	Clock        func() time.Time
}

type Tracker struct {
	canvas Canvas
	layout Layout
	view   View
	field  Field

	logger       *zap.Logger
	onTransition func(Transition)
	clock        func() time.Time

	threshold int
	state     State
	ready     bool
	failed    bool
}

// New wires a Tracker and resets the field to Unverified.
func New(deps Deps, cfg Config) (*Tracker, error) {
	switch {
	case deps.Canvas == nil:
		return nil, fmt.Errorf("%w: canvas", ErrMissingDependency)
	case deps.Layout == nil:
		return nil, fmt.Errorf("%w: layout", ErrMissingDependency)
	case deps.View == nil:
		return nil, fmt.Errorf("%w: view", ErrMissingDependency)
	case deps.Field == nil:
		return nil, fmt.Errorf("%w: field", ErrMissingDependency)
	}

	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Threshold < 1 || cfg.Threshold > MaxThreshold {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, cfg.Threshold)
	}

	t := &Tracker{
		canvas:       deps.Canvas,
		layout:       deps.Layout,
		view:         deps.View,
		field:        deps.Field,
		logger:       deps.Logger,
		onTransition: deps.OnTransition,
		clock:        deps.Clock,
		threshold:    cfg.Threshold,
		state:        NotStarted,
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}
	if t.clock == nil {
		t.clock = time.Now
	}
	t.field.Set(Unverified)
	return t, nil
}

func (t *Tracker) State() State { return t.state }

// Ready reports whether the maze bitmap has been drawn.
func (t *Tracker) Ready() bool { return t.ready }

func (t *Tracker) Threshold() int { return t.threshold }

// IsPathPixel reports whether a pixel counts as walkable: its channel sum
// must be below threshold, so dark pixels are path.
func IsPathPixel(r, g, b uint8, threshold int) bool {
	return int(r)+int(g)+int(b) < threshold
}

// ImageLoaded paints the decoded maze bitmap and enables tracking.
// It is ignored after ImageFailed or a previous successful load.
func (t *Tracker) ImageLoaded(img image.Image) {
	if t.failed || t.ready {
		t.logger.Debug("ignoring maze image", zap.Bool("failed", t.failed), zap.Bool("ready", t.ready))
		return
	}
	t.canvas.Clear()
	t.canvas.Draw(img)
	t.ready = true
	t.view.SetStatus(MsgReady)

	w, h := t.canvas.Size()
	t.logger.Info("maze image drawn",
		zap.Int("canvas_width", w),
		zap.Int("canvas_height", h),
		zap.Stringer("bounds", img.Bounds()))
}

// ImageFailed disables the widget for good.
func (t *Tracker) ImageFailed(err error) {
	if t.ready {
		return
	}
	t.failed = true
	t.view.SetStatus(MsgLoadFailed)
	t.logger.Error("failed to load maze image", zap.Error(err))
}

// PointerMove handles one pointer sample in screen coordinates.
func (t *Tracker) PointerMove(clientX, clientY float64) {
	if !t.ready {
		return
	}

	w, h := t.canvas.Size()
	if w <= 0 || h <= 0 {
		return
	}
	frame := t.layout.Frame()
	tr := NewTransform(frame.Surface, w, h)
	x, y := tr.Point(clientX, clientY)

	t.view.MoveAvatar(x/float64(w)*100, y/float64(h)*100)

	switch t.state {
	case NotStarted:
		if tr.Rect(frame.Start).Contains(x, y) {
			t.transition(InProgress, ReasonStarted)
			t.view.SetStatus(MsgStarted)
		}

	case Completed:
		return

	case InProgress:
		if x < 0 || y < 0 || x >= float64(w) || y >= float64(h) {
			t.reset(ReasonLeftMaze, MsgLeftMaze)
			return
		}

		r, g, b := t.canvas.RGB(int(math.Floor(x)), int(math.Floor(y)))
		if !IsPathPixel(r, g, b, t.threshold) {
			t.reset(ReasonHitWall, MsgHitWall)
			return
		}

		if tr.Rect(frame.Goal).Contains(x, y) {
			t.transition(Completed, ReasonCompleted)
			t.field.Set(Verified)
			t.view.SetStatus(MsgCompleted)
		}
	}
}

// PointerLeave handles the pointer leaving the bounding surface.
func (t *Tracker) PointerLeave() {
	if t.state == InProgress {
		t.reset(ReasonLeftMaze, MsgLeftMaze)
	}
}

func (t *Tracker) reset(reason Reason, msg string) {
	if t.state == Completed {
		return
	}
	t.transition(NotStarted, reason)
	t.field.Set(Unverified)
	t.view.SetStatus(msg)
}

func (t *Tracker) transition(to State, reason Reason) {
	tr := Transition{From: t.state, To: to, Reason: reason, At: t.clock()}
	t.state = to

	t.logger.Debug("run transition",
		zap.Stringer("from", tr.From),
		zap.Stringer("to", tr.To),
		zap.String("reason", string(reason)))

	if t.onTransition != nil {
		t.onTransition(tr)
	}
}
