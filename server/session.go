package main

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mazegate/mazeimg"
	"mazegate/tracker"
)

// paintedCanvas shares one pre-painted raster between all sessions. The
// bitmap is immutable, so the per-session clear and draw are no-ops and
// concurrent reads are safe.
type paintedCanvas struct {
	*tracker.Raster
}

func (paintedCanvas) Clear()           {}
func (paintedCanvas) Draw(image.Image) {}

// Session hosts one tracker for one remote widget. It plays the parts the
// page played in a browser: layout source, view and hidden field.
type Session struct {
	ID string

	mu       sync.Mutex
	tracker  *tracker.Tracker
	layout   mazeimg.Layout
	display  tracker.Rect
	status   string
	avatarX  float64
	avatarY  float64
	field    string
	lastSeen time.Time
}

// SessionSnapshot is the JSON view of a session.
type SessionSnapshot struct {
	ID            string  `json:"id"`
	State         string  `json:"state"`
	Status        string  `json:"status"`
	AvatarX       float64 `json:"avatar_x"`
	AvatarY       float64 `json:"avatar_y"`
	CaptchaOK     string  `json:"captcha_ok"`
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
}

// Frame, MoveAvatar, SetStatus and Set make a Session the tracker's
// Layout, View and Field.
func (s *Session) Frame() tracker.Frame {
	return s.layout.Frame(s.display)
}

func (s *Session) MoveAvatar(x, y float64) {
	s.avatarX, s.avatarY = x, y
}

func (s *Session) SetStatus(msg string) {
	s.status = msg
}

func (s *Session) Set(value string) {
	s.field = value
}

// resize places the surface at the origin of the client's coordinate
// space; the client reports pointers relative to it.
func (s *Session) resize(width, height float64) {
	s.display = tracker.Rect{W: width, H: height}
}

// snapshot must be called with mu held.
func (s *Session) snapshot() SessionSnapshot {
	return SessionSnapshot{
		ID:            s.ID,
		State:         s.tracker.State().String(),
		Status:        s.status,
		AvatarX:       s.avatarX,
		AvatarY:       s.avatarY,
		CaptchaOK:     s.field,
		DisplayWidth:  s.display.W,
		DisplayHeight: s.display.H,
	}
}

// Snapshot is the locked form of snapshot.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// sessionRegistry owns live sessions and expires idle ones.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	clock    func() time.Time
	logger   *zap.Logger
}

func newSessionRegistry(ttl time.Duration, logger *zap.Logger) *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		clock:    time.Now,
		logger:   logger,
	}
}

// Create builds a session around a tracker produced by build. build
// receives the session so it can wire it as the tracker's collaborators.
func (r *sessionRegistry) Create(layout mazeimg.Layout, width, height float64, build func(*Session) (*tracker.Tracker, error)) (*Session, error) {
	s := &Session{
		ID:       uuid.NewString(),
		layout:   layout,
		lastSeen: r.clock(),
	}
	s.resize(width, height)

	t, err := build(s)
	if err != nil {
		return nil, err
	}
	s.tracker = t

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s, nil
}

// Get returns a live session and marks it as used.
func (r *sessionRegistry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	s.lastSeen = r.clock()
	s.mu.Unlock()
	return s, true
}

func (r *sessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than the TTL.
func (r *sessionRegistry) Sweep() int {
	cutoff := r.clock().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		s.mu.Lock()
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *sessionRegistry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("expired idle sessions", zap.Int("count", n), zap.Int("live", r.Len()))
			}
		}
	}
}
