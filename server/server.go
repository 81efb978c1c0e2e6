package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mazegate/config"
	"mazegate/mazeimg"
	"mazegate/store"
	"mazegate/tracker"
)

type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	ledger *store.Store

	maze    *mazeimg.Maze
	layout  mazeimg.Layout
	bitmap  image.Image
	pngData []byte
	canvas  *tracker.Raster

	sessions *sessionRegistry
}

// NewServer loads or generates the maze and renders its bitmap once.
// ledger may be nil, in which case transitions are only logged.
func NewServer(cfg *config.Config, logger *zap.Logger, ledger *store.Store) (*Server, error) {
	ttl, err := cfg.SessionTTLDuration()
	if err != nil {
		return nil, err
	}

	maze, err := loadOrGenerateMaze(cfg.Maze, logger)
	if err != nil {
		return nil, err
	}

	img, layout := mazeimg.Render(maze, cfg.Maze.RenderOptions)
	pngData, err := mazeimg.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	canvas := tracker.NewRaster(layout.Width, layout.Height)
	canvas.Draw(img)

	logger.Info("maze ready",
		zap.Int("width", maze.Width),
		zap.Int("height", maze.Height),
		zap.Int("bitmap_width", layout.Width),
		zap.Int("bitmap_height", layout.Height),
		zap.Any("start", maze.Start),
		zap.Any("goal", maze.Goal))

	return &Server{
		cfg:      cfg,
		logger:   logger,
		ledger:   ledger,
		maze:     maze,
		layout:   layout,
		bitmap:   img,
		pngData:  pngData,
		canvas:   canvas,
		sessions: newSessionRegistry(ttl, logger),
	}, nil
}

// loadOrGenerateMaze prefers the saved maze; a missing or broken file is
// replaced by a freshly generated one.
func loadOrGenerateMaze(cfg config.MazeConfig, logger *zap.Logger) (*mazeimg.Maze, error) {
	if cfg.File != "" {
		if _, err := os.Stat(cfg.File); err == nil {
			maze, err := mazeimg.Load(cfg.File)
			if err == nil {
				logger.Info("loaded existing maze", zap.String("file", cfg.File))
				return maze, nil
			}
			logger.Warn("failed to load maze, generating a new one", zap.String("file", cfg.File), zap.Error(err))
		}
	}

	maze, err := mazeimg.Generate(cfg.Options)
	if err != nil {
		return nil, fmt.Errorf("failed to generate maze: %w", err)
	}
	logger.Info("generated new maze", zap.Int64("seed", cfg.Seed))

	if cfg.File != "" {
		if err := maze.Save(cfg.File); err != nil {
			return nil, err
		}
	}
	return maze, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/maze.png", s.handleMazePNG)
	mux.HandleFunc("/layout", s.handleLayout)
	mux.HandleFunc("/render", s.handleRender)
	mux.HandleFunc("/sessions", s.handleCreateSession)
	mux.HandleFunc("/sessions/{id}", s.handleSession)
	mux.HandleFunc("/sessions/{id}/pointer", s.handlePointer)
	mux.HandleFunc("/sessions/{id}/history", s.handleHistory)
	mux.HandleFunc("/stats", s.handleStats)
	return mux
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server and the session sweeper on ln, shutting both
// down gracefully when ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("maze server listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down maze server")
		return srv.Shutdown(shutdownCtx)
	})

	interval := s.sessions.ttl / 2
	if interval <= 0 {
		interval = s.sessions.ttl
	}
	g.Go(func() error {
		s.sessions.Run(gctx, interval)
		return nil
	})

	return g.Wait()
}

// newTracker wires a tracker to a session and the shared canvas.
func (s *Server) newTracker(sess *Session) (*tracker.Tracker, error) {
	t, err := tracker.New(tracker.Deps{
		Canvas: paintedCanvas{s.canvas},
		Layout: sess,
		View:   sess,
		Field:  sess,
		Logger: s.logger.With(zap.String("session", sess.ID)),
		OnTransition: func(tr tracker.Transition) {
			s.recordTransition(sess.ID, tr)
		},
	}, s.cfg.Tracker)
	if err != nil {
		return nil, err
	}
	t.ImageLoaded(s.bitmap)
	return t, nil
}

func (s *Server) recordTransition(sessionID string, tr tracker.Transition) {
	s.logger.Info("run transition",
		zap.String("session", sessionID),
		zap.Stringer("from", tr.From),
		zap.Stringer("to", tr.To),
		zap.String("reason", string(tr.Reason)))

	if s.ledger == nil {
		return
	}
	err := s.ledger.Record(context.Background(), store.RunEvent{
		SessionID: sessionID,
		From:      tr.From.String(),
		To:        tr.To.String(),
		Reason:    string(tr.Reason),
		At:        tr.At,
	})
	if err != nil {
		s.logger.Warn("failed to persist run transition", zap.String("session", sessionID), zap.Error(err))
	}
}

// =============================================================================
// HANDLERS
// =============================================================================

type CreateSessionRequest struct {
	DisplayWidth  float64 `json:"display_width"`
	DisplayHeight float64 `json:"display_height"`
}

type PointerRequest struct {
	Type          string  `json:"type"` // move, leave
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	DisplayWidth  float64 `json:"display_width,omitempty"`
	DisplayHeight float64 `json:"display_height,omitempty"`
}

// writeJSON encodes before writing the header; encode failures are a 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("failed to write response", zap.Error(err))
	}
}

func (s *Server) writePNG(w http.ResponseWriter) {
	if _, err := w.Write(s.pngData); err != nil {
		s.logger.Debug("failed to write maze png", zap.Error(err))
	}
}

// finitePoint reports whether a pointer at (x, y) on a surface shown at
// display lands on a finite canvas point and avatar position.
func (s *Server) finitePoint(display tracker.Rect, x, y float64) bool {
	cx, cy := tracker.NewTransform(display, s.layout.Width, s.layout.Height).Point(x, y)
	for _, v := range []float64{
		cx, cy,
		cx / float64(s.layout.Width) * 100,
		cy / float64(s.layout.Height) * 100,
	} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}

func (s *Server) handleMazePNG(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writePNG(w)
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, s.layout)
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", "attachment; filename=\"maze.png\"")
	s.writePNG(w)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.DisplayWidth < 0 || req.DisplayHeight < 0 {
		http.Error(w, "Display size must not be negative", http.StatusBadRequest)
		return
	}
	if req.DisplayWidth == 0 || req.DisplayHeight == 0 {
		req.DisplayWidth = float64(s.layout.Width)
		req.DisplayHeight = float64(s.layout.Height)
	}

	sess, err := s.sessions.Create(s.layout, req.DisplayWidth, req.DisplayHeight, s.newTracker)
	if err != nil {
		if errors.Is(err, tracker.ErrMissingDependency) {
			s.logger.Warn("maze widget disabled", zap.Error(err))
		} else {
			s.logger.Error("failed to create session", zap.Error(err))
		}
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	s.logger.Debug("session created", zap.String("session", sess.ID))
	s.writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handlePointer(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PointerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Type != "move" && req.Type != "leave" {
		http.Error(w, "Pointer type must be move or leave", http.StatusBadRequest)
		return
	}

	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	sess.mu.Lock()
	display := sess.display
	if req.DisplayWidth > 0 && req.DisplayHeight > 0 {
		display = tracker.Rect{W: req.DisplayWidth, H: req.DisplayHeight}
	}
	if req.Type == "move" && !s.finitePoint(display, req.X, req.Y) {
		sess.mu.Unlock()
		http.Error(w, "Pointer out of range", http.StatusBadRequest)
		return
	}
	sess.display = display
	switch req.Type {
	case "move":
		sess.tracker.PointerMove(req.X, req.Y)
	case "leave":
		sess.tracker.PointerLeave()
	}
	snap := sess.snapshot()
	sess.mu.Unlock()

	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.ledger == nil {
		http.Error(w, "Run ledger disabled", http.StatusNotFound)
		return
	}

	events, err := s.ledger.History(r.Context(), r.PathValue("id"), 0)
	if err != nil {
		s.logger.Error("failed to read history", zap.Error(err))
		http.Error(w, "Failed to read history", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []store.RunEvent{}
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]interface{}{
		"live_sessions": s.sessions.Len(),
	}
	if s.ledger != nil {
		st, err := s.ledger.Stats(r.Context())
		if err != nil {
			s.logger.Error("failed to compute stats", zap.Error(err))
			http.Error(w, "Failed to compute stats", http.StatusInternalServerError)
			return
		}
		resp["runs"] = st
	}
	s.writeJSON(w, http.StatusOK, resp)
}
