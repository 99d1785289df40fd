package remote

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pursuit-rl-go/internal/engine"
)

const (
	maxMoveBody     = 4 * 1024
	requestIDHeader = "X-Request-ID"
)

// MoveRequest asks the maze service where role ends up after stepping (dx, dy) from (x, y).
type MoveRequest struct {
	Role engine.Role `json:"role"`
	X    int         `json:"x"`
	Y    int         `json:"y"`
	DX   int         `json:"dx"`
	DY   int         `json:"dy"`
}

// PositionResponse is the authoritative position after a move. Fields are
// pointers so a client can tell a missing coordinate from zero.
type PositionResponse struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

// Server exposes a maze and its episode starts over HTTP.
type Server struct {
	maze     *engine.GridMaze
	mover    *engine.LocalMover
	resetter engine.Resetter
	logger   zerolog.Logger
	extra    map[string]http.Handler
}

// NewServer constructs a Server answering for maze.
func NewServer(maze *engine.GridMaze, resetter engine.Resetter, logger zerolog.Logger) *Server {
	return &Server{
		maze:     maze,
		mover:    engine.NewLocalMover(maze, logger),
		resetter: resetter,
		logger:   logger,
		extra:    make(map[string]http.Handler),
	}
}

// Handle mounts an additional GET handler under /api/v1.
func (s *Server) Handle(path string, h http.Handler) {
	s.extra[path] = h
}

// Routes builds the HTTP router for the maze service.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/move", s.handleMove)
		r.Get("/reset", s.handleReset)
		for path, h := range s.extra {
			r.Method(http.MethodGet, path, h)
		}
	})
	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request served")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMoveBody)
	defer r.Body.Close()
	var payload MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid move payload")
		return
	}
	d, ok := engine.DirectionFromDelta(payload.DX, payload.DY)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "delta must be a unit move")
		return
	}
	from := engine.Position{X: payload.X, Y: payload.Y}
	if !s.maze.IsOpen(from) {
		s.writeError(w, http.StatusBadRequest, "origin is not an open cell")
		return
	}
	next, err := s.mover.Move(r.Context(), payload.Role, from, d)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, PositionResponse{X: &next.X, Y: &next.Y})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	starts, err := s.resetter.Reset(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, starts)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrPreconditionViolation), errors.Is(err, engine.ErrInvalidMove):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("maze service failure")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
