// Package statusapi exposes the daemon's local ops surface: board and
// insights snapshots, toast state, manual refresh, the order mutators and
// Prometheus metrics. Board shells on the LAN read it, so CORS is
// configurable per screen profile.
package statusapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"

	"github.com/dinehall/boardlink/internal/api"
	"github.com/dinehall/boardlink/internal/board"
	"github.com/dinehall/boardlink/internal/domain"
	"github.com/dinehall/boardlink/internal/insights"
	"github.com/dinehall/boardlink/internal/metrics"
	"github.com/dinehall/boardlink/internal/notify"
	"github.com/dinehall/boardlink/internal/system"
	"github.com/dinehall/boardlink/pkg/logger"
)

var _ system.Service = (*Server)(nil)

// Options configures the server.
type Options struct {
	Addr        string
	Version     string
	CORSOrigins []string

	Board     *board.Service
	Refresher *board.Refresher
	Insights  *insights.Service
	Bus       *notify.Bus
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

// Server is the local status HTTP server.
type Server struct {
	opts Options
	log  *logger.Logger

	mu       sync.Mutex
	listener net.Listener
	httpSrv  *http.Server
}

// New creates the status server.
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":8091"
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewDefault("statusapi")
	}
	return &Server{opts: opts, log: log}
}

func (s *Server) Name() string { return "statusapi" }

// Handler builds the route tree. Split out so tests can drive it with
// httptest without binding a port.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
	}).Handler)

	instrument := func(path string, h http.HandlerFunc) http.Handler {
		if s.opts.Metrics == nil {
			return h
		}
		return s.opts.Metrics.InstrumentHandler(path, h)
	}

	r.Method(http.MethodGet, "/healthz", instrument("/healthz", s.healthz))
	r.Method(http.MethodGet, "/version", instrument("/version", s.version))
	r.Method(http.MethodGet, "/board", instrument("/board", s.boardSnapshot))
	r.Method(http.MethodGet, "/insights", instrument("/insights", s.insightsSnapshot))
	r.Method(http.MethodGet, "/toasts", instrument("/toasts", s.toasts))
	r.Method(http.MethodPost, "/board/refresh", instrument("/board/refresh", s.refresh))
	r.Method(http.MethodPut, "/board/autorefresh", instrument("/board/autorefresh", s.autoRefresh))
	r.Method(http.MethodPost, "/orders/{id}/status", instrument("/orders/{id}/status", s.orderStatus))
	r.Method(http.MethodPost, "/orders/{id}/items/{itemID}/status", instrument("/orders/{id}/items/{itemID}/status", s.itemStatus))
	r.Method(http.MethodPost, "/orders/{id}/void", instrument("/orders/{id}/void", s.void))
	r.Method(http.MethodPost, "/orders/{id}/refund", instrument("/orders/{id}/refund", s.refund))
	r.Method(http.MethodPost, "/orders/{id}/reprint", instrument("/orders/{id}/reprint", s.reprint))
	r.Method(http.MethodPut, "/orders/{id}/priority", instrument("/orders/{id}/priority", s.priority))

	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics.Handler())
	}
	return r
}

func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpSrv = httpSrv
	s.mu.Unlock()

	go func() {
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("status server stopped unexpectedly")
		}
	}()

	s.log.WithField("addr", listener.Addr().String()).Info("status api started")
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpSrv := s.httpSrv
	s.httpSrv = nil
	s.listener = nil
	s.mu.Unlock()

	if httpSrv == nil {
		return nil
	}
	return httpSrv.Shutdown(ctx)
}

// Addr reports the bound address, for tests using ":0".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.opts.Version})
}

func (s *Server) boardSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Board.Current())
}

func (s *Server) insightsSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.opts.Insights == nil {
		writeError(w, http.StatusNotFound, errors.New("insights disabled"))
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Insights.Current())
}

func (s *Server) toasts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Bus.Active())
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if err := s.opts.Board.Refresh(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, s.opts.Board.Current())
}

func (s *Server) autoRefresh(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.opts.Refresher.SetAutoRefresh(payload.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": payload.Enabled})
}

func (s *Server) orderStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := s.opts.Board.UpdateStatus(r.Context(), chi.URLParam(r, "id"), domain.OrderStatus(payload.Status))
	s.respondMutation(w, err)
}

func (s *Server) itemStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := s.opts.Board.UpdateItemStatus(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemID"), domain.ItemStatus(payload.Status))
	s.respondMutation(w, err)
}

func (s *Server) void(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.respondMutation(w, s.opts.Board.Void(r.Context(), chi.URLParam(r, "id"), payload.Reason))
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount float64 `json:"amount"`
		Reason string  `json:"reason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.respondMutation(w, s.opts.Board.Refund(r.Context(), chi.URLParam(r, "id"), payload.Amount, payload.Reason))
}

func (s *Server) reprint(w http.ResponseWriter, r *http.Request) {
	s.respondMutation(w, s.opts.Board.Reprint(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) priority(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Priority int `json:"priority"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.respondMutation(w, s.opts.Board.SetPriority(r.Context(), chi.URLParam(r, "id"), payload.Priority))
}

// respondMutation maps mutator outcomes: unknown id is 404, a failed
// backend confirmation is 202 because the local change stands and the next
// poll reconciles.
func (s *Server) respondMutation(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"result": "applied"})
	case errors.Is(err, board.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case api.IsSessionExpired(err):
		writeError(w, http.StatusUnauthorized, err)
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"result": "applied locally", "detail": err.Error()})
	}
}
