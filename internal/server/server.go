// Package server exposes the timeline over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"

	"github.com/penwyp/go-ha-timeline/internal/application/timeline"
	"github.com/penwyp/go-ha-timeline/internal/core/model"
	"github.com/penwyp/go-ha-timeline/internal/util"
)

const shutdownTimeout = 5 * time.Second

// Timeline is the part of the orchestrator the API reads.
type Timeline interface {
	CurrentItems() []model.TimelineItem
	Status() timeline.Status
	RequestRefresh()
}

// Response is the body of GET /api/timeline.
type Response struct {
	Items       []model.TimelineItem `json:"items"`
	Language    string               `json:"language"`
	Phase       string               `json:"phase"`
	Live        bool                 `json:"live"`
	LastUpdate  *time.Time           `json:"last_update,omitempty"`
	LastError   string               `json:"last_error,omitempty"`
	GeneratedAt time.Time            `json:"generated_at"`
}

// Server serves the timeline API, health probes and metrics.
type Server struct {
	timeline Timeline
	metrics  http.Handler
	clock    clockwork.Clock
	router   chi.Router
}

// New builds the router. metrics may be nil to disable /metrics.
func New(tl Timeline, metrics http.Handler, clock clockwork.Clock) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Server{timeline: tl, metrics: metrics, clock: clock}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", s.ready)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Get("/api/timeline", s.getTimeline)
	r.Post("/api/timeline/refresh", s.postRefresh)
	return r
}

func (s *Server) getTimeline(w http.ResponseWriter, r *http.Request) {
	st := s.timeline.Status()
	resp := Response{
		Items:       s.timeline.CurrentItems(),
		Language:    st.Language,
		Phase:       string(st.Phase),
		Live:        st.LiveSubscribed,
		GeneratedAt: s.clock.Now().UTC(),
	}
	if !st.LastUpdate.IsZero() {
		at := st.LastUpdate.UTC()
		resp.LastUpdate = &at
	}
	if st.LastError != nil {
		resp.LastError = st.LastError.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) postRefresh(w http.ResponseWriter, r *http.Request) {
	s.timeline.RequestRefresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if s.timeline.Status().Phase != timeline.PhaseReady {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Serve accepts connections on listener until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		util.LogInfof("HTTP server listening on %s", listener.Addr())
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		util.LogErrorf("encode response: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		util.LogDebugf("%s %s -> %d (%s) [%s]", r.Method, r.URL.Path, ww.Status(), time.Since(start),
			middleware.GetReqID(r.Context()))
	})
}
