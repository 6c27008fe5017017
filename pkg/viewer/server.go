package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/getmockd/apidiag/pkg/apilog"
	"github.com/getmockd/apidiag/pkg/logging"
)

// DefaultAddr is the listen address used when none is configured.
const DefaultAddr = "127.0.0.1:4390"

const shutdownTimeout = 5 * time.Second

// DefaultPollInterval is how often /logs/stream checks for changes.
const DefaultPollInterval = 500 * time.Millisecond

// LogStore is the part of *apilog.Store the viewer reads and controls.
type LogStore interface {
	IsEnabled() bool
	SetEnabled(enabled bool)
	MaxLogs() int
	Count() int
	Logs() []apilog.Entry
	Get(id string) (apilog.Entry, bool)
	Clear()
	Revision() uint64
}

var _ LogStore = (*apilog.Store)(nil)

// Server is the viewer HTTP API.
type Server struct {
	store   LogStore
	log     *slog.Logger
	version string
	poll    time.Duration
	router  chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithVersion sets the version reported in HAR exports.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithPollInterval sets how often stream subscribers are checked for changes.
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.poll = d
		}
	}
}

// New creates a Server over store.
func New(store LogStore, opts ...Option) *Server {
	s := &Server{
		store:   store,
		log:     logging.Nop(),
		version: "dev",
		poll:    DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "viewer")
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/status", s.handleGetStatus)
	r.Put("/status", s.handlePutStatus)

	r.Route("/logs", func(r chi.Router) {
		r.Get("/", s.handleListLogs)
		r.Delete("/", s.handleClearLogs)
		r.Get("/stream", s.handleStream)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetLog)
			r.Get("/curl", s.handleCurl)
			r.Get("/timeline", s.handleTimeline)
			r.Get("/extract", s.handleExtract)
		})
	})

	r.Get("/export", s.handleExport)
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully. ready, if non-nil, receives the bound address once listening.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("viewer listening", "addr", ln.Addr().String())
	if ready != nil {
		ready(ln.Addr())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info("viewer stopped")
	return nil
}

// requestLogger logs every request at debug level.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				log.Debug("request completed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start).String(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
