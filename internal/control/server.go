// Package control implements the monitor's HTTP control surface: GET
// /status, POST /add, the live /status/stream WebSocket, GET /metrics, and
// GET /healthz. It binds to 127.0.0.1 only — the control surface is
// host-local tooling and carries no authentication.
package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nodewatch/nodewatch/internal/configstore"
	"github.com/nodewatch/nodewatch/internal/metrics"
	"github.com/nodewatch/nodewatch/internal/record"
)

// requestTimeout bounds HTTP request handling; /status and /add complete
// well under it.
const requestTimeout = 30 * time.Second

// Server is the monitor's HTTP control surface.
type Server struct {
	registry *record.Registry
	store    *configstore.Store
	metrics  *metrics.Metrics
	logger   *zap.Logger

	hub     *statusHub
	hubStop chan struct{}

	httpSrv  *http.Server
	listener net.Listener

	mu      sync.Mutex
	stopped bool
}

// New builds a Server. Call Start to bind and begin serving.
func New(registry *record.Registry, store *configstore.Store, m *metrics.Metrics, logger *zap.Logger) *Server {
	return &Server{
		registry: registry,
		store:    store,
		metrics:  m,
		logger:   logger.Named("control"),
		hub:      newStatusHub(),
		hubStop:  make(chan struct{}),
	}
}

// Start binds to 127.0.0.1:port and begins serving in the background. It
// returns once the listener is accepting connections.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("control: listen on %s: %w", addr, err)
	}
	s.listener = ln

	go s.hub.run(s.hubStop)

	s.httpSrv = &http.Server{
		Handler:      s.router(),
		ReadTimeout:  requestTimeout,
		WriteTimeout: requestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control server error", zap.Error(err))
		}
	}()

	s.logger.Info("control server listening", zap.String("addr", addr))
	return nil
}

// Port returns the port the server bound to. Valid only after Start succeeds.
func (s *Server) Port() int {
	if s.listener == nil {
		return 0
	}
	return s.listener.Addr().(*net.TCPAddr).Port
}

// BroadcastStatus pushes snapshot to every connected /status/stream client.
// Called by the scheduler once per settled tick.
func (s *Server) BroadcastStatus(snapshot []record.View) {
	s.hub.broadcast(snapshot)
}

// Stop shuts the HTTP listener down gracefully, tolerating being called on
// an already-stopped server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.hubStop)

	if s.httpSrv == nil {
		return nil
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("control: shutdown: %w", err)
	}
	// The hub loop only started if Start bound a listener; by this point it
	// has seen hubStop and closed every stream client.
	<-s.hub.done
	s.logger.Info("control server stopped")
	return nil
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(s.logger))

	r.Get("/status", s.handleStatus)
	r.Post("/add", s.handleAdd)
	r.Get("/status/stream", s.handleStatusStream)
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", s.metrics.Handler())

	return r
}
