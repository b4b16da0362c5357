package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seir-sim/seir-sim/sim"
	"github.com/seir-sim/seir-sim/sim/ode"
)

const (
	defaultAddress     = "127.0.0.1:8080"
	defaultPath        = "/ws/"
	defaultGracePeriod = 3 * time.Second
)

// Config groups everything needed to serve the simulation endpoint.
type Config struct {
	Address        string        // listen address
	Path           string        // WebSocket endpoint path
	GracePeriod    time.Duration // how long Shutdown waits for sessions
	AllowedOrigins []string      // empty = same origin only, "*" = any
	Session        SessionConfig
	Solver         ode.Config
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		Address:     defaultAddress,
		Path:        defaultPath,
		GracePeriod: defaultGracePeriod,
		Session:     DefaultSessionConfig(),
		Solver:      sim.DefaultSolverConfig(),
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Path == "" || c.Path[0] != '/' {
		return fmt.Errorf("path must start with '/', got %q", c.Path)
	}
	if c.GracePeriod < 0 {
		return fmt.Errorf("grace_period must be non-negative, got %s", c.GracePeriod)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := c.Solver.Validate(); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	return nil
}

// Server hosts the WebSocket endpoint. Shutdown stops accepting
// connections, closes live sessions and waits for them.
type Server struct {
	config     Config
	log        logrus.FieldLogger
	httpServer *http.Server
	sessions   sync.WaitGroup
	cancel     context.CancelFunc
	handler    http.Handler
}

// New builds a Server. Zero Address, Path and GracePeriod take defaults.
func New(config Config, log logrus.FieldLogger) (*Server, error) {
	if config.Address == "" {
		config.Address = defaultAddress
	}
	if config.Path == "" {
		config.Path = defaultPath
	}
	if config.GracePeriod == 0 {
		config.GracePeriod = defaultGracePeriod
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	base, cancel := context.WithCancel(context.Background())
	s := &Server{config: config, log: log, cancel: cancel}

	solver := sim.NewSolver(config.Solver, log)
	mux := http.NewServeMux()
	mux.Handle(config.Path, NewHandler(base, solver, config.Session, config.AllowedOrigins, log, &s.sessions))
	s.handler = logRequests(mux, log)
	s.httpServer = &http.Server{
		Addr:              config.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP handler serving the endpoint.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe listens on the configured address and serves until ctx is
// done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Infof("Server started on %s (endpoint %s)", ln.Addr(), s.config.Path)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.cancel()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the listener, closes every live session and waits up to
// the grace period for them to finish.
func (s *Server) Shutdown() error {
	s.log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), s.config.GracePeriod)
	defer cancel()

	// Hijacked WebSocket connections are invisible to http.Server.Shutdown,
	// so sessions are cancelled separately.
	s.cancel()
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Grace period exceeded with sessions still open.")
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// logRequests logs each HTTP request before handing it on.
func logRequests(next http.Handler, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"remote": r.RemoteAddr,
		}).Debug("http request")
		next.ServeHTTP(w, r)
	})
}
