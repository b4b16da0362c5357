package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/seir-sim/seir-sim/sim"
)

// Handler upgrades HTTP requests to WebSocket sessions. Sessions live until
// the client leaves or the base context is cancelled.
type Handler struct {
	base     context.Context
	upgrader websocket.Upgrader
	solver   *sim.Solver
	cfg      SessionConfig
	log      logrus.FieldLogger
	sessions *sync.WaitGroup
}

// NewHandler creates a Handler. allowedOrigins empty keeps gorilla's
// same-origin check; "*" accepts any origin.
func NewHandler(base context.Context, solver *sim.Solver, cfg SessionConfig, allowedOrigins []string, log logrus.FieldLogger, sessions *sync.WaitGroup) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if sessions == nil {
		sessions = &sync.WaitGroup{}
	}
	h := &Handler{
		base:     base,
		solver:   solver,
		cfg:      cfg,
		log:      log,
		sessions: sessions,
	}
	h.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin:      originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

// ServeHTTP implements http.Handler. It blocks for the lifetime of the session.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.base.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		h.log.WithError(err).WithField("remote", r.RemoteAddr).Warn("websocket upgrade failed")
		return
	}

	h.sessions.Add(1)
	defer h.sessions.Done()

	transport := NewWebSocketTransport(conn, h.cfg.WriteWait, h.cfg.MaxMessageBytes)
	session := NewSession(transport, h.solver, h.cfg, h.log.WithField("remote", r.RemoteAddr))
	if err := session.Run(h.base); err != nil {
		var protoErr *ProtocolError
		switch {
		case errors.As(err, &protoErr), errors.Is(err, ErrHeartbeatTimeout):
			h.log.WithField("session", session.ID()).Warnf("session ended: %v", err)
		default:
			h.log.WithField("session", session.ID()).Debugf("session ended: %v", err)
		}
	}
}
