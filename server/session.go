package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/seir-sim/seir-sim/sim"
)

// State is the lifecycle state of a Session: Open → Closing → Closed.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// KindBusy is sent when a request arrives while the solve queue is full.
const KindBusy sim.ErrorKind = "busy"

// kindInternal covers failures that are neither decode nor integration errors.
const kindInternal sim.ErrorKind = "internal_error"

// ErrorResponse is the envelope sent instead of a trajectory when a request fails.
type ErrorResponse struct {
	Error   sim.ErrorKind `json:"error"`
	Message string        `json:"message"`
}

// SessionConfig groups per-connection settings.
type SessionConfig struct {
	HeartbeatInterval time.Duration    // how often the client heartbeat is checked and a ping sent
	ClientTimeout     time.Duration    // silence after which the session is closed
	MaxPendingSolves  int              // queued requests beyond the one being solved
	WriteWait         time.Duration    // deadline for a single outbound frame
	MaxMessageBytes   int64            // inbound message size limit (0 = unlimited)
	Format            sim.ResultFormat // trajectory encoding
}

// DefaultSessionConfig returns a 5s heartbeat with a 10s client timeout.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		HeartbeatInterval: 5 * time.Second,
		ClientTimeout:     10 * time.Second,
		MaxPendingSolves:  8,
		WriteWait:         10 * time.Second,
		MaxMessageBytes:   64 << 10,
		Format:            sim.FormatMap,
	}
}

// Validate reports the first invalid field.
func (c SessionConfig) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %s", c.HeartbeatInterval)
	}
	if c.ClientTimeout <= 0 {
		return fmt.Errorf("client_timeout must be positive, got %s", c.ClientTimeout)
	}
	if c.MaxPendingSolves < 0 {
		return fmt.Errorf("max_pending_solves must be non-negative, got %d", c.MaxPendingSolves)
	}
	if c.WriteWait <= 0 {
		return fmt.Errorf("write_wait must be positive, got %s", c.WriteWait)
	}
	if c.MaxMessageBytes < 0 {
		return fmt.Errorf("max_message_bytes must be non-negative, got %d", c.MaxMessageBytes)
	}
	if !sim.IsValidResultFormat(string(c.Format)) {
		return fmt.Errorf("unknown result format %q", c.Format)
	}
	return nil
}

// Session owns one duplex connection. A single event loop (Run) owns the
// state, the heartbeat timestamp and all writes; frames arrive from a reader
// goroutine and solves run on a worker goroutine, so a long solve never
// delays heartbeat handling.
type Session struct {
	id        string
	cfg       SessionConfig
	transport Transport
	solver    *sim.Solver
	log       *logrus.Entry
	now       func() time.Time

	state         atomic.Int32
	lastHeartbeat time.Time // loop-owned
	err           error     // reason the session ended; loop-owned
}

// NewSession creates a session in the Open state. A nil logger selects the
// standard logrus logger.
func NewSession(t Transport, solver *sim.Solver, cfg SessionConfig, log logrus.FieldLogger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	id := uuid.NewString()
	s := &Session{
		id:        id,
		cfg:       cfg,
		transport: t,
		solver:    solver,
		log:       log.WithField("session", id),
		now:       time.Now,
	}
	s.state.Store(int32(StateOpen))
	return s
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state. Safe for concurrent use.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Run drives the session until it is Closed and returns why it ended: nil for
// a client close or ctx cancellation, ErrHeartbeatTimeout, a *ProtocolError,
// or the transport error that broke the connection.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	frames := make(chan Frame)
	recvErr := make(chan error, 1)
	done := make(chan struct{})
	jobs := make(chan []byte, s.cfg.MaxPendingSolves)
	results := make(chan []byte)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		recvErr <- s.transport.Receive(frames, done)
	}()
	go func() {
		defer wg.Done()
		s.solveWorker(ctx, jobs, results)
	}()

	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		cancel()
		close(done)
		close(jobs)
		s.finish(nil)
		wg.Wait()
	}()

	s.lastHeartbeat = s.now()
	s.log.Info("session open")

	for s.State() != StateClosed {
		select {
		case f := <-frames:
			s.handleFrame(f, jobs)
		case payload := <-results:
			s.send(Frame{Kind: FrameText, Data: payload})
		case <-ticker.C:
			s.checkHeartbeat()
		case err := <-recvErr:
			if websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure) {
				s.finish(nil)
			} else {
				s.finish(fmt.Errorf("receive: %w", err))
			}
		case <-ctx.Done():
			s.send(Frame{Kind: FrameClose, CloseCode: websocket.CloseGoingAway, CloseText: "server shutting down"})
			s.finish(nil)
		}
	}
	return s.err
}

func (s *Session) handleFrame(f Frame, jobs chan<- []byte) {
	switch f.Kind {
	case FramePing:
		s.touch()
		s.send(Frame{Kind: FramePong, Data: f.Data})
	case FramePong:
		s.touch()
	case FrameText:
		s.touch()
		select {
		case jobs <- f.Data:
		default:
			s.log.Warn("solve queue full, rejecting request")
			s.send(Frame{Kind: FrameText, Data: encodeError(KindBusy, "too many pending requests on this connection")})
		}
	case FrameClose:
		s.setState(StateClosing)
		s.send(Frame{Kind: FrameClose, CloseCode: f.CloseCode, CloseText: f.CloseText})
		s.finish(nil)
	default:
		s.log.WithField("kind", f.Kind).Warn("unsupported frame, closing")
		s.finish(&ProtocolError{Kind: f.Kind})
	}
}

func (s *Session) touch() {
	s.lastHeartbeat = s.now()
}

// checkHeartbeat closes a silent session; otherwise it pings the client.
func (s *Session) checkHeartbeat() {
	if s.now().Sub(s.lastHeartbeat) > s.cfg.ClientTimeout {
		s.log.Warn("client heartbeat failed, disconnecting")
		s.finish(ErrHeartbeatTimeout)
		return
	}
	s.send(Frame{Kind: FramePing})
}

// send writes f unless the session is already Closed. A failed write closes it.
func (s *Session) send(f Frame) {
	if s.State() == StateClosed {
		return
	}
	if err := s.transport.Send(f); err != nil {
		s.log.WithError(err).WithField("kind", f.Kind).Debug("write failed")
		s.finish(fmt.Errorf("send %s: %w", f.Kind, err))
	}
}

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev != next {
		s.log.WithFields(logrus.Fields{"from": prev, "to": next}).Debug("session state")
	}
}

// finish moves the session to Closed once and releases the transport. The
// first non-nil reason wins.
func (s *Session) finish(reason error) {
	if s.State() == StateClosed {
		return
	}
	s.err = reason
	s.setState(StateClosed)
	if err := s.transport.Close(); err != nil {
		s.log.WithError(err).Debug("close transport")
	}
	entry := s.log
	if reason != nil {
		entry = entry.WithError(reason)
	}
	entry.Info("session closed")
}

// solveWorker handles queued payloads in arrival order. Responses go back to
// the loop through results; a cancelled ctx aborts the current solve.
func (s *Session) solveWorker(ctx context.Context, jobs <-chan []byte, results chan<- []byte) {
	for payload := range jobs {
		resp := s.process(ctx, payload)
		select {
		case results <- resp:
		case <-ctx.Done():
			return
		}
	}
}

// process turns one request payload into a response payload: the encoded
// trajectory on success, an ErrorResponse otherwise.
func (s *Session) process(ctx context.Context, payload []byte) []byte {
	start := time.Now()
	req, err := sim.DecodeRequest(payload)
	if err != nil {
		s.log.WithError(err).Info("rejected request")
		return encodeFailure(err)
	}
	tr, err := s.solver.Solve(ctx, req)
	if err != nil {
		s.log.WithError(err).Warn("solve failed")
		return encodeFailure(err)
	}
	data, err := sim.MarshalTrajectory(tr, s.cfg.Format)
	if err != nil {
		s.log.WithError(err).Error("encode trajectory")
		return encodeFailure(err)
	}
	s.log.WithFields(logrus.Fields{
		"duration": req.Duration,
		"samples":  len(tr),
		"bytes":    len(data),
		"elapsed":  time.Since(start),
	}).Info("solved request")
	return data
}

type kinded interface {
	Kind() sim.ErrorKind
}

func encodeFailure(err error) []byte {
	kind := kindInternal
	var k kinded
	if errors.As(err, &k) {
		kind = k.Kind()
	}
	return encodeError(kind, err.Error())
}

func encodeError(kind sim.ErrorKind, message string) []byte {
	// ErrorResponse holds only strings, so Marshal cannot fail
	data, _ := json.Marshal(ErrorResponse{Error: kind, Message: message})
	return data
}
