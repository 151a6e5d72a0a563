package tracelens

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kidpech/tracelens/internal/infrastructure/monitoring"
)

// Stream event names.
const (
	EventConnected = "connected"
	EventLog       = "log"
	EventHeartbeat = "heartbeat"
)

// ErrStreamTimeout is the terminal error of a stream that hit its maximum age.
var ErrStreamTimeout = errors.New("tracelens: stream timed out")

// State is a stream lifecycle state.
type State int32

const (
	StateConnecting State = iota
	StateStreaming
	StateCompleted
	StateTimedOut
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s >= StateCompleted
}

// Event is one message sent to a subscriber.
type Event struct {
	Name string
	Data string
}

// Sender delivers events to a subscriber. Send is only ever called from the
// stream's own goroutine.
type Sender interface {
	Send(Event) error
}

// DispatcherConfig tunes stream behaviour.
type DispatcherConfig struct {
	PollInterval time.Duration
	Timeout      time.Duration
	// Render formats log events; LogEntry.Format when nil.
	Render func(LogEntry) string
}

// Dispatcher runs live subscriptions over registry drains.
type Dispatcher struct {
	registry *Registry
	cfg      DispatcherConfig
	logger   *zap.Logger
	active   atomic.Int64
}

// NewDispatcher builds a dispatcher.
func NewDispatcher(registry *Registry, cfg DispatcherConfig, logger *zap.Logger) (*Dispatcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is required", ErrInvalidConfig)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: poll interval must be positive", ErrInvalidConfig)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("%w: stream timeout must be positive", ErrInvalidConfig)
	}
	if cfg.Render == nil {
		cfg.Render = LogEntry.Format
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{registry: registry, cfg: cfg, logger: logger}, nil
}

// Active returns the number of streams that have not terminated.
func (d *Dispatcher) Active() int {
	return int(d.active.Load())
}

// Stream is one live subscription.
type Stream struct {
	sessionID string
	d         *Dispatcher
	sender    Sender

	state atomic.Int32
	once  sync.Once
	err   error
	stop  chan struct{}
	done  chan struct{}
}

// Subscribe opens a stream for sessionID. An empty id yields a stream that is
// already completed with ErrMissingSessionID and sends nothing. Otherwise the
// connected event is sent before Subscribe returns and ticks run on a new
// goroutine until the stream terminates.
func (d *Dispatcher) Subscribe(ctx context.Context, sessionID string, sender Sender) *Stream {
	s := &Stream{
		sessionID: sessionID,
		d:         d,
		sender:    sender,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if sessionID == "" {
		d.logger.Warn("cannot stream logs: no session id found")
		s.terminate(StateCompleted, ErrMissingSessionID)
		close(s.done)
		return s
	}

	d.active.Add(1)
	monitoring.StreamOpened()
	err := sender.Send(Event{Name: EventConnected, Data: "TraceLens log streaming started for session: " + sessionID})
	if err != nil {
		s.terminate(StateErrored, fmt.Errorf("send connected: %w", err))
		s.finish()
		return s
	}
	s.state.Store(int32(StateStreaming))
	d.logger.Info("log stream started", zap.String("session_id", sessionID))
	go s.run(ctx)
	return s
}

func (s *Stream) run(ctx context.Context) {
	defer s.finish()
	ticker := time.NewTicker(s.d.cfg.PollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(s.d.cfg.Timeout)
	defer timeout.Stop()

	if !s.tick() {
		return
	}
	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			s.terminate(StateCompleted, nil)
			return
		case <-timeout.C:
			s.terminate(StateTimedOut, ErrStreamTimeout)
			return
		case <-ticker.C:
			if s.State().Terminal() {
				return
			}
			if !s.tick() {
				return
			}
		}
	}
}

// tick drains the session once and forwards the result. It reports whether
// the stream should keep running.
func (s *Stream) tick() bool {
	entries := s.d.registry.Drain(s.sessionID)
	if len(entries) == 0 {
		if err := s.sender.Send(Event{Name: EventHeartbeat}); err != nil {
			s.terminate(StateErrored, fmt.Errorf("send heartbeat: %w", err))
			return false
		}
		return true
	}
	for i, e := range entries {
		if err := s.sender.Send(Event{Name: EventLog, Data: s.d.cfg.Render(e)}); err != nil {
			// drained entries are not re-buffered
			s.d.logger.Debug("dropping undelivered log entries",
				zap.String("session_id", s.sessionID),
				zap.Int("lost", len(entries)-i))
			s.terminate(StateErrored, fmt.Errorf("send log: %w", err))
			return false
		}
	}
	return true
}

// terminate moves the stream to a terminal state. Only the first call has
// any effect.
func (s *Stream) terminate(state State, err error) {
	s.once.Do(func() {
		s.err = err
		s.state.Store(int32(state))
		close(s.stop)
		monitoring.StreamTerminated(state.String())
		switch state {
		case StateErrored:
			s.d.logger.Warn("log stream error", zap.String("session_id", s.sessionID), zap.Error(err))
		case StateTimedOut:
			s.d.logger.Info("log stream timed out", zap.String("session_id", s.sessionID))
		default:
			if s.sessionID != "" {
				s.d.logger.Info("log stream completed", zap.String("session_id", s.sessionID))
			}
		}
	})
}

func (s *Stream) finish() {
	s.d.active.Add(-1)
	monitoring.StreamClosed()
	close(s.done)
}

// SessionID returns the subscribed session.
func (s *Stream) SessionID() string { return s.sessionID }

// State returns the current state.
func (s *Stream) State() State {
	return State(s.state.Load())
}

// Err returns the terminal error, if any. It is only meaningful after Done
// is closed.
func (s *Stream) Err() error {
	select {
	case <-s.stop:
		return s.err
	default:
		return nil
	}
}

// Done is closed once the stream goroutine has exited.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close completes the stream. A tick already running finishes first; Close
// does not wait for it.
func (s *Stream) Close() {
	s.terminate(StateCompleted, nil)
}

// Wait blocks until the stream goroutine exits or ctx is done.
func (s *Stream) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
