package tracelens

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	failOn string
}

func (r *recorder) Send(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != "" && ev.Name == r.failOn {
		return errors.New("client went away")
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count(name string) int {
	n := 0
	for _, ev := range r.snapshot() {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func newTestDispatcher(t *testing.T, registry *Registry, poll, timeout time.Duration) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(registry, DispatcherConfig{
		PollInterval: poll,
		Timeout:      timeout,
		Render:       func(e LogEntry) string { return e.Message },
	}, zap.NewNop())
	require.NoError(t, err)
	return d
}

func waitDone(t *testing.T, s *Stream) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("stream for %q did not finish", s.SessionID())
	}
}

func TestNewDispatcherValidatesConfig(t *testing.T) {
	r, _ := NewRegistry(10)

	_, err := NewDispatcher(nil, DispatcherConfig{PollInterval: time.Second, Timeout: time.Second}, nil)
	require.True(t, errors.Is(err, ErrInvalidConfig))
	_, err = NewDispatcher(r, DispatcherConfig{Timeout: time.Second}, nil)
	require.True(t, errors.Is(err, ErrInvalidConfig))
	_, err = NewDispatcher(r, DispatcherConfig{PollInterval: time.Second}, nil)
	require.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestSubscribeWithoutSessionCompletesImmediately(t *testing.T) {
	r, _ := NewRegistry(10)
	d := newTestDispatcher(t, r, 10*time.Millisecond, time.Second)
	rec := &recorder{}

	s := d.Subscribe(context.Background(), "", rec)

	waitDone(t, s)
	require.Equal(t, StateCompleted, s.State())
	require.True(t, errors.Is(s.Err(), ErrMissingSessionID))
	require.Empty(t, rec.snapshot())
	require.Equal(t, 0, d.Active())
}

func TestIdleStreamSendsHeartbeats(t *testing.T) {
	r, _ := NewRegistry(10)
	d := newTestDispatcher(t, r, 100*time.Millisecond, time.Hour)
	rec := &recorder{}

	s := d.Subscribe(context.Background(), "idle", rec)
	require.Equal(t, StateStreaming, s.State())
	require.Equal(t, 1, d.Active())

	time.Sleep(250 * time.Millisecond)
	s.Close()
	waitDone(t, s)

	events := rec.snapshot()
	require.Equal(t, EventConnected, events[0].Name)
	require.Equal(t, "TraceLens log streaming started for session: idle", events[0].Data)
	require.GreaterOrEqual(t, rec.count(EventHeartbeat), 2)
	require.Zero(t, rec.count(EventLog))
	require.Equal(t, StateCompleted, s.State())
	require.NoError(t, s.Err())
	require.Equal(t, 0, d.Active())
}

func TestStreamDeliversLogsInOrder(t *testing.T) {
	r, _ := NewRegistry(10)
	d := newTestDispatcher(t, r, 20*time.Millisecond, time.Hour)
	rec := &recorder{}
	r.AddLog("s1", entry("A"))
	r.AddLog("s1", entry("B"))

	s := d.Subscribe(context.Background(), "s1", rec)
	defer s.Close()
	require.Eventually(t, func() bool { return rec.count(EventLog) == 2 }, time.Second, 5*time.Millisecond)

	r.AddLog("s1", entry("C"))
	require.Eventually(t, func() bool { return rec.count(EventLog) == 3 }, time.Second, 5*time.Millisecond)

	var got []string
	for _, ev := range rec.snapshot() {
		if ev.Name == EventLog {
			got = append(got, ev.Data)
		}
	}
	require.Equal(t, []string{"A", "B", "C"}, got)
	require.Empty(t, r.Peek("s1"))
}

func TestSendFailureErrorsWithoutRedelivery(t *testing.T) {
	r, _ := NewRegistry(10)
	d := newTestDispatcher(t, r, 10*time.Millisecond, time.Hour)
	rec := &recorder{failOn: EventLog}
	r.AddLog("s1", entry("A"))
	r.AddLog("s1", entry("B"))

	s := d.Subscribe(context.Background(), "s1", rec)
	waitDone(t, s)

	require.Equal(t, StateErrored, s.State())
	require.Error(t, s.Err())
	require.Empty(t, r.Peek("s1"))
	require.Equal(t, 0, d.Active())
}

func TestConnectedSendFailureErrors(t *testing.T) {
	r, _ := NewRegistry(10)
	d := newTestDispatcher(t, r, 10*time.Millisecond, time.Hour)

	s := d.Subscribe(context.Background(), "s1", &recorder{failOn: EventConnected})

	waitDone(t, s)
	require.Equal(t, StateErrored, s.State())
	require.Equal(t, 0, d.Active())
}

func TestStreamTimesOut(t *testing.T) {
	r, _ := NewRegistry(10)
	d := newTestDispatcher(t, r, 10*time.Millisecond, 60*time.Millisecond)
	rec := &recorder{}

	s := d.Subscribe(context.Background(), "s1", rec)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := s.Wait(ctx)

	require.True(t, errors.Is(err, ErrStreamTimeout))
	require.Equal(t, StateTimedOut, s.State())
}

func TestContextCancelCompletesStream(t *testing.T) {
	r, _ := NewRegistry(10)
	d := newTestDispatcher(t, r, 10*time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	s := d.Subscribe(ctx, "s1", &recorder{})
	cancel()
	waitDone(t, s)

	require.Equal(t, StateCompleted, s.State())
	require.NoError(t, s.Err())
}

func TestNoEventsAfterTermination(t *testing.T) {
	r, _ := NewRegistry(10)
	d := newTestDispatcher(t, r, 5*time.Millisecond, time.Hour)
	rec := &recorder{}

	s := d.Subscribe(context.Background(), "s1", rec)
	time.Sleep(20 * time.Millisecond)
	s.Close()
	s.Close()
	waitDone(t, s)

	sent := len(rec.snapshot())
	r.AddLog("s1", entry("late"))
	time.Sleep(30 * time.Millisecond)

	require.Len(t, rec.snapshot(), sent)
	require.Equal(t, []string{"late"}, messages(r.Peek("s1")))
	require.Equal(t, StateCompleted, s.State())
}

func TestFirstTerminationWins(t *testing.T) {
	r, _ := NewRegistry(10)
	d := newTestDispatcher(t, r, 10*time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := d.Subscribe(ctx, "s1", &recorder{})
	s.Close()
	waitDone(t, s)
	cancel()
	s.terminate(StateErrored, errors.New("late"))

	require.Equal(t, StateCompleted, s.State())
	require.NoError(t, s.Err())
}

func TestStateTerminal(t *testing.T) {
	require.False(t, StateConnecting.Terminal())
	require.False(t, StateStreaming.Terminal())
	require.True(t, StateCompleted.Terminal())
	require.True(t, StateTimedOut.Terminal())
	require.True(t, StateErrored.Terminal())
	require.Equal(t, "timed_out", StateTimedOut.String())
}
