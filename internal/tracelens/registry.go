package tracelens

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kidpech/tracelens/internal/infrastructure/monitoring"
)

// Sentinel errors.
var (
	ErrInvalidConfig    = errors.New("tracelens: invalid configuration")
	ErrMissingSessionID = errors.New("tracelens: no session id")
)

// Registry maps session ids to bounded log buffers. Operations on different
// sessions never contend; operations on one session are serialized by that
// session's buffer lock.
type Registry struct {
	buffers  sync.Map // session id -> *sessionBuffer
	active   atomic.Int64
	capacity int
	now      func() time.Time
}

// NewRegistry builds a registry holding at most capacity entries per session.
func NewRegistry(capacity int) (*Registry, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: buffer capacity must be positive, got %d", ErrInvalidConfig, capacity)
	}
	return &Registry{capacity: capacity, now: time.Now}, nil
}

// Capacity returns the per-session entry limit.
func (r *Registry) Capacity() int {
	return r.capacity
}

// AddLog appends entry to the session's buffer, creating it on first use.
func (r *Registry) AddLog(sessionID string, entry LogEntry) {
	if sessionID == "" {
		return
	}
	for {
		buf := r.bufferFor(sessionID)
		stored, evicted := buf.add(entry, r.now())
		if !stored {
			// lost a race with Remove or SweepExpired; the map no longer
			// holds this buffer so the next lookup creates a fresh one
			continue
		}
		monitoring.ObserveCapture(evicted)
		return
	}
}

func (r *Registry) bufferFor(sessionID string) *sessionBuffer {
	if v, ok := r.buffers.Load(sessionID); ok {
		return v.(*sessionBuffer)
	}
	fresh := newSessionBuffer(r.capacity, r.now())
	v, loaded := r.buffers.LoadOrStore(sessionID, fresh)
	if !loaded {
		r.active.Add(1)
	}
	return v.(*sessionBuffer)
}

func (r *Registry) lookup(sessionID string) (*sessionBuffer, bool) {
	v, ok := r.buffers.Load(sessionID)
	if !ok {
		return nil, false
	}
	return v.(*sessionBuffer), true
}

// Drain returns the session's entries oldest first and clears the buffer.
// Unknown sessions yield an empty slice; no buffer is created.
func (r *Registry) Drain(sessionID string) []LogEntry {
	buf, ok := r.lookup(sessionID)
	if !ok {
		return []LogEntry{}
	}
	return nonNil(buf.snapshot(r.now(), true))
}

// Peek returns the session's entries without clearing them. It refreshes
// the buffer's last access time.
func (r *Registry) Peek(sessionID string) []LogEntry {
	buf, ok := r.lookup(sessionID)
	if !ok {
		return []LogEntry{}
	}
	return nonNil(buf.snapshot(r.now(), false))
}

// Remove drops the session's buffer. It reports whether one existed.
func (r *Registry) Remove(sessionID string) bool {
	v, loaded := r.buffers.LoadAndDelete(sessionID)
	if !loaded {
		return false
	}
	v.(*sessionBuffer).retire()
	r.active.Add(-1)
	monitoring.ObserveBufferRemoved("explicit")
	return true
}

// SweepExpired removes every buffer idle for longer than ttl at now and
// returns the removed ids. Buffers locked by an in-flight access are skipped
// for this pass.
func (r *Registry) SweepExpired(ttl time.Duration, now time.Time) []string {
	var removed []string
	r.buffers.Range(func(key, value any) bool {
		buf := value.(*sessionBuffer)
		if !buf.mu.TryLock() {
			return true
		}
		if now.Sub(buf.lastAccess) > ttl && r.buffers.CompareAndDelete(key, buf) {
			buf.retired = true
			buf.entries = nil
			r.active.Add(-1)
			removed = append(removed, key.(string))
		}
		buf.mu.Unlock()
		return true
	})
	for range removed {
		monitoring.ObserveBufferRemoved("expired")
	}
	return removed
}

// ActiveCount returns the number of live session buffers.
func (r *Registry) ActiveCount() int {
	return int(r.active.Load())
}

// Sessions lists the ids of live buffers, sorted.
func (r *Registry) Sessions() []string {
	ids := make([]string, 0, r.ActiveCount())
	r.buffers.Range(func(key, _ any) bool {
		ids = append(ids, key.(string))
		return true
	})
	sort.Strings(ids)
	return ids
}

func nonNil(entries []LogEntry) []LogEntry {
	if entries == nil {
		return []LogEntry{}
	}
	return entries
}
