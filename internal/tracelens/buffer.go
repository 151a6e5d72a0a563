package tracelens

import (
	"sync"
	"time"
)

// sessionBuffer is a fixed-capacity ring of entries for one session.
// All fields are guarded by mu.
type sessionBuffer struct {
	mu         sync.Mutex
	entries    []LogEntry
	head       int // next overwrite position once full
	capacity   int
	lastAccess time.Time
	retired    bool // set once the buffer has left the registry
}

func newSessionBuffer(capacity int, now time.Time) *sessionBuffer {
	return &sessionBuffer{capacity: capacity, lastAccess: now}
}

// add appends entry, evicting the oldest one when full. It reports whether
// the entry was stored and whether an eviction happened; a retired buffer
// stores nothing.
func (b *sessionBuffer) add(entry LogEntry, now time.Time) (stored, evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.retired {
		return false, false
	}
	b.lastAccess = now
	if len(b.entries) < b.capacity {
		b.entries = append(b.entries, entry)
		return true, false
	}
	b.entries[b.head] = entry
	b.head = (b.head + 1) % b.capacity
	return true, true
}

// snapshot copies the entries oldest first. If clear is set the buffer is
// emptied under the same lock.
func (b *sessionBuffer) snapshot(now time.Time, clear bool) []LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.retired {
		return nil
	}
	b.lastAccess = now
	out := b.orderedLocked()
	if clear {
		b.entries = b.entries[:0]
		b.head = 0
	}
	return out
}

func (b *sessionBuffer) orderedLocked() []LogEntry {
	if len(b.entries) == 0 {
		return []LogEntry{}
	}
	out := make([]LogEntry, 0, len(b.entries))
	out = append(out, b.entries[b.head:]...)
	out = append(out, b.entries[:b.head]...)
	return out
}

// retire marks the buffer dead so late writers move to a fresh one.
func (b *sessionBuffer) retire() {
	b.mu.Lock()
	b.retired = true
	b.entries = nil
	b.mu.Unlock()
}
