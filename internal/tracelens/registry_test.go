package tracelens

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func entry(msg string) LogEntry {
	return LogEntry{Timestamp: time.Unix(0, 0), Level: "INFO", Logger: "test", Message: msg, Worker: "main"}
}

func messages(entries []LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(t *testing.T, capacity int) (*Registry, *fakeClock) {
	t.Helper()
	r, err := NewRegistry(capacity)
	require.NoError(t, err)
	clock := newFakeClock()
	r.now = clock.Now
	return r, clock
}

func TestNewRegistryRejectsNonPositiveCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := NewRegistry(capacity)
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrInvalidConfig))
	}
}

func TestAddLogEvictsOldestFirst(t *testing.T) {
	r, _ := newTestRegistry(t, 3)
	require.Equal(t, 3, r.Capacity())

	for _, m := range []string{"A", "B", "C", "D"} {
		r.AddLog("s1", entry(m))
	}

	require.Equal(t, []string{"B", "C", "D"}, messages(r.Peek("s1")))
}

func TestAddLogKeepsMostRecentInOrder(t *testing.T) {
	r, _ := newTestRegistry(t, 7)

	for i := 0; i < 50; i++ {
		r.AddLog("s1", entry(strconv.Itoa(i)))
	}

	got := messages(r.Peek("s1"))
	require.Len(t, got, 7)
	for i, m := range got {
		require.Equal(t, strconv.Itoa(43+i), m)
	}
}

func TestDrainClearsBuffer(t *testing.T) {
	r, _ := newTestRegistry(t, 5)
	r.AddLog("s1", entry("one"))
	r.AddLog("s1", entry("two"))

	require.Equal(t, []string{"one", "two"}, messages(r.Drain("s1")))
	require.Empty(t, r.Peek("s1"))
	require.Empty(t, r.Drain("s1"))

	r.AddLog("s1", entry("three"))
	require.Equal(t, []string{"three"}, messages(r.Drain("s1")))
}

func TestDrainAfterWrapKeepsOrder(t *testing.T) {
	r, _ := newTestRegistry(t, 3)
	for _, m := range []string{"A", "B", "C", "D", "E"} {
		r.AddLog("s1", entry(m))
	}
	require.Equal(t, []string{"C", "D", "E"}, messages(r.Drain("s1")))

	r.AddLog("s1", entry("F"))
	r.AddLog("s1", entry("G"))
	require.Equal(t, []string{"F", "G"}, messages(r.Peek("s1")))
}

func TestUnknownSessionReadsDoNotCreateBuffers(t *testing.T) {
	r, _ := newTestRegistry(t, 3)

	require.NotNil(t, r.Drain("missing"))
	require.Empty(t, r.Drain("missing"))
	require.Empty(t, r.Peek("missing"))
	require.Equal(t, 0, r.ActiveCount())
}

func TestEmptySessionIDIsIgnored(t *testing.T) {
	r, _ := newTestRegistry(t, 3)
	r.AddLog("", entry("x"))
	require.Equal(t, 0, r.ActiveCount())
}

func TestRemove(t *testing.T) {
	r, _ := newTestRegistry(t, 3)
	r.AddLog("s1", entry("x"))
	r.AddLog("s2", entry("y"))
	require.Equal(t, 2, r.ActiveCount())
	require.Equal(t, []string{"s1", "s2"}, r.Sessions())

	require.True(t, r.Remove("s1"))
	require.False(t, r.Remove("s1"))
	require.Equal(t, 1, r.ActiveCount())
	require.Empty(t, r.Peek("s1"))

	r.AddLog("s1", entry("z"))
	require.Equal(t, []string{"z"}, messages(r.Peek("s1")))
	require.Equal(t, 2, r.ActiveCount())
}

func TestSweepExpiredRemovesOnlyIdleBuffers(t *testing.T) {
	r, clock := newTestRegistry(t, 3)
	ttl := 30 * time.Minute

	r.AddLog("idle", entry("x"))
	r.AddLog("written", entry("x"))
	r.AddLog("read", entry("x"))
	clock.Advance(20 * time.Minute)
	r.AddLog("written", entry("y"))
	r.Peek("read")
	clock.Advance(11 * time.Minute)

	removed := r.SweepExpired(ttl, clock.Now())

	require.Equal(t, []string{"idle"}, removed)
	require.Equal(t, []string{"read", "written"}, r.Sessions())
	require.Equal(t, 2, r.ActiveCount())
}

func TestSweepExpiredBoundaryIsExclusive(t *testing.T) {
	r, clock := newTestRegistry(t, 3)
	r.AddLog("s1", entry("x"))
	clock.Advance(time.Minute)

	require.Empty(t, r.SweepExpired(time.Minute, clock.Now()))
	require.Equal(t, []string{"s1"}, r.SweepExpired(time.Minute-time.Nanosecond, clock.Now()))
}

func TestSweepExpiredSkipsLockedBuffer(t *testing.T) {
	r, clock := newTestRegistry(t, 3)
	r.AddLog("busy", entry("x"))
	clock.Advance(time.Hour)

	buf, ok := r.lookup("busy")
	require.True(t, ok)
	buf.mu.Lock()
	removed := r.SweepExpired(time.Minute, clock.Now())
	buf.mu.Unlock()

	require.Empty(t, removed)
	require.Equal(t, 1, r.ActiveCount())
}

func TestWriterRacingSweepMovesToFreshBuffer(t *testing.T) {
	r, clock := newTestRegistry(t, 3)
	r.AddLog("s1", entry("old"))
	stale, _ := r.lookup("s1")
	clock.Advance(time.Hour)
	require.Equal(t, []string{"s1"}, r.SweepExpired(time.Minute, clock.Now()))

	stored, _ := stale.add(entry("late"), clock.Now())
	require.False(t, stored)

	r.AddLog("s1", entry("new"))
	require.Equal(t, []string{"new"}, messages(r.Peek("s1")))
}

func TestConcurrentFirstWritesShareOneBuffer(t *testing.T) {
	r, _ := newTestRegistry(t, 1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.AddLog("s1", entry(strconv.Itoa(i)))
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, r.ActiveCount())
	require.Len(t, r.Peek("s1"), 50)
}

func TestConcurrentWritersKeepPerWriterOrder(t *testing.T) {
	r, _ := newTestRegistry(t, 1000)
	const writers, perWriter = 5, 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				r.AddLog("s1", entry(fmt.Sprintf("%d:%d", w, i)))
			}
		}(w)
	}
	wg.Wait()

	got := r.Peek("s1")
	require.Len(t, got, writers*perWriter)
	next := make([]int, writers)
	for _, e := range got {
		parts := strings.SplitN(e.Message, ":", 2)
		w, _ := strconv.Atoi(parts[0])
		i, _ := strconv.Atoi(parts[1])
		require.Equal(t, next[w], i, "writer %d out of order", w)
		next[w]++
	}
}

func TestConcurrentAddAndDrainNeitherLoseNorDuplicate(t *testing.T) {
	r, _ := newTestRegistry(t, 10000)
	const writers, perWriter = 4, 500

	start := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			<-start
			for i := 0; i < perWriter; i++ {
				r.AddLog("s1", entry(fmt.Sprintf("%d:%d", w, i)))
			}
		}(w)
	}
	var drained []LogEntry
	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		<-start
		time.Sleep(time.Millisecond)
		drained = r.Drain("s1")
	}()
	close(start)
	wg.Wait()
	<-drainDone

	seen := make(map[string]int)
	for _, e := range drained {
		seen[e.Message]++
	}
	for _, e := range r.Peek("s1") {
		seen[e.Message]++
	}
	require.Len(t, seen, writers*perWriter)
	for msg, n := range seen {
		require.Equal(t, 1, n, "entry %s seen %d times", msg, n)
	}
}

func TestConcurrentMixedOperationsAcrossSessions(t *testing.T) {
	r, clock := newTestRegistry(t, 16)
	var wg sync.WaitGroup
	for s := 0; s < 8; s++ {
		id := "s" + strconv.Itoa(s)
		wg.Add(3)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				r.AddLog(id, entry(strconv.Itoa(i)))
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.Drain(id)
				r.Peek(id)
			}
		}()
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				r.SweepExpired(time.Hour, clock.Now())
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 8, r.ActiveCount())
	for _, id := range r.Sessions() {
		require.LessOrEqual(t, len(r.Peek(id)), 16)
	}
}
