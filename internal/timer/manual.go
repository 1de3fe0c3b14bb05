package timer

import (
	"sort"
	"sync"
	"time"
)

// Manual is a virtual clock. Nothing fires until Advance is called, and
// callbacks run synchronously on the caller's goroutine in due-time order.
type Manual struct {
	mu      sync.Mutex
	now     time.Duration
	seq     uint64
	entries []*manualEntry
}

type manualEntry struct {
	m         *Manual
	next      time.Duration
	period    time.Duration
	seq       uint64
	fn        func()
	cancelled bool
}

func (e *manualEntry) Cancel() {
	e.m.mu.Lock()
	e.cancelled = true
	e.m.mu.Unlock()
}

// NewManual returns a virtual clock starting at zero.
func NewManual() *Manual {
	return &Manual{}
}

// Now returns the elapsed virtual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of live schedules.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if !e.cancelled {
			n++
		}
	}
	return n
}

// Schedule implements Service.
func (m *Manual) Schedule(delay, period time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	m.seq++
	e := &manualEntry{
		m:      m,
		next:   m.now + delay,
		period: period,
		seq:    m.seq,
		fn:     fn,
	}
	m.entries = append(m.entries, e)
	return e
}

// Advance moves the clock forward by d, firing every callback that comes
// due on the way. Callbacks may schedule or cancel other callbacks.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		m.compact()
		e := m.earliest(target)
		if e == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = e.next
		if e.period > 0 {
			e.next += e.period
		} else {
			e.cancelled = true
		}
		fn := e.fn
		m.mu.Unlock()

		fn()
	}
}

// AdvanceTo moves the clock to the absolute virtual time t.
func (m *Manual) AdvanceTo(t time.Duration) {
	if now := m.Now(); t > now {
		m.Advance(t - now)
	}
}

// earliest returns the next live entry due at or before target. Ties fire in
// scheduling order. Must be called with mu held.
func (m *Manual) earliest(target time.Duration) *manualEntry {
	sort.SliceStable(m.entries, func(i, j int) bool {
		if m.entries[i].next != m.entries[j].next {
			return m.entries[i].next < m.entries[j].next
		}
		return m.entries[i].seq < m.entries[j].seq
	})
	for _, e := range m.entries {
		if e.cancelled {
			continue
		}
		if e.next > target {
			return nil
		}
		return e
	}
	return nil
}

func (m *Manual) compact() {
	live := m.entries[:0]
	for _, e := range m.entries {
		if !e.cancelled {
			live = append(live, e)
		}
	}
	for i := len(live); i < len(m.entries); i++ {
		m.entries[i] = nil
	}
	m.entries = live
}
