package sched

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by an explicit virtual clock. Timers fire
// only when Advance moves the clock past their deadline, in deadline order,
// on the goroutine calling Advance.
type Manual struct {
	mu     sync.Mutex
	now    time.Duration
	nextID uint64
	timers []*manualTimer
	delays []time.Duration
}

type manualTimer struct {
	m        *Manual
	id       uint64
	deadline time.Duration
	fn       func()
	stopped  bool
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) After(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &manualTimer{m: m, id: m.nextID, deadline: m.now + d, fn: fn}
	m.timers = append(m.timers, t)
	m.delays = append(m.delays, d)
	return t
}

// Advance moves the virtual clock forward by d, firing every due timer.
// Callbacks may schedule further timers; those fire too if they fall
// within the advanced window.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		t := m.popDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// popDue removes and returns the earliest unexpired timer with a deadline
// at or before target, advancing the clock to it.
func (m *Manual) popDue(target time.Duration) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	sort.SliceStable(m.timers, func(i, j int) bool {
		if m.timers[i].deadline == m.timers[j].deadline {
			return m.timers[i].id < m.timers[j].id
		}
		return m.timers[i].deadline < m.timers[j].deadline
	})
	for i, t := range m.timers {
		if t.stopped {
			continue
		}
		if t.deadline <= target {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			if t.deadline > m.now {
				m.now = t.deadline
			}
			return t
		}
		break
	}
	return nil
}

// Pending reports how many timers are scheduled and not yet fired or stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// Delays returns every delay ever requested through After, in order.
// Useful for asserting backoff schedules.
func (m *Manual) Delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.delays))
	copy(out, m.delays)
	return out
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.stopped {
		return false
	}
	for _, p := range t.m.timers {
		if p == t {
			t.stopped = true
			return true
		}
	}
	return false // already fired
}
