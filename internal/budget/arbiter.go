// Package budget serialises reservations against a run's global article
// cap. The arbiter's counter is the only long-lived shared mutable in
// the scheduler; a single mutex guards every operation and decisions are
// always made under the lock, never from snapshot reads.
package budget

import "sync"

// Arbiter tracks the global remaining article budget for one coordinator
// invocation. An unbounded arbiter grants every reservation in full.
type Arbiter struct {
	mu        sync.Mutex
	remaining int
	bounded   bool
}

// NewArbiter builds a bounded arbiter starting at target.
func NewArbiter(target int) *Arbiter {
	if target < 0 {
		target = 0
	}
	return &Arbiter{remaining: target, bounded: true}
}

// NewUnbounded builds an arbiter with no global cap.
func NewUnbounded() *Arbiter {
	return &Arbiter{}
}

// Reserve atomically grants up to requested units from the remaining
// budget. A grant of zero means the budget is exhausted right now;
// callers may retry after restorations.
func (a *Arbiter) Reserve(requested int) int {
	if requested <= 0 {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.bounded {
		return requested
	}
	granted := requested
	if a.remaining < granted {
		granted = a.remaining
	}
	if granted < 0 {
		granted = 0
	}
	a.remaining -= granted
	return granted
}

// Restore returns n unused units to the budget. Called on shortfall,
// when a reservation out-delivered what ingestion accepted.
func (a *Arbiter) Restore(n int) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bounded {
		a.remaining += n
	}
}

// ConsumeOutsideReservation decrements the budget for work that was not
// reserved up front, clamping at zero. Only the legacy call shape uses
// this; the scheduler always reserves first.
func (a *Arbiter) ConsumeOutsideReservation(n int) {
	if n <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.bounded {
		return
	}
	a.remaining -= n
	if a.remaining < 0 {
		a.remaining = 0
	}
}

// Snapshot reports the remaining budget and whether the arbiter is
// unbounded. Snapshot reads never gate decisions; use Reserve.
func (a *Arbiter) Snapshot() (remaining int, unbounded bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remaining, !a.bounded
}

// Exhausted reports whether a bounded budget has reached zero.
func (a *Arbiter) Exhausted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bounded && a.remaining <= 0
}
