package resilience

import (
	"sync"
	"sync/atomic"
)

// Latch is a one-way boolean. Once tripped it stays tripped for its lifetime.
// The zero value is an untripped latch ready to use.
type Latch struct {
	tripped atomic.Bool

	mu     sync.Mutex
	reason string
}

// Trip sets the latch and records reason. It reports whether this call was
// the one that tripped it; later calls keep the first reason.
func (l *Latch) Trip(reason string) bool {
	if !l.tripped.CompareAndSwap(false, true) {
		return false
	}
	l.mu.Lock()
	l.reason = reason
	l.mu.Unlock()
	return true
}

// Tripped reports whether the latch has been tripped.
func (l *Latch) Tripped() bool {
	return l.tripped.Load()
}

// Reason returns the reason given to the first successful [Latch.Trip].
func (l *Latch) Reason() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reason
}
