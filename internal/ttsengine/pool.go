package ttsengine

import (
	"sync"
	"time"
)

// DefaultIdleTimeout is how long an unused pooled session is kept.
const DefaultIdleTimeout = 30 * time.Minute

// Pool hands out one [Session] per key, such as a user id, so that the
// premium flag of a user survives across HTTP requests. Sessions unused for
// the idle timeout are dropped and the next request starts fresh.
//
// All methods are safe for concurrent use.
type Pool struct {
	engine *Engine
	idle   time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*poolEntry
	gets    int
}

type poolEntry struct {
	session  *Session
	lastUsed time.Time
}

// NewPool creates a Pool on e. idle <= 0 uses DefaultIdleTimeout.
func NewPool(e *Engine, idle time.Duration) *Pool {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Pool{engine: e, idle: idle, now: time.Now, entries: make(map[string]*poolEntry)}
}

// Engine returns the engine sessions are opened on.
func (p *Pool) Engine() *Engine { return p.engine }

// Get returns the session for key, opening one if needed.
func (p *Pool) Get(key string) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	p.gets++
	if p.gets%64 == 0 {
		p.sweepLocked(now)
	}
	if e, ok := p.entries[key]; ok && now.Sub(e.lastUsed) < p.idle {
		e.lastUsed = now
		return e.session
	}
	s := p.engine.NewSession()
	p.entries[key] = &poolEntry{session: s, lastUsed: now}
	return s
}

// Len returns the number of pooled sessions, idle ones included.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// Sweep drops idle sessions.
func (p *Pool) Sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sweepLocked(p.now())
}

func (p *Pool) sweepLocked(now time.Time) {
	for k, e := range p.entries {
		if now.Sub(e.lastUsed) >= p.idle {
			delete(p.entries, k)
		}
	}
}
