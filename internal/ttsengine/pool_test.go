package ttsengine

import (
	"testing"
	"time"

	"github.com/MrWong99/voxpal/pkg/provider/tts/mock"
)

func TestPool_ReusesSessionPerKey(t *testing.T) {
	t.Parallel()
	e, _ := New(&mock.Provider{}, nil)
	p := NewPool(e, time.Hour)

	a1 := p.Get("alice")
	a2 := p.Get("alice")
	b := p.Get("bob")
	if a1 != a2 {
		t.Error("same key returned different sessions")
	}
	if a1 == b {
		t.Error("different keys share a session")
	}
	if p.Len() != 2 {
		t.Errorf("Len = %d, want 2", p.Len())
	}
}

func TestPool_IdleSessionsExpire(t *testing.T) {
	t.Parallel()
	e, _ := New(&mock.Provider{}, nil)
	p := NewPool(e, time.Minute)
	now := time.Unix(0, 0)
	p.now = func() time.Time { return now }

	first := p.Get("alice")
	first.premiumDisabled.Trip("test")

	now = now.Add(30 * time.Second)
	if p.Get("alice") != first {
		t.Fatal("session dropped before idle timeout")
	}

	now = now.Add(time.Minute)
	fresh := p.Get("alice")
	if fresh == first {
		t.Fatal("idle session was reused")
	}
	if fresh.PremiumDisabled() {
		t.Error("fresh session inherited the premium flag")
	}

	now = now.Add(2 * time.Minute)
	p.Sweep()
	if p.Len() != 0 {
		t.Errorf("Len = %d after sweep, want 0", p.Len())
	}
}

func TestNewPool_DefaultIdle(t *testing.T) {
	t.Parallel()
	e, _ := New(&mock.Provider{}, nil)
	if p := NewPool(e, 0); p.idle != DefaultIdleTimeout {
		t.Errorf("idle = %v, want %v", p.idle, DefaultIdleTimeout)
	}
}
