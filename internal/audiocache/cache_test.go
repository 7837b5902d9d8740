package audiocache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/voxpal/pkg/provider/tts"
)

func TestKey(t *testing.T) {
	t.Parallel()

	k := Key("google", "es-US-Chirp3-HD-Kore", "hola")
	if !strings.HasPrefix(k, keyPrefix) {
		t.Fatalf("Key = %q, want prefix %q", k, keyPrefix)
	}
	if got := len(k) - len(keyPrefix); got != 64 {
		t.Errorf("hash length = %d, want 64", got)
	}
	if k != Key("google", "es-US-Chirp3-HD-Kore", "hola") {
		t.Error("Key is not deterministic")
	}
	// Field boundaries must matter.
	if Key("ab", "c", "d") == Key("a", "bc", "d") {
		t.Error("Key ignores field boundaries")
	}
	if k == Key("elevenlabs", "es-US-Chirp3-HD-Kore", "hola") {
		t.Error("Key ignores provider")
	}
}

func TestMemoryCache_GetSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewMemoryCache(4)

	if _, ok, err := c.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}

	in := &tts.Audio{Data: []byte("ID3abc"), ContentType: "audio/mpeg"}
	if err := c.Set(ctx, "k", in, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	in.Data[0] = 'X'

	got, ok, err := c.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get(k) = ok %v, err %v", ok, err)
	}
	if string(got.Data) != "ID3abc" || got.ContentType != "audio/mpeg" {
		t.Errorf("Get(k) = %q %q, want stored copy", got.Data, got.ContentType)
	}
	got.Data[0] = 'Y'
	again, _, _ := c.Get(ctx, "k")
	if string(again.Data) != "ID3abc" {
		t.Errorf("cached data mutated through returned slice: %q", again.Data)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewMemoryCache(4)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "k", &tts.Audio{Data: []byte("a")}, time.Minute)
	now = now.Add(59 * time.Second)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("entry expired early")
	}
	now = now.Add(time.Second)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("entry did not expire")
	}
	if c.Len() != 0 {
		t.Errorf("Len = %d after expiry, want 0", c.Len())
	}
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewMemoryCache(2)

	_ = c.Set(ctx, "a", &tts.Audio{Data: []byte("a")}, 0)
	_ = c.Set(ctx, "b", &tts.Audio{Data: []byte("b")}, 0)
	c.Get(ctx, "a") //nolint:errcheck
	_ = c.Set(ctx, "c", &tts.Audio{Data: []byte("c")}, 0)

	if _, ok, _ := c.Get(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, ok, _ := c.Get(ctx, k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestMemoryCache_Defaults(t *testing.T) {
	t.Parallel()
	c := NewMemoryCache(0)
	if c.max != DefaultMaxEntries {
		t.Errorf("max = %d, want %d", c.max, DefaultMaxEntries)
	}
	if err := c.Set(context.Background(), "k", nil, 0); err != nil {
		t.Errorf("Set(nil) = %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("Set(nil) stored an entry")
	}
}

// TestRedisCache runs against a real server when VOXPAL_TEST_REDIS_ADDR is set.
func TestRedisCache(t *testing.T) {
	addr := os.Getenv("VOXPAL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("VOXPAL_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, addr, "", 0)
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	key := Key("test", "voice", time.Now().String())
	if _, ok, err := c.Get(ctx, key); ok || err != nil {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}
	if err := c.Set(ctx, key, &tts.Audio{Data: []byte("ID3x"), ContentType: "audio/mpeg"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get = ok %v, err %v", ok, err)
	}
	if string(got.Data) != "ID3x" || got.ContentType != "audio/mpeg" {
		t.Errorf("Get = %q %q", got.Data, got.ContentType)
	}
}
