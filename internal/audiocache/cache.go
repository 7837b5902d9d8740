// Package audiocache stores synthesized audio keyed by provider, voice and
// text so that repeated lines are not sent upstream twice.
//
// Two implementations are provided: [MemoryCache], a bounded LRU for single
// instance deployments and tests, and [RedisCache] for sharing audio between
// edge replicas.
package audiocache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/MrWong99/voxpal/pkg/provider/tts"
)

// keyPrefix namespaces every cache key.
const keyPrefix = "voxpal:tts:"

// Cache is a store of synthesized audio.
//
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the audio stored under key. The bool is false on a miss; a
	// miss is not an error.
	Get(ctx context.Context, key string) (*tts.Audio, bool, error)

	// Set stores audio under key for ttl. A ttl <= 0 means the entry never
	// expires on its own.
	Set(ctx context.Context, key string, audio *tts.Audio, ttl time.Duration) error
}

// Key derives the cache key for text spoken by voiceID on provider.
func Key(provider, voiceID, text string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(voiceID))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}
