package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrBlocked means the platform refused to start audio without a user
	// gesture. It is never surfaced to the user.
	ErrBlocked = errors.New("playback: blocked by autoplay policy")

	// ErrDecode means the platform could not decode the audio.
	ErrDecode = errors.New("playback: audio could not be decoded")

	// ErrClosed is returned by operations on a closed [Controller].
	ErrClosed = errors.New("playback: controller closed")
)

// Blob is audio held in memory.
type Blob struct {
	Data        []byte
	ContentType string
}

// Player is the platform audio facility.
type Player interface {
	// Open prepares blob, addressed by url, for playback.
	Open(url string, blob Blob) (Handle, error)
}

// Handle is one prepared audio resource.
type Handle interface {
	// Start begins playback and blocks until audio is playing. It fails with
	// an error wrapping [ErrBlocked] or [ErrDecode], or with ctx.Err().
	Start(ctx context.Context) error

	// Done delivers exactly one value when playback ends: nil for a natural
	// end, an error for a playback failure. It is never closed before that.
	Done() <-chan error

	// Pause halts playback.
	Pause()

	// Rewind resets the position to the start.
	Rewind()

	// Close releases the resource. It is safe to call more than once and
	// concurrently with Start.
	Close() error
}

// URLStore hands out transient URLs for in-memory audio.
type URLStore interface {
	Create(blob Blob) (string, error)
	Revoke(url string)
}

// MemoryURLs is an in-process [URLStore]. It tracks live URLs so callers
// can assert that every URL gets revoked.
type MemoryURLs struct {
	mu      sync.Mutex
	live    map[string]Blob
	revoked int
}

// NewMemoryURLs returns an empty store.
func NewMemoryURLs() *MemoryURLs {
	return &MemoryURLs{live: make(map[string]Blob)}
}

// Create registers blob and returns its URL.
func (s *MemoryURLs) Create(blob Blob) (string, error) {
	if len(blob.Data) == 0 {
		return "", fmt.Errorf("playback: create url: %w", ErrDecode)
	}
	url := "blob:voxpal/" + uuid.NewString()
	s.mu.Lock()
	s.live[url] = blob
	s.mu.Unlock()
	return url, nil
}

// Revoke releases url. Unknown or already revoked URLs are ignored.
func (s *MemoryURLs) Revoke(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[url]; ok {
		delete(s.live, url)
		s.revoked++
	}
}

// Get returns the blob behind a live url.
func (s *MemoryURLs) Get(url string) (Blob, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.live[url]
	return b, ok
}

// Live returns the number of URLs not yet revoked.
func (s *MemoryURLs) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Revoked returns how many URLs have been revoked.
func (s *MemoryURLs) Revoked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked
}

var _ URLStore = (*MemoryURLs)(nil)
