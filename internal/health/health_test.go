package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrWong99/voxpal/internal/resilience"
)

// serve routes a GET for path through a chi router with h registered.
func serve(t *testing.T, h *Handler, ctx context.Context, path string) (int, result) {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("%s: Content-Type = %q", path, ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("%s: decode: %v", path, err)
	}
	return rec.Code, body
}

func TestHealthz_IgnoresFailingChecks(t *testing.T) {
	h := New(Ping("database", func(context.Context) error { return errors.New("down") }))
	code, body := serve(t, h, context.Background(), "/healthz")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("healthz = %d %q, want 200 ok", code, body.Status)
	}
	if len(body.Checks) != 0 {
		t.Errorf("healthz checks = %v, want none", body.Checks)
	}
}

func TestReadyz(t *testing.T) {
	up := func(context.Context) error { return nil }
	refused := func(context.Context) error { return errors.New("dial tcp 127.0.0.1:6379: connection refused") }

	tests := []struct {
		name       string
		checkers   []Checker
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "memory only",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{},
		},
		{
			name:       "cache and database up",
			checkers:   []Checker{Ping("cache", up), Ping("database", up)},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"cache": "ok", "database": "ok"},
		},
		{
			name:       "redis unreachable",
			checkers:   []Checker{Ping("cache", refused), Ping("database", up)},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{
				"cache":    "fail: dial tcp 127.0.0.1:6379: connection refused",
				"database": "ok",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serve(t, New(tt.checkers...), context.Background(), "/readyz")
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d", code, tt.wantStatus)
			}
			wantStatus := "ok"
			if tt.wantStatus != http.StatusOK {
				wantStatus = "fail"
			}
			if body.Status != wantStatus {
				t.Errorf("body status = %q, want %q", body.Status, wantStatus)
			}
			if len(body.Checks) != len(tt.wantChecks) {
				t.Errorf("checks = %v, want %v", body.Checks, tt.wantChecks)
			}
			for k, v := range tt.wantChecks {
				if body.Checks[k] != v {
					t.Errorf("check %s = %q, want %q", k, body.Checks[k], v)
				}
			}
		})
	}
}

func TestReadyz_FollowsCircuitBreaker(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "elevenlabs",
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})
	h := New(Breaker("breaker_elevenlabs", func() string { return cb.State().String() }))

	if code, _ := serve(t, h, context.Background(), "/readyz"); code != http.StatusOK {
		t.Fatalf("closed breaker: status = %d, want 200", code)
	}

	_ = cb.Execute(context.Background(), func(context.Context) error { return errors.New("upstream 500") })
	code, body := serve(t, h, context.Background(), "/readyz")
	if code != http.StatusServiceUnavailable {
		t.Fatalf("open breaker: status = %d, want 503", code)
	}
	if got := body.Checks["breaker_elevenlabs"]; got != "fail: circuit open" {
		t.Errorf("check = %q, want fail: circuit open", got)
	}

	cb.Reset()
	if code, _ := serve(t, h, context.Background(), "/readyz"); code != http.StatusOK {
		t.Errorf("reset breaker: status = %d, want 200", code)
	}
}

func TestReadyz_ChecksRunConcurrently(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(2)
	rendezvous := func(ctx context.Context) error {
		wg.Done()
		all := make(chan struct{})
		go func() { wg.Wait(); close(all) }()
		select {
		case <-all:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h := New(Ping("cache", rendezvous), Ping("database", rendezvous))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if code, body := serve(t, h, ctx, "/readyz"); code != http.StatusOK {
		t.Errorf("status = %d, checks = %v; checks did not run concurrently", code, body.Checks)
	}
}

func TestReadyz_CheckDeadline(t *testing.T) {
	var hadDeadline bool
	h := New(Ping("database", func(ctx context.Context) error {
		_, hadDeadline = ctx.Deadline()
		return ctx.Err()
	}))

	if code, _ := serve(t, h, context.Background(), "/readyz"); code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	if !hadDeadline {
		t.Error("check ran without a deadline")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if code, _ := serve(t, h, ctx, "/readyz"); code != http.StatusServiceUnavailable {
		t.Errorf("cancelled request: status = %d, want 503", code)
	}
}
