package app_test

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/voxpal/internal/app"
	"github.com/MrWong99/voxpal/internal/audiocache"
	"github.com/MrWong99/voxpal/internal/character"
	"github.com/MrWong99/voxpal/internal/config"
	"github.com/MrWong99/voxpal/internal/observe"
	"github.com/MrWong99/voxpal/pkg/provider/tts"
	ttsmock "github.com/MrWong99/voxpal/pkg/provider/tts/mock"
)

// testConfig returns a minimal config with one seeded character.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{ListenAddr: "127.0.0.1:0", LogLevel: config.LogInfo},
		Characters: []character.Character{
			{ID: "luna", Name: "Luna", Voice: "latina"},
		},
	}
}

func testMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func testBackends() (*ttsmock.Provider, *ttsmock.Provider) {
	return &ttsmock.Provider{ProviderName: "google", Audio: &tts.Audio{Data: []byte("ID3std"), ContentType: "audio/mpeg"}},
		&ttsmock.Provider{ProviderName: "elevenlabs", Audio: &tts.Audio{Data: []byte("ID3pre"), ContentType: "audio/mpeg"}}
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...app.Option) *app.App {
	t.Helper()
	std, pre := testBackends()
	base := []app.Option{
		app.WithBackends(std, pre),
		app.WithMetrics(testMetrics(t)),
	}
	a, err := app.New(context.Background(), cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig())
	if a.Handler() == nil {
		t.Fatal("Handler() returned nil")
	}
}

func TestNew_SeedsCharacters(t *testing.T) {
	t.Parallel()
	store, _ := character.NewMemStore()
	newTestApp(t, testConfig(), app.WithCharacterStore(store))

	c, err := store.Get(context.Background(), "luna")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Name != "Luna" {
		t.Errorf("name = %q", c.Name)
	}
}

func TestNew_InvalidSeedFails(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Characters = append(cfg.Characters, character.Character{ID: "nameless"})
	std, _ := testBackends()
	if _, err := app.New(context.Background(), cfg, app.WithBackends(std, nil), app.WithMetrics(testMetrics(t))); err == nil {
		t.Fatal("expected error for invalid seed character")
	}
}

func TestNew_CacheServesRepeats(t *testing.T) {
	t.Parallel()
	std, _ := testBackends()
	cache := audiocache.NewMemoryCache(8)
	a, err := app.New(context.Background(), testConfig(),
		app.WithBackends(std, nil),
		app.WithCache(cache),
		app.WithMetrics(testMetrics(t)),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Shutdown(context.Background())

	for range 2 {
		req, _ := http.NewRequest(http.MethodPost, "/functions/v1/google-tts", strings.NewReader(`{"text":"Hola","voiceType":"latina"}`))
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if n := std.CallCount(); n != 1 {
		t.Errorf("backend calls = %d, want 1", n)
	}
	if cache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", cache.Len())
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	a := newTestApp(t, testConfig(), app.WithListener(ln))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	var resp *http.Response
	for i := 0; i < 50; i++ {
		if resp, err = http.Get(url); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestReload(t *testing.T) {
	t.Parallel()
	store, _ := character.NewMemStore()
	var level slog.LevelVar
	a := newTestApp(t, testConfig(), app.WithCharacterStore(store), app.WithLogLevel(&level))

	old := testConfig()
	updated := testConfig()
	updated.Server.LogLevel = config.LogDebug
	updated.Autoplay.Settle = time.Second
	updated.Characters[0].Voice = "mexicana"
	updated.Characters = append(updated.Characters, character.Character{ID: "max", Name: "Max"})

	a.Reload(old, updated)

	if level.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", level.Level())
	}
	c, err := store.Get(context.Background(), "luna")
	if err != nil || c.Voice != "mexicana" {
		t.Errorf("luna after reload = %+v, %v", c, err)
	}
	if _, err := store.Get(context.Background(), "max"); err != nil {
		t.Errorf("max after reload: %v", err)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()
	a := newTestApp(t, testConfig())
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := a.Shutdown(context.Background()); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := app.SlogLevel(tt.in); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
