package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// minSecretLen is the shortest accepted HMAC secret, in bytes.
const minSecretLen = 32

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown keys are rejected. An empty document yields the zero config.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found. Settings
// that are legal but probably unintended are logged as warnings.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if (cfg.Server.TLS.CertFile == "") != (cfg.Server.TLS.KeyFile == "") {
		errs = append(errs, errors.New("server.tls: cert_file and key_file must be set together"))
	}

	// Auth
	switch {
	case !cfg.Auth.Enabled():
		slog.Warn("auth.jwt_secret is empty; all routes are served without authentication")
	case len(cfg.Auth.JWTSecret) < minSecretLen:
		errs = append(errs, fmt.Errorf("auth.jwt_secret must be at least %d bytes", minSecretLen))
	}

	// Providers
	if u := cfg.Providers.ElevenLabs.BaseURL; u != "" {
		if err := validateURL(u); err != nil {
			errs = append(errs, fmt.Errorf("providers.elevenlabs.base_url: %w", err))
		}
	}
	if cfg.Providers.ElevenLabs.APIKey == "" {
		slog.Warn("providers.elevenlabs.api_key is empty; premium voices will use their standard fallback")
	}

	// Engine
	if cfg.Engine.AttemptTimeout < 0 {
		errs = append(errs, errors.New("engine.attempt_timeout must not be negative"))
	}
	if cfg.Engine.MaxChars < 0 {
		errs = append(errs, errors.New("engine.max_chars must not be negative"))
	}
	if cfg.Engine.SessionIdle < 0 {
		errs = append(errs, errors.New("engine.session_idle must not be negative"))
	}

	// Edge
	if cfg.Edge.MaxChars < 0 {
		errs = append(errs, errors.New("edge.max_chars must not be negative"))
	}
	if cfg.Edge.Timeout < 0 {
		errs = append(errs, errors.New("edge.timeout must not be negative"))
	}
	if cfg.Edge.Breaker.MaxFailures < 0 {
		errs = append(errs, errors.New("edge.breaker.max_failures must not be negative"))
	}
	if cfg.Edge.Breaker.ResetTimeout < 0 {
		errs = append(errs, errors.New("edge.breaker.reset_timeout must not be negative"))
	}
	cache := cfg.Edge.Cache
	if !cache.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("edge.cache.backend %q is invalid; valid values: memory, redis, none", cache.Backend))
	}
	if cache.Backend == CacheRedis && cache.RedisAddr == "" {
		errs = append(errs, errors.New("edge.cache.redis_addr is required for the redis backend"))
	}
	if cache.Backend != CacheRedis && cache.RedisAddr != "" {
		slog.Warn("edge.cache.redis_addr is set but the cache backend is not redis", "backend", cache.Backend)
	}
	if cache.TTL < 0 {
		errs = append(errs, errors.New("edge.cache.ttl must not be negative"))
	}
	if cache.MaxEntries < 0 {
		errs = append(errs, errors.New("edge.cache.max_entries must not be negative"))
	}

	// Autoplay
	if cfg.Autoplay.CueLeadIn < 0 || cfg.Autoplay.SpeechAfterCue < 0 || cfg.Autoplay.Settle < 0 {
		errs = append(errs, errors.New("autoplay delays must not be negative"))
	}

	// Characters
	seen := make(map[string]bool, len(cfg.Characters))
	for i := range cfg.Characters {
		c := &cfg.Characters[i]
		if err := c.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("characters[%d]: %w", i, err))
			continue
		}
		if seen[c.ID] {
			errs = append(errs, fmt.Errorf("characters[%d]: duplicate id %q", i, c.ID))
		}
		seen[c.ID] = true
		if c.Voice != "" && c.ResolvedVoice().ID != c.Voice {
			slog.Warn("character voice resolves to a different catalog voice",
				"character", c.ID, "stored", c.Voice, "resolved", c.ResolvedVoice().ID)
		}
	}

	return errors.Join(errs...)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http or https", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is empty")
	}
	return nil
}
