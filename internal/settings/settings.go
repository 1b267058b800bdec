package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Adda-Baaj/nostr-mirror/internal/domain"
	"github.com/Adda-Baaj/nostr-mirror/internal/storage"
	"gopkg.in/yaml.v3"
)

// StorageKey is the key the bot configuration is persisted under.
const StorageKey = "config"

// DefaultEndpoints are the relays used when nothing else is configured.
var DefaultEndpoints = []string{
	"wss://relay.damus.io",
	"wss://relay.nostr.band",
	"wss://nos.lol",
}

// Store persists the bot configuration. It is the only writer of BotConfiguration.
type Store struct {
	kv       storage.Store
	defaults domain.BotConfiguration
	mu       sync.Mutex
}

// NewStore returns a config store over kv. When endpoints is empty DefaultEndpoints are used.
func NewStore(kv storage.Store, endpoints []string) *Store {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	return &Store{
		kv: kv,
		defaults: domain.BotConfiguration{
			IntervalMinutes: domain.DefaultIntervalMinutes,
			Endpoints:       append([]string(nil), endpoints...),
		},
	}
}

// Defaults returns the configuration used before anything is persisted.
func (s *Store) Defaults() domain.BotConfiguration {
	return s.defaults.Clone()
}

// Get returns the stored configuration, or the defaults when nothing was stored yet.
func (s *Store) Get(_ context.Context) (domain.BotConfiguration, error) {
	raw, err := s.kv.Get(StorageKey)
	if err != nil {
		return domain.BotConfiguration{}, fmt.Errorf("read config: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return s.Defaults(), nil
	}

	var cfg domain.BotConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.BotConfiguration{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Set validates and replaces the stored configuration.
func (s *Store) Set(_ context.Context, cfg domain.BotConfiguration) error {
	cfg = Sanitize(cfg)
	if err := Validate(cfg); err != nil {
		return err
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Put(StorageKey, raw); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Seed stores cfg only when no configuration has been persisted yet.
// It reports whether the seed was applied.
func (s *Store) Seed(ctx context.Context, cfg domain.BotConfiguration) (bool, error) {
	raw, err := s.kv.Get(StorageKey)
	if err != nil {
		return false, fmt.Errorf("read config: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) > 0 {
		return false, nil
	}
	if cfg.IntervalMinutes == 0 {
		cfg.IntervalMinutes = s.defaults.IntervalMinutes
	}
	if len(cfg.Endpoints) == 0 {
		cfg.Endpoints = s.defaults.Endpoints
	}
	if err := s.Set(ctx, cfg); err != nil {
		return false, err
	}
	return true, nil
}

// Sanitize trims list items and drops blanks. Duplicate accounts are kept.
func Sanitize(cfg domain.BotConfiguration) domain.BotConfiguration {
	cfg.Accounts = trimList(cfg.Accounts, func(s string) string {
		return strings.TrimPrefix(strings.TrimSpace(s), "@")
	})
	cfg.Endpoints = trimList(cfg.Endpoints, strings.TrimSpace)
	cfg.SigningKey = strings.TrimSpace(cfg.SigningKey)
	return cfg
}

// Validate checks invariants that must hold for any stored configuration.
// A missing key or an empty account list is allowed here and reported per cycle.
func Validate(cfg domain.BotConfiguration) error {
	if cfg.IntervalMinutes <= 0 {
		return domain.ErrInvalidInterval
	}
	return nil
}

func trimList(in []string, clean func(string) string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = clean(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadFile reads a BotConfiguration from a YAML or JSON file.
func LoadFile(path string) (domain.BotConfiguration, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.BotConfiguration{}, errors.New("config file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.BotConfiguration{}, fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return domain.BotConfiguration{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(raw, filepath.Ext(path))
}

// parseConfig attempts each known decoder that matches ext (all of them when ext is empty).
func parseConfig(data []byte, ext string) (domain.BotConfiguration, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var cfg domain.BotConfiguration
		if err := d.fn(data, &cfg); err == nil {
			return Sanitize(cfg), nil
		}
	}

	return domain.BotConfiguration{}, errors.New("config file format not recognized (expected YAML or JSON)")
}
