package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the process configuration loaded from files and environment variables.
// The bot's operating configuration (accounts, key, endpoints) lives in the settings store.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	StorageType string `mapstructure:"storage_type"`
	BBoltPath   string `mapstructure:"bbolt_path"`
	SeedFile    string `mapstructure:"seed_file"`

	ControlAddr   string `mapstructure:"control_addr"`
	ControlURL    string `mapstructure:"control_url"`
	AutoStart     bool   `mapstructure:"auto_start"`
	LogBufferSize int    `mapstructure:"log_buffer_size"`

	IntervalUnitSeconds int64         `mapstructure:"interval_unit_seconds"`
	IntervalUnit        time.Duration `mapstructure:"-"`

	FetchTimeoutSeconds int64         `mapstructure:"fetch_timeout_seconds"`
	FetchTimeout        time.Duration `mapstructure:"-"`
	FetchRetries        int           `mapstructure:"fetch_retries"`
	FetchProxyURL       string        `mapstructure:"fetch_proxy_url"`
	RequestDelayMs      int           `mapstructure:"request_delay_ms"`
	UserAgent           string        `mapstructure:"user_agent"`
	AcceptLanguage      string        `mapstructure:"accept_language"`

	MediaProxyURL     string   `mapstructure:"media_proxy_url"`
	MediaMaxBytes     int64    `mapstructure:"media_max_bytes"`
	BlossomServersRaw string   `mapstructure:"blossom_servers"`
	BlossomServers    []string `mapstructure:"-"`

	BroadcastTimeoutSeconds int64         `mapstructure:"broadcast_timeout_seconds"`
	BroadcastTimeout        time.Duration `mapstructure:"-"`
	DefaultEndpointsRaw     string        `mapstructure:"default_endpoints"`
	DefaultEndpoints        []string      `mapstructure:"-"`

	AWSRegion          string `mapstructure:"aws_region"`
	AWSAccessKeyID     string `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey string `mapstructure:"aws_secret_access_key"`
	GCPCredentialsFile string `mapstructure:"gcp_credentials_file"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "nostr-mirror")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/mirror.db")
	v.SetDefault("seed_file", "")
	v.SetDefault("control_addr", ":8088")
	v.SetDefault("control_url", "http://127.0.0.1:8088")
	v.SetDefault("auto_start", false)
	v.SetDefault("log_buffer_size", 200)
	v.SetDefault("interval_unit_seconds", 60)
	v.SetDefault("fetch_timeout_seconds", 15)
	v.SetDefault("fetch_retries", 1)
	v.SetDefault("fetch_proxy_url", "")
	v.SetDefault("request_delay_ms", 1500)
	v.SetDefault("user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("accept_language", "en-US,en;q=0.9")
	v.SetDefault("media_proxy_url", "")
	v.SetDefault("media_max_bytes", int64(25<<20))
	v.SetDefault("blossom_servers", "https://blossom.primal.net/")
	v.SetDefault("broadcast_timeout_seconds", 10)
	v.SetDefault("default_endpoints", "wss://relay.damus.io,wss://relay.nostr.band,wss://nos.lol")
	v.SetDefault("aws_region", "")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")
	v.SetDefault("gcp_credentials_file", "")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	if c.IntervalUnitSeconds <= 0 {
		return fmt.Errorf("invalid interval_unit_seconds (must be positive seconds)")
	}
	c.IntervalUnit = time.Duration(c.IntervalUnitSeconds) * time.Second

	if c.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid fetch_timeout_seconds (must be positive seconds)")
	}
	c.FetchTimeout = time.Duration(c.FetchTimeoutSeconds) * time.Second

	if c.BroadcastTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid broadcast_timeout_seconds (must be positive seconds)")
	}
	c.BroadcastTimeout = time.Duration(c.BroadcastTimeoutSeconds) * time.Second

	if c.MediaMaxBytes <= 0 {
		return fmt.Errorf("invalid media_max_bytes (must be positive)")
	}
	if c.LogBufferSize <= 0 {
		return fmt.Errorf("invalid log_buffer_size (must be positive)")
	}
	if c.RequestDelayMs < 0 {
		c.RequestDelayMs = 0
	}
	if c.FetchRetries < 0 {
		c.FetchRetries = 0
	}

	c.BlossomServers = SplitList(c.BlossomServersRaw)
	if len(c.BlossomServers) == 0 {
		return fmt.Errorf("blossom_servers must list at least one server")
	}
	c.DefaultEndpoints = SplitList(c.DefaultEndpointsRaw)
	return nil
}

// SplitList splits a comma or whitespace separated list, dropping empty items.
func SplitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
