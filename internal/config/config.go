// Package config loads the waypoint CLI configuration file.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing default file
// is not an error.
const DefaultPath = "waypoint.yaml"

// Config is the CLI configuration. ${VAR} references are expanded from the
// environment before parsing, so tokens can stay out of the file.
type Config struct {
	Log      Log      `yaml:"log"`
	Realtime Realtime `yaml:"realtime"`
	API      API      `yaml:"api"`
	Redis    Redis    `yaml:"redis"`
	Metrics  Metrics  `yaml:"metrics"`
}

type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type Realtime struct {
	URL       string        `yaml:"url"`
	AccountID string        `yaml:"account_id"`
	UserID    string        `yaml:"user_id"`
	Token     string        `yaml:"token"`
	Reconnect time.Duration `yaml:"reconnect"`
}

type API struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// Redis is optional. Without an address experiences are cached in memory and
// analytics are not queued.
type Redis struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	TTL        time.Duration `yaml:"ttl"`
	QueueKey   string        `yaml:"queue_key"`
	QueueLimit int64         `yaml:"queue_limit"`

	// EncryptionKey is a base64 AES-256 key sealing cached experiences.
	// FallbackKeys still decrypt entries written before a rotation.
	EncryptionKey string   `yaml:"encryption_key"`
	FallbackKeys  []string `yaml:"fallback_keys"`
	// MaskContext lists key patterns whose context values are masked before caching.
	MaskContext []string `yaml:"mask_context"`
}

// Keys decodes the encryption keys. Both results are nil when no key is set.
func (r Redis) Keys() (active []byte, fallback [][]byte, err error) {
	if r.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err = decodeKey(r.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("redis.encryption_key: %w", err)
	}
	for i, k := range r.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("redis.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

type Metrics struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log:      Log{Level: "info"},
		Realtime: Realtime{Reconnect: 5 * time.Second},
		API:      API{Timeout: 15 * time.Second},
		Redis:    Redis{TTL: 10 * time.Minute, QueueKey: "waypoint:events", QueueLimit: 10000},
	}
}

// Load reads path over the defaults. When path is the default and the file
// does not exist, the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Redis.QueueLimit < 0 {
		return fmt.Errorf("redis.queue_limit must not be negative")
	}
	if _, _, err := c.Redis.Keys(); err != nil {
		return err
	}
	return nil
}

// Logger builds the logger described by the Log section.
func (c Config) Logger() *slog.Logger {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.NewWithWriter(os.Stderr, level, c.Log.JSON)
}
