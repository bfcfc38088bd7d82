// SPDX-License-Identifier: MIT

// Package config loads and validates the daemon configuration from the
// environment, with an optional YAML overlay file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	ListenAddr string `env:"BOTD_LISTEN" yaml:"listen"`
	LogLevel   string `env:"LOG_LEVEL" yaml:"logLevel"`

	// RateLimit bounds join requests per remote IP per minute.
	RateLimit int `env:"BOTD_RATE_LIMIT" yaml:"rateLimit"`

	Session  SessionConfig  `yaml:"session"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Store    StoreConfig    `yaml:"store"`
	Restream RestreamConfig `yaml:"restream"`
	Notify   NotifyConfig   `yaml:"notify"`
	Bridge   BridgeConfig   `yaml:"bridge"`
}

// SessionConfig bounds one session's lifecycle.
type SessionConfig struct {
	LobbyWaitCeiling     Duration `env:"BOTD_LOBBY_WAIT" yaml:"lobbyWaitCeiling"`
	MaxRecordingDuration Duration `env:"BOTD_MAX_DURATION" yaml:"maxRecordingDuration"`
	StopTimeout          Duration `env:"BOTD_STOP_TIMEOUT" yaml:"stopTimeout"`
	MaxRetries           int      `env:"BOTD_MAX_RETRIES" yaml:"maxRetries"`
	SpoolDir             string   `env:"BOTD_SPOOL_DIR" yaml:"spoolDir"`
	ContentType          string   `env:"BOTD_CONTENT_TYPE" yaml:"contentType"`
}

// RedisConfig covers both the ingest queue and the notify queue.
type RedisConfig struct {
	Addr     string `env:"BOTD_REDIS_ADDR" yaml:"addr"`
	Password string `env:"BOTD_REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"BOTD_REDIS_DB" yaml:"db"`

	// IngestList is the FIFO list join requests are consumed from.
	// Empty disables the queue ingestion path.
	IngestList string `env:"BOTD_INGEST_LIST" yaml:"ingestList"`
}

// StorageConfig selects the upload backend.
type StorageConfig struct {
	Backend string `env:"BOTD_STORAGE_BACKEND" yaml:"backend"`
	Root    string `env:"BOTD_STORAGE_ROOT" yaml:"root"`
}

// StoreConfig selects the status store backend.
type StoreConfig struct {
	Backend string `env:"BOTD_STORE_BACKEND" yaml:"backend"`
	Path    string `env:"BOTD_STORE_PATH" yaml:"path"`
}

// RestreamConfig enables the optional live restream sink.
type RestreamConfig struct {
	TargetURL string   `env:"BOTD_RESTREAM_URL" yaml:"targetUrl"`
	BinPath   string   `env:"BOTD_RESTREAM_BIN" yaml:"binPath"`
	QuitGrace Duration `env:"BOTD_RESTREAM_GRACE" yaml:"quitGrace"`
	Buffer    int      `env:"BOTD_RESTREAM_BUFFER" yaml:"buffer"`
}

// NotifyConfig enables the completion notification channels.
type NotifyConfig struct {
	WebhookURL    string   `env:"BOTD_WEBHOOK_URL" yaml:"webhookUrl"`
	WebhookSecret string   `env:"BOTD_WEBHOOK_SECRET" yaml:"webhookSecret"`
	QueueLists    []string `env:"BOTD_NOTIFY_LISTS" envSeparator:"," yaml:"queueLists"`
}

// BridgeConfig points at the automation sidecar.
type BridgeConfig struct {
	URL string `env:"BOTD_BRIDGE_URL" yaml:"url"`
}

// Defaults returns the built-in configuration baseline.
func Defaults() Config {
	return Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		RateLimit:  30,
		Session: SessionConfig{
			LobbyWaitCeiling:     Duration(10 * time.Minute),
			MaxRecordingDuration: Duration(4 * time.Hour),
			StopTimeout:          Duration(30 * time.Second),
			MaxRetries:           3,
			SpoolDir:             "/var/lib/botd/spool",
			ContentType:          "video/webm",
		},
		Redis: RedisConfig{
			IngestList: "botd:join",
		},
		Storage: StorageConfig{
			Backend: "local",
			Root:    "/var/lib/botd/recordings",
		},
		Store: StoreConfig{
			Backend: "memory",
			Path:    "/var/lib/botd/state",
		},
		Restream: RestreamConfig{
			BinPath:   "ffmpeg",
			QuitGrace: Duration(5 * time.Second),
			Buffer:    32,
		},
	}
}

// Load builds the configuration with precedence defaults < file < env.
// path may be empty to skip the YAML overlay.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path) // #nosec G304 -- operator-provided path
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Session.LobbyWaitCeiling <= 0 {
		return errors.New("lobby wait ceiling must be positive")
	}
	if c.Session.MaxRecordingDuration <= 0 {
		return errors.New("max recording duration must be positive")
	}
	if c.Session.MaxRetries < 0 {
		return errors.New("max retries must not be negative")
	}
	if c.Session.SpoolDir == "" {
		return errors.New("spool dir must be set")
	}
	if c.Bridge.URL == "" {
		return errors.New("bridge url must be set")
	}
	if c.Store.Backend == "badger" && c.Store.Path == "" {
		return errors.New("store path must be set for the badger backend")
	}
	// The ingest list default is harmless without an addr; queue
	// ingestion simply stays off. Notify lists are explicit opt-ins.
	if len(c.Notify.QueueLists) > 0 && c.Redis.Addr == "" {
		return errors.New("redis addr must be set when queue notifications are enabled")
	}
	return nil
}
