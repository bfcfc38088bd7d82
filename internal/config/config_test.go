// SPDX-License-Identifier: MIT

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetkit/botd/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("BOTD_BRIDGE_URL", "http://127.0.0.1:9222")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 10*time.Minute, cfg.Session.LobbyWaitCeiling.Std())
	assert.Equal(t, 4*time.Hour, cfg.Session.MaxRecordingDuration.Std())
	assert.Equal(t, 3, cfg.Session.MaxRetries)
	assert.Equal(t, "video/webm", cfg.Session.ContentType)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "botd:join", cfg.Redis.IngestList)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	t.Setenv("BOTD_BRIDGE_URL", "http://127.0.0.1:9222")

	path := filepath.Join(t.TempDir(), "botd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9090"
session:
  maxRecordingDuration: 2h
  maxRetries: 5
store:
  backend: badger
  path: /tmp/botd-state
`), 0o640))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 2*time.Hour, cfg.Session.MaxRecordingDuration.Std())
	assert.Equal(t, 5, cfg.Session.MaxRetries)
	assert.Equal(t, "badger", cfg.Store.Backend)

	// Untouched values keep their defaults.
	assert.Equal(t, 10*time.Minute, cfg.Session.LobbyWaitCeiling.Std())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("BOTD_BRIDGE_URL", "http://127.0.0.1:9222")
	t.Setenv("BOTD_LISTEN", ":7070")
	t.Setenv("BOTD_MAX_RETRIES", "1")
	t.Setenv("BOTD_NOTIFY_LISTS", "events:a,events:b")
	t.Setenv("BOTD_REDIS_ADDR", "127.0.0.1:6379")

	path := filepath.Join(t.TempDir(), "botd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9090\"\n"), 0o640))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ListenAddr, "environment must win over the file")
	assert.Equal(t, 1, cfg.Session.MaxRetries)
	assert.Equal(t, []string{"events:a", "events:b"}, cfg.Notify.QueueLists)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/does/not/exist.yaml")
	assert.ErrorContains(t, err, "read config file")
}

func TestValidate(t *testing.T) {
	base := func() config.Config {
		c := config.Defaults()
		c.Bridge.URL = "http://127.0.0.1:9222"
		return c
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing bridge url", func(t *testing.T) {
		c := base()
		c.Bridge.URL = ""
		assert.ErrorContains(t, c.Validate(), "bridge url")
	})

	t.Run("non-positive duration ceiling", func(t *testing.T) {
		c := base()
		c.Session.MaxRecordingDuration = 0
		assert.ErrorContains(t, c.Validate(), "max recording duration")
	})

	t.Run("negative retries", func(t *testing.T) {
		c := base()
		c.Session.MaxRetries = -1
		assert.ErrorContains(t, c.Validate(), "max retries")
	})

	t.Run("badger without path", func(t *testing.T) {
		c := base()
		c.Store.Backend = "badger"
		c.Store.Path = ""
		assert.ErrorContains(t, c.Validate(), "store path")
	})

	t.Run("notify lists without redis addr", func(t *testing.T) {
		c := base()
		c.Redis.Addr = ""
		c.Notify.QueueLists = []string{"events:a"}
		assert.ErrorContains(t, c.Validate(), "redis addr")
	})
}
