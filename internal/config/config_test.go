package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, int32(8189), cfg.HTTP.Port)
	assert.Equal(t, RemoteDriverSQLite, cfg.Remote.Driver)
	assert.Equal(t, 5*time.Second, cfg.Remote.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.Remote.TxTimeout)
	assert.Equal(t, "@every 10s", cfg.Connectivity.Schedule)
	assert.Equal(t, 30*time.Second, cfg.Images.DownloadTimeout)
	assert.True(t, cfg.Tasks.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig_FromEnv(t *testing.T) {
	t.Setenv("REMOTE_DRIVER", "postgres")
	t.Setenv("REMOTE_DSN", "postgres://localhost/tastier")
	t.Setenv("REMOTE_MAX_RETRIES", "9")
	t.Setenv("SESSION_USER_ID", "alice@example.com")

	cfg := NewConfig()

	assert.Equal(t, RemoteDriverPostgres, cfg.Remote.Driver)
	assert.Equal(t, "postgres://localhost/tastier", cfg.Remote.DSN)
	assert.Equal(t, 9, cfg.Remote.MaxRetries)
	assert.Equal(t, "alice@example.com", cfg.Session.UserID)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cfg := NewConfig()
	cfg.Remote.Driver = "mongo"
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Log.Level = "verbose"
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Images.DownloadTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestImageDir(t *testing.T) {
	cfg := NewConfig()
	cfg.Database.Path = filepath.Join("data", "favorites.sqlite")
	assert.Equal(t, filepath.Join("data", DefaultImageDirName), cfg.ImageDir())

	cfg.Images.Dir = "/var/cache/tastier"
	assert.Equal(t, "/var/cache/tastier", cfg.ImageDir())
}
