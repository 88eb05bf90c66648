package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type RemoteDriver string

const (
	RemoteDriverPostgres RemoteDriver = "postgres"
	RemoteDriverSQLite   RemoteDriver = "sqlite" // Single-device demo and tests
)

type (
	Config struct {
		HTTP
		Global
		Log
		Database
		Remote
		Images
		S3
		Connectivity
		Tasks
		Sweep
		Session
	}

	HTTP struct {
		Port int32  `validate:"gt=0,lt=65536"`
		Host string `validate:"required"`
	}
	Global struct {
		ShutdownTimeoutInSeconds int `validate:"gte=0"`
	}
	Log struct {
		Level  string `validate:"oneof=debug info warn error"`
		Format string `validate:"oneof=console json"`
	}
	Database struct {
		Path string `validate:"required"` // Local favorites cache (sqlite)
	}
	Remote struct {
		Driver       RemoteDriver  `validate:"oneof=postgres sqlite"`
		DSN          string        `validate:"required"`
		PollInterval time.Duration `validate:"gt=0"` // Subscription re-query interval
		TxTimeout    time.Duration `validate:"gt=0"`
		MaxRetries   int           `validate:"gte=0"`
		RetryDelay   time.Duration `validate:"gte=0"`
		Notify       bool          // Postgres LISTEN/NOTIFY change feed
	}
	Images struct {
		Dir             string        // Defaults to <database dir>/recipe_images
		DownloadTimeout time.Duration `validate:"gt=0"`
		Workers         int           `validate:"gt=0"` // Used when the task queue is disabled
	}
	S3 struct {
		Region      string
		Endpoint    string // Custom endpoint (MinIO, localstack)
		AccessKey   string
		SecretKey   string
		PresignTTL  time.Duration `validate:"gt=0"`
		UsePathLike bool
	}
	Connectivity struct {
		ProbeURL  string        // HTTP endpoint checked for reachability
		ProbeAddr string        // host:port dialled when ProbeURL is empty
		Schedule  string        `validate:"required"` // Cron format, e.g. "@every 10s"
		Timeout   time.Duration `validate:"gt=0"`
	}
	Tasks struct {
		Enabled         bool // Persistent image queue; inline workers otherwise
		Workers         int  `validate:"gt=0"`
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Sweep struct {
		Enabled  bool
		Schedule string // Cron format: "0 * * * *" = hourly
	}
	Session struct {
		UserID string // Active user at startup; empty means signed out
	}
)

var validate = validator.New()

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ImageDir returns the configured image directory, or a directory next to
// the local database when none is set.
func (c *Config) ImageDir() string {
	if c.Images.Dir != "" {
		return c.Images.Dir
	}
	return filepath.Join(filepath.Dir(c.Database.Path), DefaultImageDirName)
}

func NewConfig() *Config {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8189)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("database_path", DefaultDatabasePath)

	// Remote document store defaults
	v.SetDefault("remote_driver", string(RemoteDriverSQLite))
	v.SetDefault("remote_dsn", DefaultRemoteDSN)
	v.SetDefault("remote_poll_interval", "5s")
	v.SetDefault("remote_tx_timeout", "10s")
	v.SetDefault("remote_max_retries", 5)
	v.SetDefault("remote_retry_delay", "50ms")
	v.SetDefault("remote_notify", true)

	// Image cache defaults
	v.SetDefault("images_dir", "")
	v.SetDefault("images_download_timeout", "30s")
	v.SetDefault("images_workers", 4)

	// S3 defaults
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_presign_ttl", "15m")
	v.SetDefault("s3_use_path_style", false)

	// Connectivity defaults
	v.SetDefault("connectivity_probe_url", "")
	v.SetDefault("connectivity_probe_addr", "")
	v.SetDefault("connectivity_schedule", "@every 10s")
	v.SetDefault("connectivity_timeout", "3s")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	// Orphan image sweep
	v.SetDefault("sweep_enabled", true)
	v.SetDefault("sweep_schedule", "0 * * * *")

	v.SetDefault("session_user_id", "")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Remote: Remote{
			Driver:       RemoteDriver(v.GetString("REMOTE_DRIVER")),
			DSN:          v.GetString("REMOTE_DSN"),
			PollInterval: v.GetDuration("REMOTE_POLL_INTERVAL"),
			TxTimeout:    v.GetDuration("REMOTE_TX_TIMEOUT"),
			MaxRetries:   v.GetInt("REMOTE_MAX_RETRIES"),
			RetryDelay:   v.GetDuration("REMOTE_RETRY_DELAY"),
			Notify:       v.GetBool("REMOTE_NOTIFY"),
		},
		Images: Images{
			Dir:             v.GetString("IMAGES_DIR"),
			DownloadTimeout: v.GetDuration("IMAGES_DOWNLOAD_TIMEOUT"),
			Workers:         v.GetInt("IMAGES_WORKERS"),
		},
		S3: S3{
			Region:      v.GetString("S3_REGION"),
			Endpoint:    v.GetString("S3_ENDPOINT"),
			AccessKey:   v.GetString("S3_ACCESS_KEY"),
			SecretKey:   v.GetString("S3_SECRET_KEY"),
			PresignTTL:  v.GetDuration("S3_PRESIGN_TTL"),
			UsePathLike: v.GetBool("S3_USE_PATH_STYLE"),
		},
		Connectivity: Connectivity{
			ProbeURL:  v.GetString("CONNECTIVITY_PROBE_URL"),
			ProbeAddr: v.GetString("CONNECTIVITY_PROBE_ADDR"),
			Schedule:  v.GetString("CONNECTIVITY_SCHEDULE"),
			Timeout:   v.GetDuration("CONNECTIVITY_TIMEOUT"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Sweep: Sweep{
			Enabled:  v.GetBool("SWEEP_ENABLED"),
			Schedule: v.GetString("SWEEP_SCHEDULE"),
		},
		Session: Session{
			UserID: v.GetString("SESSION_USER_ID"),
		},
	}
}
