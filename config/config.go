// Package config loads and validates the server configuration.
// Configuration is read from a YAML file via viper, with environment
// variable overrides (prefix PHOTOSYNC_) and defaults matching a
// single-operator deployment under /srv/photosync.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/weiwangfds/photosync/internal/logger"
)

// Config is the root configuration object injected into the services.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Thumbnail ThumbnailConfig `mapstructure:"thumbnail"`
	Watcher   WatcherConfig   `mapstructure:"watcher"`
	Log       logger.Config   `mapstructure:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address      string `mapstructure:"address"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // seconds
	EnableSSL    bool   `mapstructure:"enable_ssl"`
	SSLCertFile  string `mapstructure:"ssl_cert_file"`
	SSLKeyFile   string `mapstructure:"ssl_key_file"`
}

// StorageConfig holds every on-disk location the server owns.
type StorageConfig struct {
	// MediaDir is the root of the synced media store.
	MediaDir string `mapstructure:"media_dir"`
	// IndexFile is the JSON catalog persisted over MediaDir.
	IndexFile string `mapstructure:"index_file"`
	// AccountsFile is the JSON account store.
	AccountsFile string `mapstructure:"accounts_file"`
	// SessionsFile is the JSON token store.
	SessionsFile string `mapstructure:"sessions_file"`
	// QuarantineDir receives deleted files instead of unlinking them.
	QuarantineDir string `mapstructure:"quarantine_dir"`
	// ThumbnailDir holds derived thumbnail artifacts.
	ThumbnailDir string `mapstructure:"thumbnail_dir"`
	// TempDir holds short-lived artifacts such as thumbnail bundles.
	TempDir string `mapstructure:"temp_dir"`
	// HashBufferSize is the chunk size for streaming content hashes.
	HashBufferSize int `mapstructure:"hash_buffer_size"`
	// HashKey keys the content digest. Empty degrades to plain SHA-256.
	HashKey string `mapstructure:"hash_key"`
}

// DatabaseConfig holds the embedded store settings (change feed, mirror).
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// AuthConfig holds session and credential settings.
type AuthConfig struct {
	// TokenExpiration is the sliding session lifetime in seconds.
	TokenExpiration int64 `mapstructure:"token_expiration"`
	// MaxTokens bounds concurrent sessions per account.
	MaxTokens int `mapstructure:"max_tokens"`
	// IdentityFile stores the age identity used to encrypt recoverable
	// credential material. Generated on first start when absent.
	IdentityFile string `mapstructure:"identity_file"`
}

// ThumbnailConfig holds thumbnail generation settings.
type ThumbnailConfig struct {
	// DefaultSize is the edge length used when a request asks for size 0.
	DefaultSize int `mapstructure:"default_size"`
	// FFmpegPath and FFprobePath locate the video frame extractor.
	FFmpegPath  string `mapstructure:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path"`
}

// WatcherConfig controls background indexing of the media store.
type WatcherConfig struct {
	// Enabled turns on the fsnotify watcher over the media directory.
	Enabled bool `mapstructure:"enabled"`
	// ReindexSchedule is an optional cron expression for periodic full
	// reindex runs. Empty disables the schedule.
	ReindexSchedule string `mapstructure:"reindex_schedule"`
}

// Load reads the configuration from path. An empty path falls back to
// ./photosync.yaml and /etc/photosync/photosync.yaml; a missing file is not
// an error, defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("photosync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/photosync")
	}

	v.SetEnvPrefix("PHOTOSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 60)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.enable_ssl", false)

	v.SetDefault("storage.media_dir", "/srv/photosync/storage")
	v.SetDefault("storage.index_file", "/srv/photosync/index.json")
	v.SetDefault("storage.accounts_file", "/srv/photosync/accounts.json")
	v.SetDefault("storage.sessions_file", "/srv/photosync/auth.json")
	v.SetDefault("storage.quarantine_dir", "/srv/photosync/quarantine")
	v.SetDefault("storage.thumbnail_dir", "/srv/photosync/thumbnails")
	v.SetDefault("storage.temp_dir", "/srv/photosync/temp")
	v.SetDefault("storage.hash_buffer_size", 65536)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "/srv/photosync/changes.db")

	v.SetDefault("auth.token_expiration", 31536000) // one year
	v.SetDefault("auth.max_tokens", 32)
	v.SetDefault("auth.identity_file", "/srv/photosync/identity.age")

	v.SetDefault("thumbnail.default_size", 128)
	v.SetDefault("thumbnail.ffmpeg_path", "ffmpeg")
	v.SetDefault("thumbnail.ffprobe_path", "ffprobe")

	v.SetDefault("watcher.enabled", true)
	v.SetDefault("watcher.reindex_schedule", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "console")
	v.SetDefault("log.file_path", "logs/photosync.log")
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}
	if cfg.Server.EnableSSL && (cfg.Server.SSLCertFile == "" || cfg.Server.SSLKeyFile == "") {
		return fmt.Errorf("ssl enabled but cert or key file missing")
	}
	if cfg.Auth.MaxTokens < 1 {
		return fmt.Errorf("auth.max_tokens must be at least 1, got %d", cfg.Auth.MaxTokens)
	}
	if cfg.Storage.HashBufferSize < 1024 {
		return fmt.Errorf("storage.hash_buffer_size too small: %d", cfg.Storage.HashBufferSize)
	}
	if cfg.Thumbnail.DefaultSize < 16 {
		return fmt.Errorf("thumbnail.default_size too small: %d", cfg.Thumbnail.DefaultSize)
	}
	return nil
}
