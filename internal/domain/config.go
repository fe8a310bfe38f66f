package domain

import (
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Download     DownloadConfig     `mapstructure:"download"`
	Extractor    ExtractorConfig    `mapstructure:"extractor"`
	Merger       MergerConfig       `mapstructure:"merger"`
	History      HistoryConfig      `mapstructure:"history"`
	Notification NotificationConfig `mapstructure:"notification"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	BaseDir    string        `mapstructure:"base_dir"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// TempDir returns the session working area. Fetched streams land here
// first so partial failures never leave a corrupt file at the
// user-visible destination.
func (c *DownloadConfig) TempDir() string {
	return filepath.Join(c.BaseDir, "tmp")
}

// LogsDir returns the directory for process output logs.
func (c *DownloadConfig) LogsDir() string {
	return filepath.Join(c.BaseDir, "logs")
}

// ExtractorConfig contains metadata extractor configuration
type ExtractorConfig struct {
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// MergerConfig contains muxer configuration
type MergerConfig struct {
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// HistoryConfig contains session history configuration
type HistoryConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	ListLimit    int    `mapstructure:"list_limit"`
}

// NotificationConfig contains notification-related configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Method  string `mapstructure:"method"` // osascript, notify-send, etc.
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8090,
		},
		Download: DownloadConfig{
			BaseDir:    "$HOME/Downloads/dlpal",
			MaxRetries: 0,
			RetryDelay: 5 * time.Second,
		},
		Extractor: ExtractorConfig{
			Binary:  "yt-dlp",
			Timeout: 60 * time.Second,
		},
		Merger: MergerConfig{
			Binary:  "ffmpeg",
			Timeout: 10 * time.Minute,
		},
		History: HistoryConfig{
			DatabasePath: "$HOME/Downloads/dlpal/history.db",
			ListLimit:    50,
		},
		Notification: NotificationConfig{
			Enabled: true,
			Method:  "notify-send",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
