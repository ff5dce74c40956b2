package shared

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Archive   ArchiveConfig   `toml:"archive"`
	Storage   StorageConfig   `toml:"storage"`
	Database  DatabaseConfig  `toml:"database"`
	Player    PlayerConfig    `toml:"player"`
	Downloads DownloadsConfig `toml:"downloads"`
	Logging   LoggingConfig   `toml:"logging"`
}

// ArchiveConfig describes the remote audio archive.
type ArchiveConfig struct {
	BaseURL           string  `toml:"base_url"`
	UserAgent         string  `toml:"user_agent"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// StorageConfig locates downloaded files. DownloadsDir and TempDir are relative to Root.
type StorageConfig struct {
	Root         string `toml:"root"`
	DownloadsDir string `toml:"downloads_dir"`
	TempDir      string `toml:"temp_dir"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// PlayerConfig selects the external media player.
type PlayerConfig struct {
	Command   string   `toml:"command"`
	Args      []string `toml:"args"`
	StartFlag string   `toml:"start_flag"`
	SettleMS  int      `toml:"settle_ms"`
}

// DownloadsConfig tunes the download orchestrator.
type DownloadsConfig struct {
	GraceSeconds int `toml:"grace_seconds"`
}

// LoggingConfig sets the log level and the file used while the TUI owns the terminal.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// DownloadsPath is the absolute-or-cwd-relative directory holding finished downloads.
func (c *Config) DownloadsPath() string {
	return filepath.Join(c.Storage.Root, c.Storage.DownloadsDir)
}

// TempPath is the directory holding partial transfers.
func (c *Config) TempPath() string {
	return filepath.Join(c.Storage.Root, c.Storage.TempDir)
}

// Timeout returns the archive request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Archive.TimeoutSeconds) * time.Second
}

// GracePeriod is how long finished or failed downloads stay visible.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.Downloads.GraceSeconds) * time.Second
}

// SettleDelay is the pause between the player reporting ready and the resume seek.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Player.SettleMS) * time.Millisecond
}

// Validate reports configuration that would leave a component unusable.
func (c *Config) Validate() error {
	if c.Archive.BaseURL == "" {
		return fmt.Errorf("%w: archive.base_url is empty", ErrInvalidConfig)
	}
	if c.Storage.Root == "" || c.Storage.DownloadsDir == "" {
		return fmt.Errorf("%w: storage.root and storage.downloads_dir are required", ErrInvalidConfig)
	}
	if filepath.IsAbs(c.Storage.DownloadsDir) {
		return fmt.Errorf("%w: storage.downloads_dir must be relative to storage.root", ErrInvalidConfig)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
