package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Archive.BaseURL != "https://gurmatveechar.com" {
			t.Errorf("expected archive base URL https://gurmatveechar.com, got %s", config.Archive.BaseURL)
		}

		if config.Database.Path != "./veechar.db" {
			t.Errorf("expected database path ./veechar.db, got %s", config.Database.Path)
		}

		if config.Player.Command != "mpv" {
			t.Errorf("expected player command mpv, got %s", config.Player.Command)
		}

		if got := config.GracePeriod(); got != 2*time.Second {
			t.Errorf("expected grace period 2s, got %v", got)
		}

		if got := config.DownloadsPath(); got != filepath.Join("data", "Downloads") {
			t.Errorf("expected downloads path data/Downloads, got %s", got)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[archive]
base_url = "http://localhost:9000"
requests_per_second = 10.0

[storage]
root = "/var/lib/veechar"
downloads_dir = "Offline"

[player]
command = "vlc"
settle_ms = 250
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Archive.BaseURL != "http://localhost:9000" {
			t.Errorf("expected base URL http://localhost:9000, got %s", config.Archive.BaseURL)
		}

		if config.DownloadsPath() != filepath.Join("/var/lib/veechar", "Offline") {
			t.Errorf("unexpected downloads path %s", config.DownloadsPath())
		}

		if config.SettleDelay() != 250*time.Millisecond {
			t.Errorf("expected settle delay 250ms, got %v", config.SettleDelay())
		}

		if config.Database.Path != "./veechar.db" {
			t.Errorf("missing keys should keep defaults, got database path %s", config.Database.Path)
		}
	})

	t.Run("LoadConfig Rejects Absolute Downloads Dir", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := "[storage]\nroot = \"./data\"\ndownloads_dir = \"/abs/Downloads\"\n"
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadOrDefault Missing File", func(t *testing.T) {
		config, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if config.Archive.BaseURL == "" {
			t.Error("expected defaults for a missing config file")
		}
	})
}
