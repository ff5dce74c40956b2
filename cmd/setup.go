package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/veechar/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates the config file when missing, the storage directories and the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	for _, dir := range []string{config.DownloadsPath(), config.TempPath()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: failed to create %s: %v", shared.ErrStorage, dir, err)
		}
	}

	r.Close()
	r.config = config

	r.logger.Info("initializing database", "path", config.Database.Path)
	if _, err := r.openStore(); err != nil {
		return err
	}

	versions, err := shared.AppliedVersions(r.db)
	if err != nil {
		return err
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Downloads: %s\n", config.DownloadsPath())
	r.writePlain("✓ Database: %s (migrations %v)\n", config.Database.Path, versions)
	return nil
}
