package main

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/veechar/internal/listing"
	"github.com/desertthunder/veechar/internal/playback"
	"github.com/desertthunder/veechar/internal/repositories"
	"github.com/desertthunder/veechar/internal/services"
	"github.com/desertthunder/veechar/internal/shared"
	"github.com/desertthunder/veechar/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlayerFactory builds the media player used by the play and tui commands.
type PlayerFactory func(config *shared.Config, logger *log.Logger) (playback.Player, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	archive    listing.Fetcher
	browser    *listing.Browser
	newPlayer  PlayerFactory

	db    *sql.DB
	store *repositories.Store
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Archive    listing.Fetcher
	Player     PlayerFactory
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Archive == nil {
		opts.Archive = services.NewArchiveServiceFromConfig(opts.Config)
	}
	if opts.Player == nil {
		opts.Player = launcherPlayer
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		archive:    opts.Archive,
		newPlayer:  opts.Player,
	}
	r.browser = listing.NewBrowser(listing.NewCache(), r.archive, shared.WithLogger(r.logger, "component", "listing"))
	return r
}

func launcherPlayer(config *shared.Config, logger *log.Logger) (playback.Player, error) {
	return playback.NewLauncher(playback.LauncherOptions{
		Command:   config.Player.Command,
		Args:      config.Player.Args,
		StartFlag: config.Player.StartFlag,
		Logger:    logger,
	})
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, browseCommand, downloadCommand, downloadsCommand, playCommand, favoritesCommand, trackCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by the runner and the components it builds from now on.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
	r.browser = listing.NewBrowser(r.browser.Cache(), r.archive, shared.WithLogger(l, "component", "listing"))
}

func (r *Runner) configFile() string {
	if r.configPath == "" {
		return "config.toml"
	}
	return r.configPath
}

// openStore opens the database on first use, applying pending migrations.
func (r *Runner) openStore() (*repositories.Store, error) {
	if r.store != nil {
		return r.store, nil
	}

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.db = db
	r.store = repositories.NewStore(db, r.config.DownloadsPath(), shared.WithLogger(r.logger, "component", "store"))
	return r.store, nil
}

// newOrchestrator wires an orchestrator to an HTTP transport using the storage settings.
func (r *Runner) newOrchestrator() *tasks.Orchestrator {
	logger := shared.WithLogger(r.logger, "component", "downloads")
	transport := tasks.NewHTTPTransport(tasks.HTTPOptions{
		TempDir:   r.config.TempPath(),
		UserAgent: r.config.Archive.UserAgent,
		Client:    r.httpClient,
		Logger:    logger,
	})
	return tasks.NewOrchestrator(tasks.Options{
		DownloadsDir: r.config.DownloadsPath(),
		Transport:    transport,
		GracePeriod:  r.config.GracePeriod(),
		Logger:       logger,
	})
}

// newSession starts a playback session over the configured player.
func (r *Runner) newSession(store *repositories.Store) (*playback.Session, error) {
	logger := shared.WithLogger(r.logger, "component", "playback")
	player, err := r.newPlayer(r.config, logger)
	if err != nil {
		return nil, err
	}
	return playback.NewSession(playback.SessionOptions{
		Player:       player,
		Store:        store,
		DownloadsDir: r.config.DownloadsPath(),
		SettleDelay:  r.config.SettleDelay(),
		Logger:       logger,
	}), nil
}

// Close releases the database handle.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	r.store = nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
