package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/veechar/internal/services"
	"github.com/desertthunder/veechar/internal/shared"
	"github.com/desertthunder/veechar/internal/tasks"
	"github.com/desertthunder/veechar/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive archive browser.
//
// Completed downloads are recorded in the background for as long as the program runs. A missing
// media player disables playback but not browsing or downloads.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Logging.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Logging.Level))
	r.SetLogger(fileLogger)

	store, err := r.openStore()
	if err != nil {
		return err
	}

	orchestrator := r.newOrchestrator()
	defer orchestrator.Close()

	sub := orchestrator.Subscribe()
	defer sub.Unsubscribe()

	persistCtx, stopPersist := context.WithCancel(ctx)
	defer stopPersist()
	go tasks.PersistCompletions(persistCtx, sub, store, shared.WithLogger(r.logger, "component", "downloads"))

	opts := ui.Options{
		Browser:   r.browser,
		Downloads: orchestrator,
		Favorites: store,
		Tracks:    store,
		Roots:     services.RootFolders(),
		Logger:    shared.WithLogger(r.logger, "component", "ui"),
	}

	session, err := r.newSession(store)
	if err != nil {
		r.logger.Warn("playback disabled", "error", err)
	} else {
		defer session.Close()
		opts.Session = session
	}

	model := ui.NewModel(ctx, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
