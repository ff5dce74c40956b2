package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/veechar/internal/models"
	"github.com/desertthunder/veechar/internal/shared"
	"github.com/desertthunder/veechar/internal/tasks"
	"github.com/urfave/cli/v3"
)

const playPollInterval = 250 * time.Millisecond

// Play plays one track from its saved position until it ends or the command is interrupted.
// The position is written on the way out either way.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	url := strings.TrimSpace(cmd.StringArg("url"))
	if url == "" {
		return fmt.Errorf("%w: track URL is required", shared.ErrMissingArgument)
	}
	name := cmd.String("name")
	if name == "" {
		name = strings.TrimSuffix(tasks.FileName(url), ".mp3")
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}

	session, err := r.newSession(store)
	if err != nil {
		return err
	}
	defer session.Close()

	if err := session.Load(ctx, models.AudioItem{Name: name, Kind: models.KindAudio, URL: url}); err != nil {
		return err
	}

	state := session.State()
	r.writePlain("▶ %s (%s)\n", state.Name, state.Source)
	if state.Position > 0 {
		r.writePlain("  resuming at %s\n", shared.FormatDuration(state.Position))
	}

	ticker := time.NewTicker(playPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			state := session.State()
			r.writePlain("\n⏸ stopped at %s\n", shared.FormatDuration(state.Position))
			return nil
		case <-ticker.C:
			state := session.State()
			if !state.Playing {
				r.writePlain("\n✓ finished\n")
				return nil
			}
			r.writePlain("\r  %s / %s", shared.FormatDuration(state.Position), shared.FormatDuration(state.Duration))
		}
	}
}
