package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/veechar/internal/listing"
	"github.com/desertthunder/veechar/internal/models"
	"github.com/desertthunder/veechar/internal/services"
	"github.com/desertthunder/veechar/internal/shared"
	"github.com/urfave/cli/v3"
)

// Browse prints the listing of an archive folder.
func (r *Runner) Browse(ctx context.Context, cmd *cli.Command) error {
	path := strings.TrimSpace(cmd.StringArg("path"))

	var (
		items []models.AudioItem
		err   error
	)
	switch {
	case path == "":
		items = services.RootFolders()
	case cmd.Bool("refresh"):
		items, err = r.browser.Refresh(ctx, path)
	default:
		items, err = r.browser.Open(ctx, path)
	}
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", path, err)
	}

	if query := cmd.String("filter"); query != "" {
		items = listing.Filter(items, query)
	}

	if cmd.Bool("json") {
		return r.writeJSON(items, cmd.Bool("pretty"))
	}

	title := path
	if title == "" {
		title = "Gurmat Veechar"
	}
	r.writePlainHeader(title)
	if len(items) == 0 {
		r.writePlain("(empty)\n")
		return nil
	}

	var folders, tracks int
	for _, item := range items {
		if item.IsFolder() {
			folders++
			r.writePlain("▸ %s\n    %s\n", item.Name, item.URL)
		} else {
			tracks++
			r.writePlain("♪ %s\n    %s\n", item.Name, item.URL)
		}
	}
	r.writePlainln("%d folders, %d tracks", folders, tracks)
	return nil
}

// Track prints the stored record for a track URL.
func (r *Runner) Track(ctx context.Context, cmd *cli.Command) error {
	url := strings.TrimSpace(cmd.StringArg("url"))
	if url == "" {
		return fmt.Errorf("%w: track URL is required", shared.ErrMissingArgument)
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}

	track, err := store.GetTrack(url)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(track, true)
	}

	r.writePlainHeader(track.Name)
	r.writePlain("URL:         %s\n", track.URL)
	r.writePlain("Folder:      %s\n", track.Folder())
	r.writePlain("Position:    %s / %s\n", shared.FormatDuration(track.Position), shared.FormatDuration(track.Duration))
	if track.LastPlayedAt != nil {
		r.writePlain("Last played: %s\n", track.LastPlayedAt.Local().Format("2006-01-02 15:04"))
	}
	if track.Downloaded {
		local, _ := store.LocalFile(track)
		r.writePlain("Downloaded:  %s (%.1f MB)\n", local, track.SizeMB())
	} else {
		r.writePlain("Downloaded:  no\n")
	}
	return nil
}
