package main

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/desertthunder/veechar/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// FavoritesList prints the starred folders, newest first.
func (r *Runner) FavoritesList(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	favorites, err := store.ListFavorites()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(favorites, true)
	}

	r.writePlainHeader("Favorites")
	if len(favorites) == 0 {
		r.writePlain("No favorites yet. Star one with 'veechar favorites toggle <path>'.\n")
		return nil
	}
	for _, f := range favorites {
		r.writePlain("♥ %s\n    %s (added %s)\n", f.Name, f.Path, humanize.Time(f.AddedAt))
	}
	return nil
}

// FavoritesToggle stars or unstars a folder.
func (r *Runner) FavoritesToggle(ctx context.Context, cmd *cli.Command) error {
	folder := strings.TrimSpace(cmd.StringArg("path"))
	if folder == "" {
		return fmt.Errorf("%w: folder path is required", shared.ErrMissingArgument)
	}

	name := cmd.String("name")
	if name == "" {
		name = strings.ReplaceAll(path.Base(folder), "_", " ")
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}

	starred, err := store.ToggleFavorite(folder, name)
	if err != nil {
		return err
	}

	if starred {
		r.writePlain("♥ Added %s to favorites\n", name)
	} else {
		r.writePlain("Removed %s from favorites\n", name)
	}
	return nil
}
