package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/desertthunder/veechar/internal/formatter"
	"github.com/desertthunder/veechar/internal/shared"
	"github.com/desertthunder/veechar/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

const progressInterval = 250 * time.Millisecond

// Download fetches one track, rendering progress until it completes, fails or is interrupted.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	url := strings.TrimSpace(cmd.StringArg("url"))
	if url == "" {
		return fmt.Errorf("%w: track URL is required", shared.ErrMissingArgument)
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}

	orchestrator := r.newOrchestrator()
	defer orchestrator.Close()

	sub := orchestrator.Subscribe()
	defer sub.Unsubscribe()

	if err := orchestrator.Start(url, cmd.String("name")); err != nil {
		return err
	}

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(30))
	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := orchestrator.Cancel(url); err != nil {
				r.logger.Debug("cancel after interrupt", "error", err)
			}
			r.writePlain("\n")
			return ctx.Err()

		case c, ok := <-sub.C():
			if !ok {
				return fmt.Errorf("%w: download orchestrator stopped", shared.ErrServiceUnavailable)
			}
			if c.URL != url {
				continue
			}
			if !tasks.PersistCompletion(c, store, r.logger) {
				r.logger.Warn("download saved but not recorded", "url", url)
			}
			r.writePlain("\r%s 100%%\n", bar.ViewAs(1))
			r.writePlain("✓ Saved %s (%s)\n", filepath.Join(r.config.DownloadsPath(), c.RelativePath), humanize.IBytes(uint64(c.SizeBytes)))
			return nil

		case <-ticker.C:
			task, ok := orchestrator.Progress(url)
			if !ok {
				continue
			}
			if task.State == tasks.StateFailed {
				r.writePlain("\n")
				return fmt.Errorf("download of %s failed: %s", task.Name, task.Err)
			}
			r.writePlain("\r%s %s", bar.ViewAs(task.Progress), progressLabel(task))
		}
	}
}

func progressLabel(task tasks.Task) string {
	written := humanize.IBytes(uint64(max(task.WrittenBytes, 0)))
	if task.ExpectedBytes <= 0 {
		return written
	}
	return fmt.Sprintf("%3.0f%% %s / %s", task.Progress*100, written, humanize.IBytes(uint64(task.ExpectedBytes)))
}

// DownloadsList prints or exports the downloaded tracks.
func (r *Runner) DownloadsList(ctx context.Context, cmd *cli.Command) error {
	store, err := r.openStore()
	if err != nil {
		return err
	}

	tracks, err := store.ListDownloaded()
	if err != nil {
		return err
	}

	format, group := cmd.String("format"), cmd.Bool("group")
	if output := cmd.String("output"); output != "" {
		if err := formatter.WriteExport(tracks, format, output, group); err != nil {
			return err
		}
		r.writePlain("✓ Exported %s to %s\n", formatter.Summary(tracks), output)
		return nil
	}

	data, err := formatter.Export(tracks, format, group)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// DownloadsDelete removes a downloaded file and clears the record's download state.
func (r *Runner) DownloadsDelete(ctx context.Context, cmd *cli.Command) error {
	url := strings.TrimSpace(cmd.StringArg("url"))
	if url == "" {
		return fmt.Errorf("%w: track URL is required", shared.ErrMissingArgument)
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}
	if err := store.DeleteDownload(url); err != nil {
		return err
	}

	r.writePlain("✓ Deleted download of %s\n", url)
	return nil
}
