package tasks

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/veechar/internal/models"
)

// PersistCompletions marks each completed download in store until ctx ends or sub closes.
//
// Store errors are logged and dropped; the file stays on disk and the next download of the same
// URL writes the record again.
func PersistCompletions(ctx context.Context, sub *Subscription, store models.TrackStore, logger *log.Logger) {
	if logger == nil {
		logger = log.Default()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-sub.C():
			if !ok {
				return
			}
			PersistCompletion(c, store, logger)
		}
	}
}

// PersistCompletion creates the record for c if needed and marks it downloaded. It reports whether
// the record was written.
func PersistCompletion(c Completion, store models.TrackStore, logger *log.Logger) bool {
	if logger == nil {
		logger = log.Default()
	}
	if _, err := store.CreateOrGetTrack(c.URL, c.Name); err != nil {
		logger.Error("failed to load track record", "url", c.URL, "error", err)
		return false
	}
	if err := store.MarkDownloaded(c.URL, c.RelativePath, c.SizeBytes); err != nil {
		logger.Error("failed to mark track downloaded", "url", c.URL, "error", err)
		return false
	}
	logger.Debug("download recorded", "url", c.URL, "path", c.RelativePath, "bytes", c.SizeBytes)
	return true
}
