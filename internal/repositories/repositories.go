package repositories

import (
	"database/sql"
	"time"

	"github.com/charmbracelet/log"
)

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// Store bundles the repositories that share one database connection.
type Store struct {
	*TrackRepository
	*FavoriteRepository
}

// NewStore creates a Store whose track reads reconcile against downloadsDir.
func NewStore(db *sql.DB, downloadsDir string, logger *log.Logger) *Store {
	return &Store{
		TrackRepository:    NewTrackRepository(db, downloadsDir, logger),
		FavoriteRepository: NewFavoriteRepository(db),
	}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
