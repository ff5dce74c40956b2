package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/veechar/internal/models"
	"github.com/desertthunder/veechar/internal/shared"
)

const trackColumns = `id, url, name, duration, position, size_bytes, downloaded, local_path,
	last_played_at, downloaded_at, created_at, updated_at`

// TrackRepository handles database operations for track records.
type TrackRepository struct {
	db           *sql.DB
	downloadsDir string
	logger       *log.Logger
	now          func() time.Time
}

// NewTrackRepository creates a new track repository. Stored local paths resolve against downloadsDir.
func NewTrackRepository(db *sql.DB, downloadsDir string, logger *log.Logger) *TrackRepository {
	if logger == nil {
		logger = log.Default()
	}
	return &TrackRepository{db: db, downloadsDir: downloadsDir, logger: logger, now: time.Now}
}

var _ models.TrackStore = (*TrackRepository)(nil)

// GetTrack retrieves the record for url, correcting a stale download flag on the way out.
func (r *TrackRepository) GetTrack(url string) (*models.TrackRecord, error) {
	track, err := r.getByURL(url)
	if err != nil {
		return nil, err
	}
	return r.reconcile(track), nil
}

// CreateOrGetTrack returns the existing record for url or inserts a fresh one.
//
// The insert ignores conflicts so concurrent callers converge on the same row.
func (r *TrackRepository) CreateOrGetTrack(url, name string) (*models.TrackRecord, error) {
	track, err := r.getByURL(url)
	if err == nil {
		return r.reconcile(track), nil
	}
	if !errors.Is(err, shared.ErrTrackNotFound) {
		return nil, err
	}

	track = models.NewTrackRecord(url, name)
	track.ID = shared.GenerateID()
	now := r.now()
	track.CreatedAt, track.UpdatedAt = now, now
	if err := track.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	query := `INSERT INTO tracks (id, url, name, duration, position, size_bytes, downloaded, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, 0, 0, ?, ?)
		ON CONFLICT(url) DO NOTHING`
	if _, err := r.db.Exec(query, track.ID, track.URL, track.Name, track.CreatedAt, track.UpdatedAt); err != nil {
		return nil, fmt.Errorf("%w: failed to create track: %v", shared.ErrPersistence, err)
	}
	return r.getByURL(url)
}

// UpdatePlaybackPosition stores the resume position and stamps the last-played time.
func (r *TrackRepository) UpdatePlaybackPosition(url string, seconds float64) error {
	if seconds < 0 {
		seconds = 0
	}
	now := r.now()
	query := `UPDATE tracks SET position = ?, last_played_at = ?, updated_at = ? WHERE url = ?`
	return r.exec(query, seconds, now, now, url)
}

// UpdateDuration stores the measured track length.
func (r *TrackRepository) UpdateDuration(url string, seconds float64) error {
	if seconds < 0 {
		return fmt.Errorf("%w: negative duration %v", shared.ErrInvalidInput, seconds)
	}
	query := `UPDATE tracks SET duration = ?, updated_at = ? WHERE url = ?`
	return r.exec(query, seconds, r.now(), url)
}

// MarkDownloaded records a finished download. localPath is relative to the downloads directory.
func (r *TrackRepository) MarkDownloaded(url, localPath string, sizeBytes int64) error {
	if localPath == "" || !filepath.IsLocal(localPath) {
		return fmt.Errorf("%w: local path %q must be relative to the downloads directory", shared.ErrInvalidInput, localPath)
	}
	if sizeBytes < 0 {
		sizeBytes = 0
	}
	now := r.now()
	query := `UPDATE tracks SET downloaded = 1, local_path = ?, size_bytes = ?, downloaded_at = ?, updated_at = ?
		WHERE url = ?`
	return r.exec(query, filepath.ToSlash(localPath), sizeBytes, now, now, url)
}

// DeleteDownload removes the backing file, then clears the download state.
//
// A file that is already gone is not an error. The record keeps its flag when removal fails so the
// store never claims less than the filesystem holds.
func (r *TrackRepository) DeleteDownload(url string) error {
	track, err := r.getByURL(url)
	if err != nil {
		return err
	}

	if track.LocalPath != "" {
		if p, ok := r.resolve(track.LocalPath); ok {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%w: failed to remove %s: %v", shared.ErrStorage, p, err)
			}
			r.pruneDirs(filepath.Dir(p))
		}
	}
	return r.clearDownload(url)
}

// ListDownloaded returns downloaded tracks, most recent first. Stale records are corrected and omitted.
func (r *TrackRepository) ListDownloaded() ([]*models.TrackRecord, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE downloaded = 1 ORDER BY downloaded_at DESC, name ASC`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list downloads: %v", shared.ErrPersistence, err)
	}

	var tracks []*models.TrackRecord
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("%w: error iterating tracks: %v", shared.ErrPersistence, err)
	}
	rows.Close()

	kept := make([]*models.TrackRecord, 0, len(tracks))
	for _, track := range tracks {
		if fixed := r.reconcile(track); fixed.Downloaded {
			kept = append(kept, fixed)
		}
	}
	return kept, nil
}

// LocalFile returns the absolute path of a downloaded track's file.
func (r *TrackRepository) LocalFile(track *models.TrackRecord) (string, bool) {
	if track == nil || !track.Downloaded {
		return "", false
	}
	return r.resolve(track.LocalPath)
}

func (r *TrackRepository) resolve(localPath string) (string, bool) {
	rel := filepath.FromSlash(localPath)
	if !filepath.IsLocal(rel) {
		return "", false
	}
	return filepath.Join(r.downloadsDir, rel), true
}

func (r *TrackRepository) fileExists(localPath string) bool {
	p, ok := r.resolve(localPath)
	if !ok {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// pruneDirs removes empty folders from dir up to, but not including, the downloads directory.
func (r *TrackRepository) pruneDirs(dir string) {
	root := filepath.Clean(r.downloadsDir)
	for dir = filepath.Clean(dir); strings.HasPrefix(dir, root+string(filepath.Separator)); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}

// reconcile applies [models.Reconcile] and writes any correction back.
//
// A failed write-back is logged and the corrected record is still returned; the next read retries it.
func (r *TrackRepository) reconcile(track *models.TrackRecord) *models.TrackRecord {
	fixed, changed := models.Reconcile(*track, r.fileExists(track.LocalPath))
	if !changed {
		return track
	}
	if err := r.clearDownload(track.URL); err != nil {
		r.logger.Warn("failed to store download correction", "url", track.URL, "path", track.LocalPath, "error", err)
	}
	return &fixed
}

func (r *TrackRepository) clearDownload(url string) error {
	query := `UPDATE tracks SET downloaded = 0, local_path = NULL, size_bytes = 0, downloaded_at = NULL, updated_at = ?
		WHERE url = ?`
	return r.exec(query, r.now(), url)
}

func (r *TrackRepository) exec(query string, args ...any) error {
	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to get rows affected: %v", shared.ErrPersistence, err)
	}
	if rowsAffected == 0 {
		return shared.ErrTrackNotFound
	}
	return nil
}

func (r *TrackRepository) getByURL(url string) (*models.TrackRecord, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE url = ?`
	return scanTrack(r.db.QueryRow(query, url))
}

func scanTrack(s scanner) (*models.TrackRecord, error) {
	var (
		track        models.TrackRecord
		localPath    sql.NullString
		lastPlayedAt sql.NullTime
		downloadedAt sql.NullTime
	)
	err := s.Scan(
		&track.ID,
		&track.URL,
		&track.Name,
		&track.Duration,
		&track.Position,
		&track.SizeBytes,
		&track.Downloaded,
		&localPath,
		&lastPlayedAt,
		&downloadedAt,
		&track.CreatedAt,
		&track.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to scan track: %v", shared.ErrPersistence, err)
	}

	track.LocalPath = localPath.String
	track.LastPlayedAt = timePtr(lastPlayedAt)
	track.DownloadedAt = timePtr(downloadedAt)
	return &track, nil
}
