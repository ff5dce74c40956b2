// package models defines the data model for the archive player
package models

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// ItemKind distinguishes folders from playable audio in a listing.
type ItemKind string

const (
	KindFolder ItemKind = "folder"
	KindAudio  ItemKind = "audio"
)

// AudioItem is one entry of a folder listing.
//
// For folders URL holds the archive path used to fetch the nested listing; for audio it is the
// absolute URL of the file.
type AudioItem struct {
	Name     string      `json:"name"`
	Kind     ItemKind    `json:"kind"`
	URL      string      `json:"url"`
	Children []AudioItem `json:"children,omitempty"`
}

// IsFolder reports whether the item is a folder.
func (i AudioItem) IsFolder() bool { return i.Kind == KindFolder }

// TrackRecord is the persisted state of a single track, keyed by URL.
//
// LocalPath is relative to the downloads directory and is set if and only if Downloaded is true.
type TrackRecord struct {
	ID           string
	URL          string
	Name         string
	Duration     float64 // seconds, 0 until measured
	Position     float64 // seconds
	SizeBytes    int64
	Downloaded   bool
	LocalPath    string
	LastPlayedAt *time.Time
	DownloadedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTrackRecord returns an unsaved record with zeroed playback state.
func NewTrackRecord(trackURL, name string) *TrackRecord {
	now := time.Now()
	return &TrackRecord{URL: trackURL, Name: name, CreatedAt: now, UpdatedAt: now}
}

// Validate checks the identity fields and the download invariant.
func (t *TrackRecord) Validate() error {
	if t.URL == "" {
		return fmt.Errorf("track URL is required")
	}
	if t.Name == "" {
		return fmt.Errorf("track name is required")
	}
	if t.Downloaded != (t.LocalPath != "") {
		return fmt.Errorf("local path must be set iff the track is downloaded")
	}
	if filepath.IsAbs(t.LocalPath) {
		return fmt.Errorf("local path must be relative, got %s", t.LocalPath)
	}
	return nil
}

// SizeMB returns the stored file size in mebibytes.
func (t *TrackRecord) SizeMB() float64 {
	return float64(t.SizeBytes) / 1_048_576.0
}

// Folder returns the name of the archive folder containing the track, or "Other".
func (t *TrackRecord) Folder() string {
	p := t.URL
	if u, err := url.Parse(t.URL); err == nil && u.Path != "" {
		p = u.Path
	}
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
	if len(parts) < 2 {
		return "Other"
	}
	folder := parts[len(parts)-2]
	if decoded, err := url.PathUnescape(folder); err == nil {
		folder = decoded
	}
	return folder
}

// Reconcile repairs a record whose download flag disagrees with the filesystem.
//
// A record that claims a download whose file is gone is returned as not downloaded, with the
// path, size and download date cleared. changed reports whether a correction was made.
func Reconcile(rec TrackRecord, fileExists bool) (fixed TrackRecord, changed bool) {
	if !rec.Downloaded && rec.LocalPath == "" {
		return rec, false
	}
	if rec.Downloaded && rec.LocalPath != "" && fileExists {
		return rec, false
	}

	rec.Downloaded = false
	rec.LocalPath = ""
	rec.SizeBytes = 0
	rec.DownloadedAt = nil
	return rec, true
}

// FavoriteFolder is a starred archive folder.
type FavoriteFolder struct {
	ID      string
	Path    string
	Name    string
	AddedAt time.Time
}

// Validate checks the required fields.
func (f *FavoriteFolder) Validate() error {
	if f.Path == "" {
		return fmt.Errorf("favorite path is required")
	}
	if f.Name == "" {
		return fmt.Errorf("favorite name is required")
	}
	return nil
}

// TrackStore is the record-store contract consumed by downloads and playback.
//
// Every write is independent and idempotent; callers treat failures as non-fatal.
type TrackStore interface {
	GetTrack(url string) (*TrackRecord, error)               // GetTrack returns the reconciled record or an error wrapping shared.ErrTrackNotFound
	CreateOrGetTrack(url, name string) (*TrackRecord, error) // CreateOrGetTrack returns the existing record or inserts one
	UpdatePlaybackPosition(url string, seconds float64) error
	UpdateDuration(url string, seconds float64) error
	MarkDownloaded(url, localPath string, sizeBytes int64) error
	DeleteDownload(url string) error // DeleteDownload removes the backing file and clears the flag
	ListDownloaded() ([]*TrackRecord, error)
}

// FavoriteStore persists starred folders.
type FavoriteStore interface {
	ListFavorites() ([]*FavoriteFolder, error)
	IsFavorite(path string) (bool, error)
	ToggleFavorite(path, name string) (bool, error) // ToggleFavorite returns the new favorite state
}
