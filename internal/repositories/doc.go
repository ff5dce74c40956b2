// Package repositories implements SQLite persistence for track and favorite records.
//
// Key Implementations:
//   - [TrackRepository] : per-track playback and download state ([models.TrackStore])
//   - [FavoriteRepository] : starred archive folders ([models.FavoriteStore])
//   - [Store] : both repositories over one connection
//
// Track reads are self-healing. A record claiming a download whose file is missing from the
// downloads directory is corrected to "not downloaded" before it is returned, and the correction is
// written back. Local paths are stored relative to the downloads directory so the directory can be
// relocated between runs.
package repositories
