// package formatter renders downloaded tracks as text, CSV, JSON or Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/veechar/internal/models"
	"github.com/desertthunder/veechar/internal/shared"
	"github.com/dustin/go-humanize"
)

// Supported export formats.
const (
	FormatText     = "txt"
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Formats lists the accepted values for [Export].
var Formats = []string{FormatText, FormatCSV, FormatJSON, FormatMarkdown}

// FolderGroup is the downloads of one archive folder.
type FolderGroup struct {
	Folder string
	Tracks []*models.TrackRecord
}

// GroupByFolder groups tracks by [models.TrackRecord.Folder], folders in name order. Track order
// within a folder is preserved.
func GroupByFolder(tracks []*models.TrackRecord) []FolderGroup {
	index := make(map[string]int)
	var groups []FolderGroup
	for _, track := range tracks {
		folder := track.Folder()
		i, ok := index[folder]
		if !ok {
			i = len(groups)
			index[folder] = i
			groups = append(groups, FolderGroup{Folder: folder})
		}
		groups[i].Tracks = append(groups[i].Tracks, track)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Folder < groups[j].Folder })
	return groups
}

// TotalBytes sums the stored sizes.
func TotalBytes(tracks []*models.TrackRecord) uint64 {
	var total uint64
	for _, track := range tracks {
		if track.SizeBytes > 0 {
			total += uint64(track.SizeBytes)
		}
	}
	return total
}

// Summary renders "12 downloads, 340 MiB".
func Summary(tracks []*models.TrackRecord) string {
	noun := "downloads"
	if len(tracks) == 1 {
		noun = "download"
	}
	return fmt.Sprintf("%s %s, %s", humanize.Comma(int64(len(tracks))), noun, humanize.IBytes(TotalBytes(tracks)))
}

// LastPlayed renders the last-played time relative to now.
func LastPlayed(track *models.TrackRecord) string {
	if track.LastPlayedAt == nil {
		return "never played"
	}
	return "played " + humanize.Time(*track.LastPlayedAt)
}

// Line renders one track as "Name · 12.3 MB · 1:02:03 · played 3 hours ago".
func Line(track *models.TrackRecord) string {
	parts := []string{track.Name, fmt.Sprintf("%.1f MB", track.SizeMB())}
	if track.Duration > 0 {
		parts = append(parts, shared.FormatDuration(track.Duration))
	}
	parts = append(parts, LastPlayed(track))
	return strings.Join(parts, " · ")
}

// ExportToText renders one line per track, optionally under folder headings.
func ExportToText(tracks []*models.TrackRecord, group bool) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Downloads: %s\n\n", Summary(tracks)))
	if !group {
		for i, track := range tracks {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, Line(track)))
		}
		return buf.Bytes(), nil
	}

	for _, g := range GroupByFolder(tracks) {
		buf.WriteString(fmt.Sprintf("%s (%d)\n", g.Folder, len(g.Tracks)))
		for _, track := range g.Tracks {
			buf.WriteString(fmt.Sprintf("  %s\n", Line(track)))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// ExportToCSV renders a header row and one row per track.
func ExportToCSV(tracks []*models.TrackRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Name", "Folder", "URL", "Path", "Size (MB)", "Duration", "Position", "Downloaded At", "Last Played At"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{
			track.Name,
			track.Folder(),
			track.URL,
			track.LocalPath,
			fmt.Sprintf("%.1f", track.SizeMB()),
			shared.FormatDuration(track.Duration),
			shared.FormatDuration(track.Position),
			formatTime(track.DownloadedAt),
			formatTime(track.LastPlayedAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

type trackJSON struct {
	Name         string     `json:"name"`
	Folder       string     `json:"folder"`
	URL          string     `json:"url"`
	Path         string     `json:"path"`
	SizeBytes    int64      `json:"size_bytes"`
	Duration     float64    `json:"duration_seconds"`
	Position     float64    `json:"position_seconds"`
	DownloadedAt *time.Time `json:"downloaded_at,omitempty"`
	LastPlayedAt *time.Time `json:"last_played_at,omitempty"`
}

// ExportToJSON renders the tracks as an indented JSON array.
func ExportToJSON(tracks []*models.TrackRecord) ([]byte, error) {
	out := make([]trackJSON, 0, len(tracks))
	for _, track := range tracks {
		out = append(out, trackJSON{
			Name:         track.Name,
			Folder:       track.Folder(),
			URL:          track.URL,
			Path:         track.LocalPath,
			SizeBytes:    track.SizeBytes,
			Duration:     track.Duration,
			Position:     track.Position,
			DownloadedAt: track.DownloadedAt,
			LastPlayedAt: track.LastPlayedAt,
		})
	}
	return shared.MarshalJSON(out, true)
}

// ExportToMarkdown renders a document with one section per folder.
func ExportToMarkdown(tracks []*models.TrackRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Downloads\n\n")
	buf.WriteString(fmt.Sprintf("**Total**: %s\n\n", Summary(tracks)))

	for _, g := range GroupByFolder(tracks) {
		buf.WriteString(fmt.Sprintf("## %s\n\n", g.Folder))
		for i, track := range g.Tracks {
			buf.WriteString(fmt.Sprintf("%d. [%s](%s) [%s, %.1f MB]\n", i+1, track.Name, track.URL, shared.FormatDuration(track.Duration), track.SizeMB()))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// Export renders tracks in format. group only affects the text format.
func Export(tracks []*models.TrackRecord, format string, group bool) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", FormatText, "text":
		return ExportToText(tracks, group)
	case FormatCSV:
		return ExportToCSV(tracks)
	case FormatJSON:
		return ExportToJSON(tracks)
	case FormatMarkdown, "md":
		return ExportToMarkdown(tracks)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (expected one of %s)", shared.ErrInvalidFlag, format, strings.Join(Formats, ", "))
	}
}

// WriteExport renders tracks and writes them to path.
func WriteExport(tracks []*models.TrackRecord, format, path string, group bool) error {
	data, err := Export(tracks, format, group)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
