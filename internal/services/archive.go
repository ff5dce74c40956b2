package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/desertthunder/veechar/internal/models"
	"github.com/desertthunder/veechar/internal/shared"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://gurmatveechar.com"
	DefaultUserAgent = "veechar/1.0"

	folderHrefPrefix = "audio.php?q=f&f="
	folderColor      = "0069c6"
	maxListingBytes  = 16 << 20
)

// countRow matches the "8 folders, 7 files" summaries the archive renders as folder links.
var countRow = regexp.MustCompile(`\d+\s*(folder|file)`)

// RootFolders returns the top-level archive categories. The archive has no listing page above them.
func RootFolders() []models.AudioItem {
	return []models.AudioItem{
		{Name: "Gurbani Santhya", Kind: models.KindFolder, URL: "/Gurbani_Santhya"},
		{Name: "Gurbani Ucharan", Kind: models.KindFolder, URL: "/Gurbani_Ucharan"},
		{Name: "Katha", Kind: models.KindFolder, URL: "/Katha"},
		{Name: "Kaveeshri & Dhadi", Kind: models.KindFolder, URL: "/Kaveeshri_and_Dhadi"},
		{Name: "Keertan", Kind: models.KindFolder, URL: "/Keertan"},
	}
}

// ArchiveOptions configures an [ArchiveService]. Zero values fall back to defaults.
type ArchiveOptions struct {
	BaseURL           string
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
	Client            *http.Client
}

// ArchiveService fetches folder listings from the archive website.
type ArchiveService struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewArchiveService creates a listing client for the archive at opts.BaseURL.
func NewArchiveService(opts ArchiveOptions) *ArchiveService {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2.0
	}
	if opts.Client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		opts.Client = &http.Client{Timeout: timeout}
	}

	return &ArchiveService{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		httpClient: opts.Client,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
}

// NewArchiveServiceFromConfig builds the service from the [archive] config section.
func NewArchiveServiceFromConfig(cfg *shared.Config) *ArchiveService {
	return NewArchiveService(ArchiveOptions{
		BaseURL:           cfg.Archive.BaseURL,
		UserAgent:         cfg.Archive.UserAgent,
		RequestsPerSecond: cfg.Archive.RequestsPerSecond,
		Timeout:           cfg.Timeout(),
	})
}

// Name returns the service name.
func (a *ArchiveService) Name() string {
	return "Gurmat Veechar"
}

// BaseURL returns the archive root without a trailing slash.
func (a *ArchiveService) BaseURL() string {
	return a.baseURL
}

// FolderURL returns the listing page URL for folderPath.
func (a *ArchiveService) FolderURL(folderPath string) string {
	return a.baseURL + "/" + folderHrefPrefix + url.QueryEscape(folderPath)
}

// Fetch downloads and parses the listing for folderPath. The empty path is the archive root.
//
// Transport failures and non-2xx answers wrap [shared.ErrNetwork]; unreadable pages wrap
// [shared.ErrParse].
func (a *ArchiveService) Fetch(ctx context.Context, folderPath string) ([]models.AudioItem, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.FolderURL(folderPath), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: archive returned status %d for %q", shared.ErrNetwork, resp.StatusCode, folderPath)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read listing: %v", shared.ErrNetwork, err)
	}
	return ParseListing(body, a.baseURL)
}

// ParseListing extracts folders and audio files from a folder page, folders first.
//
// Audio URLs are made absolute against baseURL and duplicates are collapsed.
func ParseListing(body []byte, baseURL string) ([]models.AudioItem, error) {
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("%w: listing is not valid UTF-8", shared.ErrParse)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrParse, err)
	}

	items := make([]models.AudioItem, 0)
	doc.Find(`a[href^="` + folderHrefPrefix + `"]`).Each(func(_ int, s *goquery.Selection) {
		if style, _ := s.Attr("style"); !strings.Contains(style, folderColor) {
			return
		}
		if item, ok := parseFolder(s); ok {
			items = append(items, item)
		}
	})

	seen := make(map[string]bool)
	doc.Find(`a[href^="/audios/"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.HasSuffix(strings.ToLower(href), ".mp3") {
			return
		}
		full := strings.TrimRight(baseURL, "/") + href
		if seen[full] {
			return
		}
		seen[full] = true
		items = append(items, models.AudioItem{Name: audioName(href), Kind: models.KindAudio, URL: full})
	})

	return items, nil
}

func parseFolder(s *goquery.Selection) (models.AudioItem, bool) {
	href, _ := s.Attr("href")
	encoded := strings.TrimPrefix(href, folderHrefPrefix)

	label := s.Find("font").First().Text()
	if label == "" {
		label = s.Text()
	}
	name := strings.ReplaceAll(label, "_", " ")
	name = strings.ReplaceAll(name, "\u00a0", "")
	name = strings.TrimSpace(name)

	if name == "" || countRow.MatchString(strings.ToLower(name)) {
		return models.AudioItem{}, false
	}

	folderPath, err := url.PathUnescape(encoded)
	if err != nil {
		folderPath = encoded
	}
	return models.AudioItem{Name: name, Kind: models.KindFolder, URL: folderPath}, true
}

// audioName turns "/audios/Katha/Japji.Sahib--Part%201.mp3" into "Japji Sahib - Part 1".
func audioName(href string) string {
	file := path.Base(href)
	if decoded, err := url.PathUnescape(file); err == nil {
		file = decoded
	}
	if ext := path.Ext(file); strings.EqualFold(ext, ".mp3") {
		file = strings.TrimSuffix(file, ext)
	}
	file = strings.ReplaceAll(file, ".", " ")
	file = strings.ReplaceAll(file, "--", " - ")
	return strings.TrimSpace(file)
}
