// package testing contains shared testing utilities
package testing

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/veechar/internal/models"
	"github.com/desertthunder/veechar/internal/shared"
)

// FakeTrackStore is an in-memory [models.TrackStore].
//
// SetErr makes every write fail. Calls counts each method invocation by name.
type FakeTrackStore struct {
	mu        sync.Mutex
	records   map[string]models.TrackRecord
	calls     map[string]int
	err       error
	positions []float64 // every value passed to UpdatePlaybackPosition
}

func NewFakeTrackStore() *FakeTrackStore {
	return &FakeTrackStore{records: make(map[string]models.TrackRecord), calls: make(map[string]int)}
}

// SetErr sets the error returned by writes. nil restores normal behavior.
func (s *FakeTrackStore) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Seed stores rec as-is, bypassing validation.
func (s *FakeTrackStore) Seed(rec models.TrackRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.URL] = rec
}

// Record returns the stored record without reconciling it.
func (s *FakeTrackStore) Record(url string) (models.TrackRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[url]
	return rec, ok
}

// Calls returns how many times method was invoked.
func (s *FakeTrackStore) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// PositionWrites returns a copy of the persisted positions in order.
func (s *FakeTrackStore) PositionWrites() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.positions...)
}

func (s *FakeTrackStore) GetTrack(url string) (*models.TrackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["GetTrack"]++
	rec, ok := s.records[url]
	if !ok {
		return nil, shared.ErrTrackNotFound
	}
	return &rec, nil
}

func (s *FakeTrackStore) CreateOrGetTrack(url, name string) (*models.TrackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CreateOrGetTrack"]++
	if rec, ok := s.records[url]; ok {
		return &rec, nil
	}
	if s.err != nil {
		return nil, s.err
	}
	rec := *models.NewTrackRecord(url, name)
	rec.ID = shared.GenerateID()
	s.records[url] = rec
	return &rec, nil
}

func (s *FakeTrackStore) UpdatePlaybackPosition(url string, seconds float64) error {
	return s.update("UpdatePlaybackPosition", url, func(rec *models.TrackRecord) {
		rec.Position = seconds
		now := time.Now()
		rec.LastPlayedAt = &now
		s.positions = append(s.positions, seconds)
	})
}

func (s *FakeTrackStore) UpdateDuration(url string, seconds float64) error {
	return s.update("UpdateDuration", url, func(rec *models.TrackRecord) { rec.Duration = seconds })
}

func (s *FakeTrackStore) MarkDownloaded(url, localPath string, sizeBytes int64) error {
	return s.update("MarkDownloaded", url, func(rec *models.TrackRecord) {
		now := time.Now()
		rec.Downloaded, rec.LocalPath, rec.SizeBytes, rec.DownloadedAt = true, localPath, sizeBytes, &now
	})
}

func (s *FakeTrackStore) DeleteDownload(url string) error {
	return s.update("DeleteDownload", url, func(rec *models.TrackRecord) {
		rec.Downloaded, rec.LocalPath, rec.SizeBytes, rec.DownloadedAt = false, "", 0, nil
	})
}

func (s *FakeTrackStore) ListDownloaded() ([]*models.TrackRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["ListDownloaded"]++
	var out []*models.TrackRecord
	for _, rec := range s.records {
		if rec.Downloaded {
			r := rec
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

func (s *FakeTrackStore) update(method, url string, fn func(*models.TrackRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[method]++
	if s.err != nil {
		return s.err
	}
	rec, ok := s.records[url]
	if !ok {
		return shared.ErrTrackNotFound
	}
	fn(&rec)
	s.records[url] = rec
	return nil
}

// Eventually polls cond until it holds or timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not met within %v: %s", timeout, fmt.Sprintf(msg, args...))
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("File should not exist: %s (stat err = %v)", path, err)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
