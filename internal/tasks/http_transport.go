package tasks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/veechar/internal/shared"
)

const (
	bufferSize       = 32 * 1024
	progressInterval = 100 * time.Millisecond
)

// HTTPOptions configures an [HTTPTransport].
type HTTPOptions struct {
	TempDir   string
	UserAgent string
	Client    *http.Client
	Logger    *log.Logger
}

// HTTPTransport downloads over HTTP into .part files that survive a pause.
type HTTPTransport struct {
	tempDir   string
	userAgent string
	client    *http.Client
	logger    *log.Logger
}

// NewHTTPTransport creates a transport. The client has no overall timeout; transfers end by
// completion, failure or cancellation.
func NewHTTPTransport(opts HTTPOptions) *HTTPTransport {
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join(os.TempDir(), "veechar")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &HTTPTransport{
		tempDir:   opts.TempDir,
		userAgent: opts.UserAgent,
		client:    opts.Client,
		logger:    opts.Logger,
	}
}

// Begin starts downloading rawURL in the background and reports to sink.
func (t *HTTPTransport) Begin(rawURL string, sink Sink) (Transfer, error) {
	if err := os.MkdirAll(t.tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create temp directory: %v", shared.ErrStorage, err)
	}

	sum := sha256.Sum256([]byte(rawURL))
	part := filepath.Join(t.tempDir, hex.EncodeToString(sum[:8])+"-"+shared.GenerateID()+".part")

	tr := &httpTransfer{t: t, url: rawURL, part: part, sink: sink}
	tr.mu.Lock()
	tr.launch()
	tr.mu.Unlock()
	return tr, nil
}

type httpTransfer struct {
	t    *HTTPTransport
	url  string
	part string
	sink Sink

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	paused   bool
	canceled bool
}

// launch starts a run that waits for the previous one to exit. Callers hold mu.
func (tr *httpTransfer) launch() {
	ctx, cancel := context.WithCancel(context.Background())
	prev, done := tr.done, make(chan struct{})
	tr.cancel, tr.done = cancel, done

	go func() {
		defer close(done)
		defer cancel()
		if prev != nil {
			<-prev
		}
		tr.run(ctx)
	}()
}

func (tr *httpTransfer) Pause() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.paused || tr.canceled {
		return
	}
	tr.paused = true
	tr.cancel()
}

func (tr *httpTransfer) Resume() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if !tr.paused || tr.canceled {
		return
	}
	tr.paused = false
	tr.launch()
}

// Cancel stops the transfer and removes the partial file once the run has exited.
func (tr *httpTransfer) Cancel() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.canceled {
		return
	}
	tr.canceled = true
	tr.cancel()

	done := tr.done
	go func() {
		<-done
		os.Remove(tr.part)
	}()
}

func (tr *httpTransfer) run(ctx context.Context) {
	err := tr.attempt(ctx)
	switch {
	case err == nil:
		tr.sink.Finished(tr.part)
	case ctx.Err() != nil:
		tr.t.logger.Debug("transfer stopped", "url", tr.url)
	default:
		tr.sink.Failed(err)
	}
}

func (tr *httpTransfer) attempt(ctx context.Context) error {
	var offset int64
	if info, err := os.Stat(tr.part); err == nil {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tr.url, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", shared.ErrNetwork, err)
	}
	if tr.t.userAgent != "" {
		req.Header.Set("User-Agent", tr.t.userAgent)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		tr.t.logger.Debug("resuming transfer", "url", tr.url, "offset", offset)
	}

	resp, err := tr.t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrNetwork, err)
	}
	defer resp.Body.Close()

	flags := os.O_CREATE | os.O_WRONLY
	expected := int64(-1)
	switch {
	case offset > 0 && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		if total := contentRangeTotal(resp.Header.Get("Content-Range")); total == offset {
			tr.sink.Progress(offset, offset)
			return nil
		}
		return fmt.Errorf("%w: server rejected resume at offset %d", shared.ErrNetwork, offset)
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
		flags |= os.O_APPEND
		if total := contentRangeTotal(resp.Header.Get("Content-Range")); total > 0 {
			expected = total
		} else if resp.ContentLength >= 0 {
			expected = offset + resp.ContentLength
		}
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if offset > 0 {
			tr.t.logger.Warn("server ignored range request, restarting", "url", tr.url, "status", resp.StatusCode)
		}
		flags |= os.O_TRUNC
		offset = 0
		if resp.ContentLength >= 0 {
			expected = resp.ContentLength
		}
	default:
		return fmt.Errorf("%w: unexpected status %d", shared.ErrNetwork, resp.StatusCode)
	}

	out, err := os.OpenFile(tr.part, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: failed to open partial file: %v", shared.ErrStorage, err)
	}
	defer out.Close()

	written := offset
	tr.sink.Progress(written, expected)

	buf := make([]byte, bufferSize)
	last := time.Now()
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return fmt.Errorf("%w: failed to write partial file: %v", shared.ErrStorage, err)
			}
			written += int64(n)
			if time.Since(last) >= progressInterval {
				tr.sink.Progress(written, expected)
				last = time.Now()
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return fmt.Errorf("%w: failed to read body: %v", shared.ErrNetwork, readErr)
		}
	}

	if err := out.Sync(); err != nil {
		return fmt.Errorf("%w: failed to sync partial file: %v", shared.ErrStorage, err)
	}
	if expected > 0 && written < expected {
		return fmt.Errorf("%w: body ended at %d of %d bytes", shared.ErrNetwork, written, expected)
	}
	tr.sink.Progress(written, expected)
	return nil
}

// contentRangeTotal parses the total from "bytes 0-99/1234" or "bytes */1234", or returns -1.
func contentRangeTotal(header string) int64 {
	_, total, ok := strings.Cut(header, "/")
	if !ok || total == "*" {
		return -1
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil {
		return -1
	}
	return n
}
