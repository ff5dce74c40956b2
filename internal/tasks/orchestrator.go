package tasks

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/veechar/internal/shared"
	"github.com/google/uuid"
)

// DefaultGracePeriod is how long completed and failed tasks stay visible.
const DefaultGracePeriod = 2 * time.Second

// Options configures an [Orchestrator].
type Options struct {
	DownloadsDir string
	Transport    Transport
	GracePeriod  time.Duration
	Logger       *log.Logger
}

type taskEntry struct {
	task     Task
	transfer Transfer
}

// Orchestrator manages concurrent downloads keyed by URL.
type Orchestrator struct {
	downloadsDir string
	transport    Transport
	grace        time.Duration
	logger       *log.Logger
	move         func(src, dst string) error

	// Owned by the run goroutine.
	tasks  map[string]*taskEntry
	subs   map[*Subscription]struct{}
	timers map[string]*time.Timer

	actions   chan func()
	updates   chan ProgressUpdate
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewOrchestrator creates an orchestrator and starts its loop. Call [Orchestrator.Close] to stop it.
func NewOrchestrator(opts Options) *Orchestrator {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	o := &Orchestrator{
		downloadsDir: opts.DownloadsDir,
		transport:    opts.Transport,
		grace:        opts.GracePeriod,
		logger:       opts.Logger,
		move:         moveFile,
		tasks:        make(map[string]*taskEntry),
		subs:         make(map[*Subscription]struct{}),
		timers:       make(map[string]*time.Timer),
		actions:      make(chan func(), 64),
		updates:      make(chan ProgressUpdate, 64),
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	go o.run()
	return o
}

func (o *Orchestrator) run() {
	defer close(o.stopped)
	for {
		select {
		case fn := <-o.actions:
			fn()
		case <-o.quit:
			o.shutdown()
			return
		}
	}
}

// do runs fn on the loop and waits for it.
func (o *Orchestrator) do(fn func()) error {
	done := make(chan struct{})
	select {
	case o.actions <- func() { fn(); close(done) }:
	case <-o.quit:
		return fmt.Errorf("%w: orchestrator closed", shared.ErrServiceUnavailable)
	}
	select {
	case <-done:
		return nil
	case <-o.stopped:
		return fmt.Errorf("%w: orchestrator closed", shared.ErrServiceUnavailable)
	}
}

// post queues fn without waiting. Transport callbacks may run on the loop itself, so a full queue
// hands the send to a goroutine instead of blocking.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.actions <- fn:
		return
	case <-o.quit:
		return
	default:
	}
	go func() {
		select {
		case o.actions <- fn:
		case <-o.quit:
		}
	}()
}

// Start begins downloading url unless an active task already exists for it.
//
// A finished task still inside its grace period is replaced. Transport errors do not surface here;
// they leave the task failed.
func (o *Orchestrator) Start(rawURL, name string) error {
	if strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("%w: download URL is required", shared.ErrInvalidInput)
	}
	if name == "" {
		name = strings.TrimSuffix(FileName(rawURL), ".mp3")
	}
	return o.do(func() { o.start(rawURL, name) })
}

// Cancel aborts the transfer for url and removes its task before returning.
func (o *Orchestrator) Cancel(rawURL string) error {
	var err error
	if doErr := o.do(func() { err = o.cancel(rawURL) }); doErr != nil {
		return doErr
	}
	return err
}

// Pause suspends an active transfer. Bytes written so far are kept.
func (o *Orchestrator) Pause(rawURL string) error {
	var err error
	if doErr := o.do(func() { err = o.pause(rawURL) }); doErr != nil {
		return doErr
	}
	return err
}

// Resume continues a paused transfer.
func (o *Orchestrator) Resume(rawURL string) error {
	var err error
	if doErr := o.do(func() { err = o.resume(rawURL) }); doErr != nil {
		return doErr
	}
	return err
}

// Progress returns a snapshot of the task for url.
func (o *Orchestrator) Progress(rawURL string) (Task, bool) {
	var (
		task Task
		ok   bool
	)
	_ = o.do(func() {
		if e, found := o.tasks[rawURL]; found {
			task, ok = e.task, true
		}
	})
	return task, ok
}

// Tasks returns snapshots of every task, oldest first.
func (o *Orchestrator) Tasks() []Task {
	var out []Task
	_ = o.do(func() {
		out = make([]Task, 0, len(o.tasks))
		for _, e := range o.tasks {
			out = append(out, e.task)
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].URL < out[j].URL
	})
	return out
}

// Updates returns the channel of task snapshots. Updates are dropped when the reader falls behind.
func (o *Orchestrator) Updates() <-chan ProgressUpdate {
	return o.updates
}

// Subscribe registers for completion events. Unsubscribe when done.
func (o *Orchestrator) Subscribe() *Subscription {
	sub := newSubscription(o)
	if err := o.do(func() { o.subs[sub] = struct{}{} }); err != nil {
		sub.stop()
	}
	return sub
}

// Close cancels every transfer and stops the loop. Subscriptions are closed.
func (o *Orchestrator) Close() error {
	o.closeOnce.Do(func() { close(o.quit) })
	<-o.stopped
	return nil
}

func (o *Orchestrator) start(rawURL, name string) {
	if e, ok := o.tasks[rawURL]; ok && e.task.State.IsActive() {
		o.logger.Debug("download already active", "url", rawURL)
		return
	}

	e := &taskEntry{task: Task{
		ID:            shared.GenerateID(),
		URL:           rawURL,
		Name:          name,
		ExpectedBytes: -1,
		State:         StateQueued,
		StartedAt:     time.Now(),
	}}
	o.tasks[rawURL] = e
	o.publish(e.task, false)
	o.logger.Info("download queued", "name", name, "url", rawURL)

	if o.transport == nil {
		o.fail(e, fmt.Errorf("%w: no transport configured", shared.ErrServiceUnavailable))
		return
	}

	transfer, err := o.transport.Begin(rawURL, &taskSink{o: o, url: rawURL, id: e.task.ID})
	if err != nil {
		o.fail(e, err)
		return
	}
	e.transfer = transfer
}

func (o *Orchestrator) cancel(rawURL string) error {
	e, ok := o.tasks[rawURL]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, rawURL)
	}
	if e.transfer != nil && e.task.State.IsActive() {
		e.transfer.Cancel()
	}
	o.remove(e)
	o.logger.Info("download cancelled", "url", rawURL)
	return nil
}

func (o *Orchestrator) pause(rawURL string) error {
	e, ok := o.tasks[rawURL]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, rawURL)
	}
	if e.task.State != StateDownloading && e.task.State != StateQueued {
		return nil
	}
	if e.transfer != nil {
		e.transfer.Pause()
	}
	e.task.State = StatePaused
	o.publish(e.task, false)
	return nil
}

func (o *Orchestrator) resume(rawURL string) error {
	e, ok := o.tasks[rawURL]
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrTaskNotFound, rawURL)
	}
	if e.task.State != StatePaused {
		return nil
	}
	if e.transfer != nil {
		e.transfer.Resume()
	}
	e.task.State = StateDownloading
	o.publish(e.task, false)
	return nil
}

// lookup returns the entry for a transport callback, or nil when the callback is stale.
func (o *Orchestrator) lookup(rawURL, id string) *taskEntry {
	e, ok := o.tasks[rawURL]
	if !ok || e.task.ID != id || e.task.State.IsTerminal() {
		return nil
	}
	return e
}

func (o *Orchestrator) onProgress(rawURL, id string, written, expected int64) {
	e := o.lookup(rawURL, id)
	if e == nil {
		return
	}
	e.task.setBytes(written, expected)
	if e.task.State == StateQueued {
		e.task.State = StateDownloading
	}
	o.publish(e.task, false)
}

// onFinished hands the payload to a helper goroutine; the loop only sees the result.
func (o *Orchestrator) onFinished(rawURL, id, tempPath string) {
	if o.lookup(rawURL, id) == nil {
		return
	}
	rel := RelativePath(rawURL)
	go func() {
		size, err := o.finalize(tempPath, rel)
		o.post(func() { o.onStored(rawURL, id, rel, size, err) })
	}()
}

func (o *Orchestrator) onStored(rawURL, id, rel string, size int64, err error) {
	e := o.lookup(rawURL, id)
	if e == nil {
		o.logger.Debug("download stored after its task was removed", "url", rawURL, "path", rel)
		return
	}
	if err != nil {
		o.fail(e, err)
		return
	}

	e.task.setBytes(size, size)
	e.task.Progress = 1
	e.task.State = StateCompleted
	e.task.FinishedAt = time.Now()
	o.publish(e.task, false)
	o.logger.Info("download completed", "name", e.task.Name, "path", rel, "bytes", size)

	c := Completion{URL: rawURL, Name: e.task.Name, RelativePath: rel, SizeBytes: size}
	for sub := range o.subs {
		sub.push(c)
	}
	o.schedulePurge(e)
}

func (o *Orchestrator) onFailed(rawURL, id string, err error) {
	if e := o.lookup(rawURL, id); e != nil {
		o.fail(e, err)
	}
}

// finalize moves the payload to <downloads>/<rel>, replacing any stale file, and returns its size.
// It runs off the loop and touches no orchestrator state.
func (o *Orchestrator) finalize(tempPath, rel string) (int64, error) {
	dest := filepath.Join(o.downloadsDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("%w: failed to create downloads directory: %v", shared.ErrStorage, err)
	}

	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("%w: failed to remove stale file: %v", shared.ErrStorage, err)
	}
	if err := o.move(tempPath, dest); err != nil {
		return 0, fmt.Errorf("%w: failed to move download: %v", shared.ErrStorage, err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to stat download: %v", shared.ErrStorage, err)
	}
	return info.Size(), nil
}

func (o *Orchestrator) fail(e *taskEntry, err error) {
	e.task.State = StateFailed
	e.task.Err = err.Error()
	e.task.FinishedAt = time.Now()
	o.publish(e.task, false)
	o.logger.Error("download failed", "name", e.task.Name, "url", e.task.URL, "error", err)
	o.schedulePurge(e)
}

// schedulePurge removes a terminal task after the grace period. The timer is keyed by task ID so a
// restarted download for the same URL survives it.
func (o *Orchestrator) schedulePurge(e *taskEntry) {
	rawURL, id := e.task.URL, e.task.ID
	o.timers[id] = time.AfterFunc(o.grace, func() {
		o.post(func() {
			delete(o.timers, id)
			if cur, ok := o.tasks[rawURL]; ok && cur.task.ID == id && cur.task.State.IsTerminal() {
				o.remove(cur)
			}
		})
	})
}

func (o *Orchestrator) remove(e *taskEntry) {
	if t, ok := o.timers[e.task.ID]; ok {
		t.Stop()
		delete(o.timers, e.task.ID)
	}
	delete(o.tasks, e.task.URL)
	o.publish(e.task, true)
}

// publish sends a snapshot without blocking.
func (o *Orchestrator) publish(task Task, removed bool) {
	select {
	case o.updates <- ProgressUpdate{Task: task, Removed: removed}:
	default:
	}
}

func (o *Orchestrator) shutdown() {
	for _, t := range o.timers {
		t.Stop()
	}
	for _, e := range o.tasks {
		if e.transfer != nil && e.task.State.IsActive() {
			e.transfer.Cancel()
		}
	}
	for sub := range o.subs {
		sub.stop()
	}
	clear(o.tasks)
	clear(o.subs)
	clear(o.timers)
}

// taskSink forwards transport callbacks for one task to the loop.
type taskSink struct {
	o   *Orchestrator
	url string
	id  string
}

func (s *taskSink) Progress(written, expected int64) {
	s.o.post(func() { s.o.onProgress(s.url, s.id, written, expected) })
}

func (s *taskSink) Finished(tempPath string) {
	s.o.post(func() { s.o.onFinished(s.url, s.id, tempPath) })
}

func (s *taskSink) Failed(err error) {
	s.o.post(func() { s.o.onFailed(s.url, s.id, err) })
}

// FileName returns the local file name for a track URL: the decoded last path segment, or a
// random name when the URL has none.
func FileName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		name := path.Base(u.Path)
		if name != "." && name != "/" && name != ".." && name != "" && !strings.ContainsAny(name, `\`) {
			return name
		}
	}
	return uuid.NewString() + ".mp3"
}

// RelativePath returns where a track is stored under the downloads directory: the archive folders
// of its URL, without the leading "audios" segment, followed by [FileName]. Tracks with the same
// file name in different folders therefore never share a file.
func RelativePath(rawURL string) string {
	name := FileName(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return name
	}

	var parts []string
	for _, seg := range strings.Split(path.Dir(path.Clean("/"+u.Path)), "/") {
		if seg == "" {
			continue
		}
		if strings.ContainsAny(seg, `\`) {
			return name
		}
		parts = append(parts, seg)
	}
	if len(parts) > 0 && parts[0] == "audios" {
		parts = parts[1:]
	}
	return path.Join(append(parts, name)...)
}

// moveFile renames src to dst, copying when they sit on different filesystems.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
