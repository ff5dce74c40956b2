package tasks

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/veechar/internal/shared"
	tu "github.com/desertthunder/veechar/internal/testing"
)

const trackURL = "https://example.com/audios/Katha/Japji%20Sahib.mp3"

// fakeTransfer records control calls.
type fakeTransfer struct {
	mu                      sync.Mutex
	paused, resumed, cancel int
}

func (f *fakeTransfer) Pause()  { f.mu.Lock(); f.paused++; f.mu.Unlock() }
func (f *fakeTransfer) Resume() { f.mu.Lock(); f.resumed++; f.mu.Unlock() }
func (f *fakeTransfer) Cancel() { f.mu.Lock(); f.cancel++; f.mu.Unlock() }

func (f *fakeTransfer) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused, f.resumed, f.cancel
}

// fakeTransport hands out fake transfers and keeps each sink so tests can drive callbacks.
type fakeTransport struct {
	mu        sync.Mutex
	sinks     map[string][]Sink
	transfers map[string][]*fakeTransfer
	err       error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sinks: make(map[string][]Sink), transfers: make(map[string][]*fakeTransfer)}
}

func (f *fakeTransport) Begin(url string, sink Sink) (Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	tr := &fakeTransfer{}
	f.sinks[url] = append(f.sinks[url], sink)
	f.transfers[url] = append(f.transfers[url], tr)
	return tr, nil
}

func (f *fakeTransport) begun(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sinks[url])
}

func (f *fakeTransport) sink(url string, i int) Sink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sinks[url][i]
}

func (f *fakeTransport) transfer(url string, i int) *fakeTransfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transfers[url][i]
}

func newTestOrchestrator(t *testing.T, transport Transport, grace time.Duration) (*Orchestrator, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "Downloads")
	o := NewOrchestrator(Options{
		DownloadsDir: dir,
		Transport:    transport,
		GracePeriod:  grace,
		Logger:       shared.NewLogger(io.Discard),
	})
	t.Cleanup(func() { o.Close() })
	return o, dir
}

func writePayload(t *testing.T, size int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "payload.part")
	if err := os.WriteFile(p, []byte(strings.Repeat("x", size)), 0o644); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}
	return p
}

func waitForState(t *testing.T, o *Orchestrator, url string, state State) Task {
	t.Helper()
	var task Task
	tu.Eventually(t, 2*time.Second, func() bool {
		var ok bool
		task, ok = o.Progress(url)
		return ok && task.State == state
	}, "task %s never reached %s", url, state)
	return task
}

func TestOrchestrator(t *testing.T) {
	t.Run("Start registers a queued task", func(t *testing.T) {
		transport := newFakeTransport()
		o, _ := newTestOrchestrator(t, transport, time.Minute)

		if err := o.Start(trackURL, "Japji Sahib"); err != nil {
			t.Fatalf("Start failed: %v", err)
		}
		task, ok := o.Progress(trackURL)
		if !ok {
			t.Fatal("expected task to exist")
		}
		if task.State != StateQueued || task.ExpectedBytes != -1 || task.Progress != 0 {
			t.Errorf("unexpected initial task: %+v", task)
		}
		if task.ID == "" || task.StartedAt.IsZero() {
			t.Errorf("expected ID and start time, got %+v", task)
		}
	})

	t.Run("Start twice is a no-op", func(t *testing.T) {
		transport := newFakeTransport()
		o, _ := newTestOrchestrator(t, transport, time.Minute)

		o.Start(trackURL, "Japji Sahib")
		first, _ := o.Progress(trackURL)
		o.Start(trackURL, "Japji Sahib")
		second, _ := o.Progress(trackURL)

		if transport.begun(trackURL) != 1 {
			t.Errorf("expected one transfer, got %d", transport.begun(trackURL))
		}
		if len(o.Tasks()) != 1 {
			t.Errorf("expected one task, got %d", len(o.Tasks()))
		}
		if first.ID != second.ID {
			t.Error("expected the original task to be kept")
		}
	})

	t.Run("Start rejects empty URL", func(t *testing.T) {
		o, _ := newTestOrchestrator(t, newFakeTransport(), time.Minute)
		if err := o.Start("  ", "x"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("progress updates counters", func(t *testing.T) {
		transport := newFakeTransport()
		o, _ := newTestOrchestrator(t, transport, time.Minute)
		o.Start(trackURL, "Japji Sahib")

		sink := transport.sink(trackURL, 0)
		sink.Progress(0, -1)
		task := waitForState(t, o, trackURL, StateDownloading)
		if task.Progress != 0 || task.ExpectedBytes != -1 {
			t.Errorf("expected unknown total to keep progress at 0, got %+v", task)
		}

		sink.Progress(250, 1000)
		tu.Eventually(t, time.Second, func() bool {
			task, _ := o.Progress(trackURL)
			return task.WrittenBytes == 250
		}, "progress never applied")
		task, _ = o.Progress(trackURL)
		if task.Progress != 0.25 || task.ExpectedBytes != 1000 {
			t.Errorf("expected 25%% of 1000, got %+v", task)
		}
	})

	t.Run("Cancel removes the task and ignores late callbacks", func(t *testing.T) {
		transport := newFakeTransport()
		o, _ := newTestOrchestrator(t, transport, time.Minute)
		sub := o.Subscribe()
		defer sub.Unsubscribe()

		o.Start(trackURL, "Japji Sahib")
		if err := o.Cancel(trackURL); err != nil {
			t.Fatalf("Cancel failed: %v", err)
		}
		if _, ok := o.Progress(trackURL); ok {
			t.Fatal("expected task to be gone after Cancel returns")
		}
		if _, _, cancels := transport.transfer(trackURL, 0).counts(); cancels != 1 {
			t.Errorf("expected transfer to be cancelled once, got %d", cancels)
		}

		sink := transport.sink(trackURL, 0)
		sink.Progress(500, 1000)
		sink.Finished(writePayload(t, 10))
		sink.Failed(shared.ErrNetwork)

		// Progress runs on the loop after the callbacks above.
		if _, ok := o.Progress(trackURL); ok {
			t.Error("late callback resurrected the task")
		}
		if len(o.Tasks()) != 0 {
			t.Errorf("expected no tasks, got %d", len(o.Tasks()))
		}
		select {
		case c := <-sub.C():
			t.Errorf("unexpected completion %+v", c)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("Cancel unknown URL", func(t *testing.T) {
		o, _ := newTestOrchestrator(t, newFakeTransport(), time.Minute)
		if err := o.Cancel(trackURL); !errors.Is(err, shared.ErrTaskNotFound) {
			t.Errorf("expected ErrTaskNotFound, got %v", err)
		}
	})

	t.Run("Pause and Resume", func(t *testing.T) {
		transport := newFakeTransport()
		o, _ := newTestOrchestrator(t, transport, time.Minute)
		o.Start(trackURL, "Japji Sahib")
		transport.sink(trackURL, 0).Progress(100, 1000)
		waitForState(t, o, trackURL, StateDownloading)

		if err := o.Pause(trackURL); err != nil {
			t.Fatalf("Pause failed: %v", err)
		}
		task, _ := o.Progress(trackURL)
		if task.State != StatePaused || task.WrittenBytes != 100 {
			t.Errorf("expected paused with bytes kept, got %+v", task)
		}

		if err := o.Resume(trackURL); err != nil {
			t.Fatalf("Resume failed: %v", err)
		}
		task, _ = o.Progress(trackURL)
		if task.State != StateDownloading {
			t.Errorf("expected downloading, got %s", task.State)
		}

		paused, resumed, _ := transport.transfer(trackURL, 0).counts()
		if paused != 1 || resumed != 1 {
			t.Errorf("expected one pause and one resume, got %d and %d", paused, resumed)
		}

		if err := o.Pause("https://example.com/other.mp3"); !errors.Is(err, shared.ErrTaskNotFound) {
			t.Errorf("expected ErrTaskNotFound, got %v", err)
		}
	})

	t.Run("completion moves the file and reports a relative path", func(t *testing.T) {
		transport := newFakeTransport()
		o, dir := newTestOrchestrator(t, transport, time.Minute)
		sub := o.Subscribe()
		defer sub.Unsubscribe()

		o.Start(trackURL, "Japji Sahib")
		payload := writePayload(t, 4096)
		transport.sink(trackURL, 0).Finished(payload)

		var c Completion
		select {
		case c = <-sub.C():
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for completion")
		}

		if c.URL != trackURL {
			t.Errorf("expected URL %s, got %s", trackURL, c.URL)
		}
		if c.RelativePath != "Katha/Japji Sahib.mp3" || filepath.IsAbs(c.RelativePath) {
			t.Errorf("expected folder and file name, got %q", c.RelativePath)
		}
		if c.SizeBytes != 4096 {
			t.Errorf("expected 4096 bytes, got %d", c.SizeBytes)
		}

		dest := filepath.Join(dir, c.RelativePath)
		info, err := os.Stat(dest)
		if err != nil {
			t.Fatalf("expected stored file: %v", err)
		}
		if info.Size() != c.SizeBytes {
			t.Errorf("file size %d does not match reported %d", info.Size(), c.SizeBytes)
		}
		tu.AssertFileMissing(t, payload)

		task := waitForState(t, o, trackURL, StateCompleted)
		if task.Progress != 1 || task.WrittenBytes != 4096 {
			t.Errorf("unexpected completed task: %+v", task)
		}
	})

	t.Run("completion overwrites a stale file", func(t *testing.T) {
		transport := newFakeTransport()
		o, dir := newTestOrchestrator(t, transport, time.Minute)
		sub := o.Subscribe()
		defer sub.Unsubscribe()

		if err := os.MkdirAll(filepath.Join(dir, "Katha"), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, "Katha", "Japji Sahib.mp3"), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}

		o.Start(trackURL, "Japji Sahib")
		transport.sink(trackURL, 0).Finished(writePayload(t, 10))
		<-sub.C()

		if got := tu.MustReadFile(t, filepath.Join(dir, "Katha", "Japji Sahib.mp3")); got != strings.Repeat("x", 10) {
			t.Errorf("expected new content, got %q", got)
		}
	})

	t.Run("same file name in different folders", func(t *testing.T) {
		transport := newFakeTransport()
		o, dir := newTestOrchestrator(t, transport, time.Minute)
		sub := o.Subscribe()
		defer sub.Unsubscribe()

		other := "https://example.com/audios/Keertan/Japji%20Sahib.mp3"
		o.Start(trackURL, "Japji Sahib")
		o.Start(other, "Japji Sahib")
		transport.sink(trackURL, 0).Finished(writePayload(t, 10))
		transport.sink(other, 0).Finished(writePayload(t, 20))

		paths := map[string]string{}
		for range 2 {
			select {
			case c := <-sub.C():
				paths[c.URL] = c.RelativePath
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for completion")
			}
		}
		if paths[trackURL] == paths[other] {
			t.Fatalf("expected distinct paths, both got %q", paths[trackURL])
		}
		if got := tu.MustReadFile(t, filepath.Join(dir, paths[trackURL])); len(got) != 10 {
			t.Errorf("first download was overwritten, got %d bytes", len(got))
		}
		if got := tu.MustReadFile(t, filepath.Join(dir, paths[other])); len(got) != 20 {
			t.Errorf("expected second download, got %d bytes", len(got))
		}
	})

	t.Run("loop keeps serving while the payload moves", func(t *testing.T) {
		transport := newFakeTransport()
		o, dir := newTestOrchestrator(t, transport, time.Minute)
		sub := o.Subscribe()
		defer sub.Unsubscribe()

		moving, release := make(chan struct{}), make(chan struct{})
		o.move = func(src, dst string) error {
			close(moving)
			<-release
			return moveFile(src, dst)
		}

		o.Start(trackURL, "Japji Sahib")
		transport.sink(trackURL, 0).Finished(writePayload(t, 10))
		select {
		case <-moving:
		case <-time.After(2 * time.Second):
			t.Fatal("move never started")
		}

		done := make(chan []Task, 1)
		go func() { done <- o.Tasks() }()
		select {
		case tasks := <-done:
			if len(tasks) != 1 || tasks[0].State.IsTerminal() {
				t.Errorf("expected one active task during the move, got %+v", tasks)
			}
		case <-time.After(time.Second):
			t.Fatal("loop blocked while the payload was moving")
		}

		close(release)
		select {
		case c := <-sub.C():
			tu.AssertFileExists(t, filepath.Join(dir, c.RelativePath))
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for completion")
		}
	})

	t.Run("cancel during the move emits no completion", func(t *testing.T) {
		transport := newFakeTransport()
		o, _ := newTestOrchestrator(t, transport, time.Minute)
		sub := o.Subscribe()
		defer sub.Unsubscribe()

		moving, release := make(chan struct{}), make(chan struct{})
		o.move = func(src, dst string) error {
			close(moving)
			<-release
			return moveFile(src, dst)
		}

		o.Start(trackURL, "Japji Sahib")
		transport.sink(trackURL, 0).Finished(writePayload(t, 10))
		<-moving
		if err := o.Cancel(trackURL); err != nil {
			t.Fatalf("Cancel failed: %v", err)
		}
		close(release)

		select {
		case c := <-sub.C():
			t.Errorf("unexpected completion %+v", c)
		case <-time.After(100 * time.Millisecond):
		}
		if _, ok := o.Progress(trackURL); ok {
			t.Error("stored payload resurrected the cancelled task")
		}
	})

	t.Run("storage failure marks the task failed", func(t *testing.T) {
		transport := newFakeTransport()
		o, _ := newTestOrchestrator(t, transport, time.Minute)
		sub := o.Subscribe()
		defer sub.Unsubscribe()

		o.Start(trackURL, "Japji Sahib")
		transport.sink(trackURL, 0).Finished(filepath.Join(t.TempDir(), "missing.part"))

		task := waitForState(t, o, trackURL, StateFailed)
		if !strings.Contains(task.Err, shared.ErrStorage.Error()) {
			t.Errorf("expected storage error, got %q", task.Err)
		}
		select {
		case c := <-sub.C():
			t.Errorf("unexpected completion %+v", c)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("failed tasks are purged after the grace period", func(t *testing.T) {
		transport := newFakeTransport()
		o, _ := newTestOrchestrator(t, transport, 50*time.Millisecond)

		o.Start(trackURL, "Japji Sahib")
		transport.sink(trackURL, 0).Failed(shared.ErrNetwork)
		waitForState(t, o, trackURL, StateFailed)

		tu.Eventually(t, 2*time.Second, func() bool {
			_, ok := o.Progress(trackURL)
			return !ok
		}, "failed task was never purged")
	})

	t.Run("restart inside the grace period survives the old purge", func(t *testing.T) {
		transport := newFakeTransport()
		o, _ := newTestOrchestrator(t, transport, 100*time.Millisecond)

		o.Start(trackURL, "Japji Sahib")
		transport.sink(trackURL, 0).Failed(shared.ErrNetwork)
		failed := waitForState(t, o, trackURL, StateFailed)

		o.Start(trackURL, "Japji Sahib")
		restarted, ok := o.Progress(trackURL)
		if !ok || restarted.ID == failed.ID || restarted.State != StateQueued {
			t.Fatalf("expected a fresh queued task, got %+v", restarted)
		}

		time.Sleep(250 * time.Millisecond)
		current, ok := o.Progress(trackURL)
		if !ok || current.ID != restarted.ID {
			t.Error("stale purge removed the restarted task")
		}
	})

	t.Run("transport Begin error fails the task", func(t *testing.T) {
		transport := newFakeTransport()
		transport.err = shared.ErrNetwork
		o, _ := newTestOrchestrator(t, transport, time.Minute)

		if err := o.Start(trackURL, "Japji Sahib"); err != nil {
			t.Fatalf("Start should not surface transport errors, got %v", err)
		}
		task, _ := o.Progress(trackURL)
		if task.State != StateFailed {
			t.Errorf("expected failed, got %s", task.State)
		}
	})

	t.Run("Tasks are ordered by start time", func(t *testing.T) {
		o, _ := newTestOrchestrator(t, newFakeTransport(), time.Minute)
		urls := []string{"https://example.com/c.mp3", "https://example.com/a.mp3", "https://example.com/b.mp3"}
		for _, u := range urls {
			o.Start(u, "")
			time.Sleep(2 * time.Millisecond)
		}

		tasks := o.Tasks()
		if len(tasks) != 3 {
			t.Fatalf("expected 3 tasks, got %d", len(tasks))
		}
		for i, u := range urls {
			if tasks[i].URL != u {
				t.Errorf("task %d: expected %s, got %s", i, u, tasks[i].URL)
			}
		}
		if tasks[1].Name != "a" {
			t.Errorf("expected name derived from URL, got %q", tasks[1].Name)
		}
	})

	t.Run("Updates carry snapshots", func(t *testing.T) {
		o, _ := newTestOrchestrator(t, newFakeTransport(), time.Minute)
		o.Start(trackURL, "Japji Sahib")
		o.Cancel(trackURL)

		var got []ProgressUpdate
		for len(got) < 2 {
			select {
			case u := <-o.Updates():
				got = append(got, u)
			case <-time.After(time.Second):
				t.Fatalf("expected 2 updates, got %d", len(got))
			}
		}
		if got[0].Task.State != StateQueued || got[0].Removed {
			t.Errorf("unexpected first update: %+v", got[0])
		}
		if !got[1].Removed {
			t.Errorf("expected removal update, got %+v", got[1])
		}
	})

	t.Run("Close cancels transfers and closes subscriptions", func(t *testing.T) {
		transport := newFakeTransport()
		o, _ := newTestOrchestrator(t, transport, time.Minute)
		sub := o.Subscribe()
		o.Start(trackURL, "Japji Sahib")

		o.Close()
		if _, _, cancels := transport.transfer(trackURL, 0).counts(); cancels != 1 {
			t.Errorf("expected transfer cancelled on close, got %d", cancels)
		}
		select {
		case _, ok := <-sub.C():
			if ok {
				t.Error("expected closed subscription")
			}
		case <-time.After(time.Second):
			t.Error("subscription was not closed")
		}
		if err := o.Start(trackURL, "x"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable after close, got %v", err)
		}
	})
}

func TestFileName(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://example.com/audios/Katha/Japji%20Sahib.mp3", "Japji Sahib.mp3"},
		{"https://example.com/audios/Katha/a.b--c.mp3", "a.b--c.mp3"},
		{"https://example.com/audios/Katha/Rehras.mp3?x=1", "Rehras.mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := FileName(tt.url); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}

	t.Run("fallback", func(t *testing.T) {
		for _, u := range []string{"https://example.com", "https://example.com/", "::not a url"} {
			got := FileName(u)
			if !strings.HasSuffix(got, ".mp3") || len(got) != 36+4 {
				t.Errorf("expected uuid.mp3 for %q, got %q", u, got)
			}
		}
	})
}

func TestRelativePath(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://example.com/audios/Katha/Japji%20Sahib.mp3", "Katha/Japji Sahib.mp3"},
		{"https://example.com/audios/Katha/Giani_Sant_Singh/Rehras.mp3", "Katha/Giani_Sant_Singh/Rehras.mp3"},
		{"https://example.com/Rehras.mp3", "Rehras.mp3"},
		{"https://example.com/audios/../../etc/Rehras.mp3", "etc/Rehras.mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got := RelativePath(tt.url)
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
			if !filepath.IsLocal(filepath.FromSlash(got)) {
				t.Errorf("expected a local path, got %q", got)
			}
		})
	}
}

func TestPersistCompletions(t *testing.T) {
	transport := newFakeTransport()
	o, dir := newTestOrchestrator(t, transport, time.Minute)
	store := tu.NewFakeTrackStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := o.Subscribe()
	done := make(chan struct{})
	go func() {
		PersistCompletions(ctx, sub, store, shared.NewLogger(io.Discard))
		close(done)
	}()

	o.Start(trackURL, "Japji Sahib")
	transport.sink(trackURL, 0).Finished(writePayload(t, 2048))

	tu.Eventually(t, 2*time.Second, func() bool {
		rec, ok := store.Record(trackURL)
		return ok && rec.Downloaded
	}, "completion was never persisted")

	rec, _ := store.Record(trackURL)
	if rec.LocalPath != "Katha/Japji Sahib.mp3" || rec.SizeBytes != 2048 || rec.Name != "Japji Sahib" {
		t.Errorf("unexpected record: %+v", rec)
	}
	tu.AssertFileExists(t, filepath.Join(dir, rec.LocalPath))

	t.Run("store errors are swallowed", func(t *testing.T) {
		store.SetErr(errors.New("disk full"))
		other := "https://example.com/audios/Katha/Other.mp3"
		o.Start(other, "Other")
		transport.sink(other, 0).Finished(writePayload(t, 1))
		tu.Eventually(t, 2*time.Second, func() bool {
			return store.Calls("CreateOrGetTrack") >= 2
		}, "second completion never consumed")
	})

	sub.Unsubscribe()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("PersistCompletions did not return after Unsubscribe")
	}
}
