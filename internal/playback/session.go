package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/veechar/internal/models"
	"github.com/desertthunder/veechar/internal/shared"
)

const (
	// DefaultSettleDelay is the pause between the player reporting ready and the resume seek.
	DefaultSettleDelay = 500 * time.Millisecond
	// SkipInterval is the jump used by SkipForward and SkipBackward.
	SkipInterval = 15.0
)

// Source says where the loaded track is played from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// State is a snapshot of a [Session].
type State struct {
	Loaded   bool
	URL      string
	Name     string
	Source   Source
	Location string // file path or URL handed to the player
	Position float64
	Duration float64
	Playing  bool
}

// SessionOptions configures a [Session].
type SessionOptions struct {
	Player       Player
	Store        models.TrackStore
	DownloadsDir string
	SettleDelay  time.Duration
	Logger       *log.Logger
}

// Session coordinates the player, the store and the [Synchronizer] for one listener.
//
// Player events and public operations run on one goroutine, so position writes never interleave.
type Session struct {
	player       Player
	store        models.TrackStore
	sync         *Synchronizer
	downloadsDir string
	settle       time.Duration
	logger       *log.Logger

	// Owned by the loop.
	state      State
	resumeAt   float64
	generation int

	cmds      chan func()
	quit      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewSession creates a session and starts its event loop.
func NewSession(opts SessionOptions) *Session {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Session{
		player:       opts.Player,
		store:        opts.Store,
		sync:         NewSynchronizer(opts.Store, opts.Logger),
		downloadsDir: opts.DownloadsDir,
		settle:       opts.SettleDelay,
		logger:       opts.Logger,
		cmds:         make(chan func()),
		quit:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	defer close(s.stopped)
	events := s.player.Events()
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			s.handle(ev)
		case <-s.quit:
			return
		}
	}
}

func (s *Session) do(ctx context.Context, fn func() error) error {
	var err error
	done := make(chan struct{})
	select {
	case s.cmds <- func() { err = fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return fmt.Errorf("%w: session closed", shared.ErrServiceUnavailable)
	}
	<-done
	return err
}

// Load switches to item. The previous track is flushed first. Playback starts from the local copy
// when the record says downloaded and the file exists; otherwise from the remote URL.
func (s *Session) Load(ctx context.Context, item models.AudioItem) error {
	if item.URL == "" || item.IsFolder() {
		return fmt.Errorf("%w: %q is not a playable track", shared.ErrInvalidInput, item.Name)
	}
	return s.do(ctx, func() error { return s.load(item) })
}

// Play resumes playback of the loaded track.
func (s *Session) Play() error {
	return s.do(context.Background(), func() error {
		if !s.state.Loaded {
			return shared.ErrNoActiveTrack
		}
		if err := s.player.Play(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrPlayerUnavailable, err)
		}
		s.state.Playing = true
		return nil
	})
}

// Pause stops playback and writes the position.
func (s *Session) Pause() error {
	return s.do(context.Background(), s.pause)
}

// TogglePlayPause pauses a playing track and plays a paused one.
func (s *Session) TogglePlayPause() error {
	if s.State().Playing {
		return s.Pause()
	}
	return s.Play()
}

// Seek moves to seconds, clamped to the track.
func (s *Session) Seek(seconds float64) error {
	return s.do(context.Background(), func() error { return s.seek(seconds) })
}

// SkipForward jumps [SkipInterval] seconds ahead.
func (s *Session) SkipForward() error {
	return s.do(context.Background(), func() error { return s.seek(s.state.Position + SkipInterval) })
}

// SkipBackward jumps [SkipInterval] seconds back.
func (s *Session) SkipBackward() error {
	return s.do(context.Background(), func() error { return s.seek(s.state.Position - SkipInterval) })
}

// ResignActive writes the position when the interface loses focus.
func (s *Session) ResignActive() error {
	return s.do(context.Background(), func() error {
		s.sync.Flush(FlushResignActive)
		return nil
	})
}

// Background writes the position when the process moves to the background.
func (s *Session) Background() error {
	return s.do(context.Background(), func() error {
		s.sync.Flush(FlushBackground)
		return nil
	})
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	var st State
	_ = s.do(context.Background(), func() error {
		st = s.state
		return nil
	})
	return st
}

// Close writes the position, stops the player and ends the loop.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.do(context.Background(), func() error {
			s.sync.Flush(FlushClose)
			s.sync.End()
			s.generation++
			if s.state.Loaded {
				return s.player.Stop()
			}
			return nil
		})
		close(s.quit)
		<-s.stopped
	})
	return err
}

func (s *Session) load(item models.AudioItem) error {
	if s.state.Loaded {
		s.sync.Flush(FlushTrackSwitch)
		s.sync.End()
		if err := s.player.Stop(); err != nil {
			s.logger.Warn("failed to stop player", "error", err)
		}
		s.discardEvents()
	}
	s.generation++
	s.state = State{}
	s.resumeAt = 0

	rec, err := s.store.CreateOrGetTrack(item.URL, item.Name)
	if err != nil {
		s.logger.Warn("track record unavailable, playing without history", "url", item.URL, "error", err)
		rec = models.NewTrackRecord(item.URL, item.Name)
	}

	source, location := s.resolve(rec)
	if err := s.player.Load(location, 0); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPlayerUnavailable, err)
	}

	s.state = State{
		Loaded:   true,
		URL:      rec.URL,
		Name:     rec.Name,
		Source:   source,
		Location: location,
		Position: rec.Position,
		Duration: rec.Duration,
	}
	s.resumeAt = rec.Position
	s.sync.Begin(rec.URL, rec.Position)
	s.logger.Info("track loaded", "name", rec.Name, "source", source, "resume_at", rec.Position)

	if err := s.player.Play(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPlayerUnavailable, err)
	}
	s.state.Playing = true
	return nil
}

// resolve picks the local file for a downloaded record whose file exists. A record that claims a
// download with no file behind it is corrected and streamed.
func (s *Session) resolve(rec *models.TrackRecord) (Source, string) {
	if !rec.Downloaded || rec.LocalPath == "" {
		return SourceRemote, rec.URL
	}

	rel := filepath.FromSlash(rec.LocalPath)
	if filepath.IsLocal(rel) {
		p := filepath.Join(s.downloadsDir, rel)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return SourceLocal, p
		}
	}

	s.logger.Warn("downloaded file missing, streaming instead", "url", rec.URL, "path", rec.LocalPath)
	if err := s.store.DeleteDownload(rec.URL); err != nil && !errors.Is(err, shared.ErrTrackNotFound) {
		s.logger.Warn("failed to correct track record", "url", rec.URL, "error", err)
	}
	return SourceRemote, rec.URL
}

func (s *Session) pause() error {
	if !s.state.Loaded {
		return shared.ErrNoActiveTrack
	}
	if err := s.player.Pause(); err != nil {
		s.logger.Warn("player failed to pause", "error", err)
	}
	s.state.Playing = false
	s.sync.Flush(FlushPause)
	return nil
}

func (s *Session) seek(seconds float64) error {
	if !s.state.Loaded {
		return shared.ErrNoActiveTrack
	}
	seconds = max(seconds, 0)
	if s.state.Duration > 0 {
		seconds = min(seconds, s.state.Duration)
	}
	if err := s.player.Seek(seconds); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPlayerUnavailable, err)
	}
	s.resumeAt = 0
	s.state.Position = seconds
	s.sync.Observe(seconds)
	return nil
}

// discardEvents drops events the stopped track left in the player's channel.
func (s *Session) discardEvents() {
	events := s.player.Events()
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) handle(ev PlayerEvent) {
	if !s.state.Loaded {
		return
	}
	if ev.Source != "" && ev.Source != s.state.Location {
		s.logger.Debug("dropping event for another track", "event", ev.Kind, "source", ev.Source)
		return
	}
	switch ev.Kind {
	case EventReady:
		s.setDuration(ev.Duration)
		if s.resumeAt > 0 {
			s.scheduleResume(s.resumeAt)
		}
	case EventDurationChanged:
		s.setDuration(ev.Duration)
	case EventTick:
		// Readings before the resume seek describe the start of the stream.
		if s.resumeAt > 0 {
			return
		}
		s.state.Position = ev.Position
		s.sync.Observe(ev.Position)
	case EventEnded:
		s.state.Playing = false
		s.state.Position = 0
		s.sync.Rewind()
		s.sync.Flush(FlushEnd)
	}
}

func (s *Session) setDuration(d float64) {
	if d > 0 && isFinite(d) {
		s.state.Duration = d
	}
	s.sync.ObserveDuration(d)
}

// scheduleResume seeks to target after the settle delay unless the track changed or the user
// seeked in the meantime.
func (s *Session) scheduleResume(target float64) {
	gen := s.generation
	time.AfterFunc(s.settle, func() {
		select {
		case s.cmds <- func() {
			if s.generation != gen || s.resumeAt != target {
				return
			}
			if err := s.seek(target); err != nil {
				s.logger.Warn("resume seek failed", "position", target, "error", err)
			}
		}:
		case <-s.quit:
		}
	})
}
