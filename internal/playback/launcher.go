package playback

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/veechar/internal/shared"
)

const tickInterval = 100 * time.Millisecond

// offsetFlags maps known players to the flag that sets the start position. A trailing space means
// the value is a separate argument.
var offsetFlags = map[string]string{
	"mpv":     "--start=",
	"vlc":     "--start-time=",
	"cvlc":    "--start-time=",
	"mplayer": "-ss ",
	"ffplay":  "-ss ",
}

// LauncherOptions configures a [Launcher].
type LauncherOptions struct {
	Command   string
	Args      []string
	StartFlag string // empty to detect from Command
	Logger    *log.Logger
}

// Launcher is a [Player] that runs an external program per play span.
//
// Pausing stops the process and playing starts a new one at the paused offset. Positions are
// derived from wall time since launch, reported every 100 ms. The duration is not known to the
// launcher, so ready events carry zero.
type Launcher struct {
	command   string
	args      []string
	startFlag string
	logger    *log.Logger
	events    chan PlayerEvent
	start     func(name string, args ...string) (*exec.Cmd, error)

	mu        sync.Mutex
	source    string
	offset    float64
	startedAt time.Time
	playing   bool
	cmd       *exec.Cmd
	gen       int
}

// NewLauncher creates a launcher. The command must be on PATH.
func NewLauncher(opts LauncherOptions) (*Launcher, error) {
	if opts.Command == "" {
		return nil, fmt.Errorf("%w: no player command configured", shared.ErrPlayerUnavailable)
	}
	path, err := exec.LookPath(opts.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", shared.ErrPlayerUnavailable, opts.Command, err)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	flag := opts.StartFlag
	if flag == "" {
		base := strings.ToLower(strings.TrimSuffix(filepath.Base(opts.Command), filepath.Ext(opts.Command)))
		if f, ok := offsetFlags[base]; ok {
			flag = f
			opts.Logger.Debug("detected player offset flag", "player", base, "flag", flag)
		}
	}

	return &Launcher{
		command:   path,
		args:      opts.Args,
		startFlag: flag,
		logger:    opts.Logger,
		events:    make(chan PlayerEvent, 16),
		start:     startCommand,
	}, nil
}

func startCommand(name string, args ...string) (*exec.Cmd, error) {
	cmd := exec.Command(name, args...)
	return cmd, cmd.Start()
}

// Events returns the event channel.
func (l *Launcher) Events() <-chan PlayerEvent {
	return l.events
}

// Load stops any running process and selects source. startAt becomes the launch offset.
func (l *Launcher) Load(source string, startAt float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	l.source = source
	l.offset = max(startAt, 0)
	l.emit(PlayerEvent{Kind: EventReady, Source: l.source})
	return nil
}

// Play launches the player at the current offset.
func (l *Launcher) Play() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.playing {
		return nil
	}
	if l.source == "" {
		return shared.ErrNoActiveTrack
	}
	return l.launchLocked()
}

// Pause stops the process and keeps the position as the next offset.
func (l *Launcher) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.playing {
		return nil
	}
	l.offset = l.positionLocked()
	l.stopLocked()
	return nil
}

// Seek sets the offset, relaunching when playing.
func (l *Launcher) Seek(seconds float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	wasPlaying := l.playing
	l.stopLocked()
	l.offset = max(seconds, 0)
	if wasPlaying {
		return l.launchLocked()
	}
	return nil
}

// Stop ends playback and forgets the source.
func (l *Launcher) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	l.source = ""
	l.offset = 0
	return nil
}

// Position returns the current estimated position.
func (l *Launcher) Position() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positionLocked()
}

func (l *Launcher) positionLocked() float64 {
	if !l.playing {
		return l.offset
	}
	return l.offset + time.Since(l.startedAt).Seconds()
}

func (l *Launcher) launchLocked() error {
	args := buildArgs(l.args, l.startFlag, l.offset, l.source)
	cmd, err := l.start(l.command, args...)
	if err != nil {
		return fmt.Errorf("%w: failed to start %s: %v", shared.ErrPlayerUnavailable, l.command, err)
	}

	l.gen++
	l.cmd = cmd
	l.playing = true
	l.startedAt = time.Now()
	l.logger.Debug("player launched", "command", l.command, "offset", l.offset)

	gen := l.gen
	exited := make(chan struct{})
	go l.wait(cmd, gen, exited)
	go l.tick(gen, exited)
	return nil
}

// wait reports Ended when the process exits on its own.
func (l *Launcher) wait(cmd *exec.Cmd, gen int, exited chan struct{}) {
	err := cmd.Wait()
	close(exited)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gen != gen {
		return
	}
	if err != nil {
		l.logger.Warn("player exited with error", "error", err)
	}
	l.playing = false
	l.cmd = nil
	l.offset = 0
	l.emit(PlayerEvent{Kind: EventEnded, Source: l.source})
}

func (l *Launcher) tick(gen int, exited <-chan struct{}) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-exited:
			return
		case <-ticker.C:
			l.mu.Lock()
			if l.gen != gen || !l.playing {
				l.mu.Unlock()
				return
			}
			l.emit(PlayerEvent{Kind: EventTick, Position: l.positionLocked(), Source: l.source})
			l.mu.Unlock()
		}
	}
}

// stopLocked kills the running process. Its wait goroutine sees a newer generation and stays quiet.
func (l *Launcher) stopLocked() {
	l.gen++
	if l.cmd != nil && l.cmd.Process != nil {
		if err := l.cmd.Process.Kill(); err != nil {
			l.logger.Debug("player already exited", "error", err)
		}
	}
	l.cmd = nil
	l.playing = false
}

// emit sends without blocking. Ticks are dropped when the reader is behind.
func (l *Launcher) emit(ev PlayerEvent) {
	select {
	case l.events <- ev:
	default:
	}
}

// buildArgs assembles the command line: configured args, the offset flag when the offset is
// positive, then the source.
func buildArgs(base []string, flag string, offset float64, source string) []string {
	args := append([]string(nil), base...)
	if flag != "" && offset > 0 {
		value := strconv.FormatFloat(offset, 'f', 1, 64)
		if name, ok := strings.CutSuffix(flag, " "); ok {
			args = append(args, name, value)
		} else {
			args = append(args, flag+value)
		}
	}
	return append(args, source)
}
