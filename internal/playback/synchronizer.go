package playback

import (
	"math"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/veechar/internal/models"
)

// DriftThreshold is the position change, in seconds, that triggers a write during playback.
const DriftThreshold = 5.0

// FlushReason names the lifecycle event behind an unconditional write.
type FlushReason string

const (
	FlushPause        FlushReason = "pause"
	FlushEnd          FlushReason = "end"
	FlushResignActive FlushReason = "resign-active"
	FlushBackground   FlushReason = "background"
	FlushTrackSwitch  FlushReason = "track-switch"
	FlushClose        FlushReason = "close"
)

// Synchronizer decides when the playback position of the active track is written to the store.
//
// Drift is measured in playback seconds, not wall time. Store errors are logged and dropped. A
// Synchronizer is not safe for concurrent use; [Session] drives it from its event loop.
type Synchronizer struct {
	store  models.TrackStore
	logger *log.Logger

	url       string
	active    bool
	live      float64
	persisted float64
	duration  float64
}

// NewSynchronizer creates a synchronizer with no active track.
func NewSynchronizer(store models.TrackStore, logger *log.Logger) *Synchronizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Synchronizer{store: store, logger: logger}
}

// Begin makes url the active track. initial is the position already stored for it.
func (s *Synchronizer) Begin(url string, initial float64) {
	s.url = url
	s.active = true
	s.live = initial
	s.persisted = initial
	s.duration = 0
}

// Observe records the live position and writes it once it has drifted far enough.
func (s *Synchronizer) Observe(seconds float64) {
	if !s.active || !isFinite(seconds) {
		return
	}
	s.live = max(seconds, 0)
	if math.Abs(s.live-s.persisted) >= DriftThreshold {
		s.persist("drift")
	}
}

// Rewind sets the live position to zero without writing.
func (s *Synchronizer) Rewind() {
	if s.active {
		s.live = 0
	}
}

// Flush writes the live position regardless of drift.
func (s *Synchronizer) Flush(reason FlushReason) {
	if !s.active {
		return
	}
	s.persist(string(reason))
}

// ObserveDuration stores a measured duration that is finite, positive and new.
func (s *Synchronizer) ObserveDuration(seconds float64) {
	if !s.active || !isFinite(seconds) || seconds <= 0 || seconds == s.duration {
		return
	}
	s.duration = seconds
	if err := s.store.UpdateDuration(s.url, seconds); err != nil {
		s.logger.Warn("failed to store duration", "url", s.url, "error", err)
	}
}

// End detaches the active track. Later calls are no-ops until the next Begin.
func (s *Synchronizer) End() {
	s.active = false
	s.url = ""
}

// Active reports whether a track is attached.
func (s *Synchronizer) Active() bool { return s.active }

// Live returns the most recent observed position.
func (s *Synchronizer) Live() float64 { return s.live }

// Persisted returns the last position written, or the initial one.
func (s *Synchronizer) Persisted() float64 { return s.persisted }

// persist writes the live position. The reference moves even when the write fails.
func (s *Synchronizer) persist(reason string) {
	value := s.live
	s.persisted = value
	if err := s.store.UpdatePlaybackPosition(s.url, value); err != nil {
		s.logger.Warn("failed to store playback position", "url", s.url, "position", value, "reason", reason, "error", err)
		return
	}
	s.logger.Debug("playback position stored", "url", s.url, "position", value, "reason", reason)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
