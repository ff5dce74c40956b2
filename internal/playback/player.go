package playback

// EventKind identifies a [PlayerEvent].
type EventKind int

const (
	EventReady EventKind = iota
	EventTick
	EventDurationChanged
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventTick:
		return "tick"
	case EventDurationChanged:
		return "duration_changed"
	case EventEnded:
		return "ended"
	default:
		return ""
	}
}

// PlayerEvent is a signal from the player. Position is set for ticks, Duration for ready and
// duration changes. Both are in seconds.
//
// Source is the location passed to Load that the event belongs to. Players that cannot tell
// leave it empty.
type PlayerEvent struct {
	Kind     EventKind
	Position float64
	Duration float64
	Source   string
}

// Player renders audio from a file path or URL.
//
// Events is a single channel for the lifetime of the player. Implementations must not block
// sending on it from inside their own methods.
type Player interface {
	Load(source string, startAt float64) error
	Play() error
	Pause() error
	Seek(seconds float64) error
	Stop() error
	Events() <-chan PlayerEvent
}
