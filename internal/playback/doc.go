// Package playback plays archive tracks and remembers where the listener stopped.
//
// [Session] owns the loaded track. It picks the local copy when one exists on disk, streams the
// remote URL otherwise, and feeds the [Player] time signal to a [Synchronizer].
//
// [Synchronizer] coalesces position writes: it persists once the live position drifts
// [DriftThreshold] seconds from the last written value, and on every lifecycle flush (pause, end,
// resign-active, background, track switch, close) regardless of drift.
//
// [Launcher] is a [Player] backed by an external program such as mpv or vlc.
package playback
