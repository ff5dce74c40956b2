package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Listing and transfer errors
	ErrNetwork = fmt.Errorf("network request failed")
	ErrParse   = fmt.Errorf("failed to parse listing")
	ErrStorage = fmt.Errorf("storage operation failed")

	// Record store errors
	ErrPersistence   = fmt.Errorf("record store write failed")
	ErrTrackNotFound = fmt.Errorf("track not found")

	// Orchestration and playback errors
	ErrTaskNotFound       = fmt.Errorf("download task not found")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlayerUnavailable  = fmt.Errorf("no media player available")
	ErrNoActiveTrack      = fmt.Errorf("no active track")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
