package library

import (
	"github.com/franz/bcr-index/internal/recording"
	"github.com/franz/bcr-index/internal/storage"
)

// StartProgress is published as soon as a pass begins, before any I/O,
// so observers can tell a starting pass from an idle controller
const StartProgress = 0.0001

// Phase names what the controller is doing
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseLoading    Phase = "loading"
	PhaseScanning   Phase = "scanning"
	PhasePersisting Phase = "persisting"
)

// State is an immutable snapshot of what the controller publishes.
// Progress is in [0, 1] and exactly 0 only while idle. Index must be
// treated as read-only.
type State struct {
	Location storage.Location
	Index    recording.Index
	Progress float64
	Phase    Phase
}

// Busy reports whether a pass is in flight
func (s State) Busy() bool {
	return s.Progress != 0
}
