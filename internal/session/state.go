// Package session implements the capture session manager: the recording
// lifecycle state machine that owns the capture device, the encoder and the
// chunk buffer for one recording attempt at a time.
package session

// State is the lifecycle position of the active capture session.
type State string

const (
	Idle       State = "idle"
	Requesting State = "requesting"
	Recording  State = "recording"
	Paused     State = "paused"
	Stopped    State = "stopped"
	Failed     State = "failed"
)

func (s State) String() string { return string(s) }

// Active reports whether a session in this state holds platform resources
// and blocks a new start.
func (s State) Active() bool {
	switch s {
	case Requesting, Recording, Paused:
		return true
	default:
		return false
	}
}

// Status messages shown alongside the controls.
const (
	StatusReady       = "Ready to record."
	StatusRequesting  = "Requesting screen share permission..."
	StatusStarted     = "Recording started!"
	StatusPaused      = "Recording paused."
	StatusResumed     = "Recording resumed."
	StatusStopped     = "Recording stopped!"
	StatusArtifact    = "Recording ready! Click download to save."
	StatusNoArtifact  = "No recording available to download."
	StatusErrorPrefix = "Error: "
)
