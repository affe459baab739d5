package session

// Pause control labels.
const (
	LabelPause  = "Pause"
	LabelResume = "Resume"
)

// Control is the rendered state of one button.
type Control struct {
	Enabled bool   `json:"enabled"`
	Label   string `json:"label,omitempty"`
}

// View is everything the presenter needs to draw the control surface.
type View struct {
	State    State   `json:"state"`
	Status   string  `json:"status"`
	Start    Control `json:"start"`
	Pause    Control `json:"pause"`
	Stop     Control `json:"stop"`
	Download Control `json:"download"`
}

// ViewFor maps a state to control flags. Failed renders like Idle so the
// user can retry; Requesting disables everything until permission resolves.
func ViewFor(state State, status string) View {
	v := View{
		State:  state,
		Status: status,
		Pause:  Control{Label: LabelPause},
	}
	switch state {
	case Idle, Failed:
		v.Start.Enabled = true
	case Requesting:
	case Recording:
		v.Pause.Enabled = true
		v.Stop.Enabled = true
	case Paused:
		v.Pause = Control{Enabled: true, Label: LabelResume}
		v.Stop.Enabled = true
	case Stopped:
		v.Start.Enabled = true
		v.Download.Enabled = true
	}
	return v
}
