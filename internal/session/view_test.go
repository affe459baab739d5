package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewFor(t *testing.T) {
	tests := []struct {
		state                        State
		start, pause, stop, download bool
		pauseLabel                   string
	}{
		{Idle, true, false, false, false, LabelPause},
		{Requesting, false, false, false, false, LabelPause},
		{Recording, false, true, true, false, LabelPause},
		{Paused, false, true, true, false, LabelResume},
		{Stopped, true, false, false, true, LabelPause},
		{Failed, true, false, false, false, LabelPause},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			v := ViewFor(tt.state, "status")
			assert.Equal(t, tt.state, v.State)
			assert.Equal(t, "status", v.Status)
			assert.Equal(t, tt.start, v.Start.Enabled, "start")
			assert.Equal(t, tt.pause, v.Pause.Enabled, "pause")
			assert.Equal(t, tt.stop, v.Stop.Enabled, "stop")
			assert.Equal(t, tt.download, v.Download.Enabled, "download")
			assert.Equal(t, tt.pauseLabel, v.Pause.Label)
		})
	}
}

func TestStateActive(t *testing.T) {
	for _, s := range []State{Requesting, Recording, Paused} {
		assert.True(t, s.Active(), s)
	}
	for _, s := range []State{Idle, Stopped, Failed} {
		assert.False(t, s.Active(), s)
	}
}
