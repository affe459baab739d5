package session

import (
	"time"

	"github.com/GriffinCanCode/screenrec/internal/artifact"
)

// CaptureSession is one recording attempt. It exclusively owns the device
// handle, the encoder and the chunk buffer; only the manager loop touches it.
type CaptureSession struct {
	id     string
	state  State
	format string

	device  DeviceHandle
	encoder Encoder

	chunks     [][]byte
	chunkCount int
	bytes      int64

	startedAt time.Time
	resumedAt time.Time
	recorded  time.Duration

	artifact    *artifact.Artifact
	artifactRef string
	sceneCuts   []time.Duration

	stopping    bool
	stopWaiters []func(Snapshot, error)
	err         error
}

func newCaptureSession(id string) *CaptureSession {
	return &CaptureSession{id: id, state: Idle}
}

// appendChunk stores a fragment; zero-length fragments are dropped.
func (s *CaptureSession) appendChunk(fragment []byte) bool {
	if len(fragment) == 0 {
		return false
	}
	s.chunks = append(s.chunks, fragment)
	s.bytes += int64(len(fragment))
	return true
}

// releaseDevice stops every track and drops the handle. Safe to call twice.
func (s *CaptureSession) releaseDevice() {
	if s.device == nil {
		return
	}
	for _, t := range s.device.Tracks() {
		if r, ok := t.(SceneReporter); ok {
			s.sceneCuts = append(s.sceneCuts, r.SceneCuts()...)
		}
		t.Stop()
	}
	s.device = nil
}

// closeSpan folds the running recording span into the recorded total.
func (s *CaptureSession) closeSpan(now time.Time) {
	if s.state == Recording && !s.resumedAt.IsZero() {
		s.recorded += now.Sub(s.resumedAt)
		s.resumedAt = time.Time{}
	}
}

func (s *CaptureSession) recordedAt(now time.Time) time.Duration {
	if s.state == Recording && !s.resumedAt.IsZero() {
		return s.recorded + now.Sub(s.resumedAt)
	}
	return s.recorded
}

func (s *CaptureSession) chunkTotal() int {
	if s.state == Stopped {
		return s.chunkCount
	}
	return len(s.chunks)
}

func (s *CaptureSession) resolveWaiters(snap Snapshot, err error) {
	for _, w := range s.stopWaiters {
		w(snap, err)
	}
	s.stopWaiters = nil
}
