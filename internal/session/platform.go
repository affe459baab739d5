package session

import (
	"context"
	"time"

	"github.com/GriffinCanCode/screenrec/internal/artifact"
)

// Frame is one captured picture, encoded as JPEG or PNG by the grabber.
type Frame struct {
	Data []byte
	At   time.Time
}

// CaptureRequest describes what the caller wants from the platform.
type CaptureRequest struct {
	VideoOnly bool
}

// CaptureProvider grants access to the screen. RequestCapture may block for
// as long as the platform permission prompt is open.
type CaptureProvider interface {
	RequestCapture(ctx context.Context, req CaptureRequest) (DeviceHandle, error)
}

// DeviceHandle is a live capture stream made of individually stoppable tracks.
type DeviceHandle interface {
	Tracks() []Track
}

// Track is one media track of a capture stream.
type Track interface {
	ID() string
	Kind() string
	Frames() <-chan Frame
	// Ended is closed once the track stops, whether through Stop or because
	// the platform ended sharing.
	Ended() <-chan struct{}
	Stop()
}

// SceneReporter is implemented by tracks that detect large picture changes.
type SceneReporter interface {
	SceneCuts() []time.Duration
}

// EncoderStatus mirrors the readable state of a recording engine.
type EncoderStatus string

const (
	EncoderRecording EncoderStatus = "recording"
	EncoderPaused    EncoderStatus = "paused"
	EncoderInactive  EncoderStatus = "inactive"
)

// EncoderFactory probes and constructs recording engines.
type EncoderFactory interface {
	Supports(format string) bool
	New(handle DeviceHandle, format string, emit func(Event)) (Encoder, error)
}

// Encoder turns a device handle into container fragments delivered as events.
type Encoder interface {
	Start() error
	Pause() error
	Resume() error
	Stop() error
	Status() EncoderStatus
}

// Presenter renders manager state to the control surface.
type Presenter interface {
	Render(v View)
	// Preview assigns ref to the playback region; "" clears it.
	Preview(ref string)
	// Download triggers a one-shot download of ref under filename.
	Download(ref, filename string)
}

// ArtifactSink issues revocable references for finished artifacts.
type ArtifactSink interface {
	Issue(a *artifact.Artifact) (string, error)
	Revoke(ref string)
}

// Controller is the command surface shared by the manager and its remote clients.
type Controller interface {
	Start(ctx context.Context) (Snapshot, error)
	Pause(ctx context.Context) (Snapshot, error)
	Resume(ctx context.Context) (Snapshot, error)
	TogglePause(ctx context.Context) (Snapshot, error)
	Stop(ctx context.Context) (Snapshot, error)
	Snapshot(ctx context.Context) (Snapshot, error)
	Download(ctx context.Context) (Offer, error)
}

// NopPresenter discards every render.
type NopPresenter struct{}

func (NopPresenter) Render(View)             {}
func (NopPresenter) Preview(string)          {}
func (NopPresenter) Download(string, string) {}
