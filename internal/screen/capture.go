package screen

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
	"github.com/GriffinCanCode/screenrec/internal/session"
)

// Provider defaults.
const (
	DefaultFrameRate        = 5.0
	DefaultSceneCutDistance = 10
	// Consecutive grab failures after which the track counts as ended by
	// the platform (display locked, permission revoked).
	MaxGrabFailures = 5
)

// Options configures a Provider.
type Options struct {
	// NewGrabber opens the screenshot source; NewPlatformGrabber when nil.
	NewGrabber       func() (Grabber, error)
	FrameRate        float64
	SceneCutDistance int
	Clock            func() time.Time
}

// Provider implements session.CaptureProvider on top of a Grabber.
type Provider struct {
	newGrabber func() (Grabber, error)
	frameRate  float64
	sceneDist  int
	clock      func() time.Time
	seq        atomic.Uint64
}

var _ session.CaptureProvider = (*Provider)(nil)

func NewProvider(opts Options) *Provider {
	p := &Provider{
		newGrabber: opts.NewGrabber,
		frameRate:  opts.FrameRate,
		sceneDist:  opts.SceneCutDistance,
		clock:      opts.Clock,
	}
	if p.newGrabber == nil {
		p.newGrabber = NewPlatformGrabber
	}
	if p.frameRate <= 0 {
		p.frameRate = DefaultFrameRate
	}
	if p.sceneDist <= 0 {
		p.sceneDist = DefaultSceneCutDistance
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	return p
}

// FrameRate is the constant rate at which tracks deliver frames.
func (p *Provider) FrameRate() float64 { return p.frameRate }

// RequestCapture opens the grabber and takes a probe frame. A probe failure
// is how a refused or missing screen-recording permission surfaces, so it is
// reported as PERMISSION_DENIED.
func (p *Provider) RequestCapture(ctx context.Context, req session.CaptureRequest) (session.DeviceHandle, error) {
	if !req.VideoOnly {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "only video capture is supported")
	}
	g, err := p.newGrabber()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePermissionDenied, "screen capture unavailable")
	}
	first, err := g.Grab(ctx)
	if err != nil {
		_ = g.Close()
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(ctx.Err(), apperrors.CodePermissionDenied, "screen capture request cancelled")
		}
		return nil, apperrors.Wrap(err, apperrors.CodePermissionDenied, "screen capture permission denied")
	}

	id := fmt.Sprintf("screen-%d", p.seq.Add(1))
	t := newTrack(id, g, trackConfig{
		interval:  time.Duration(float64(time.Second) / p.frameRate),
		sceneDist: p.sceneDist,
		clock:     p.clock,
	})
	t.start(first)
	slog.Info("screen capture granted", "track", id, "frame_rate", p.frameRate)
	return &Handle{track: t}, nil
}

// Handle is a granted capture stream with a single video track.
type Handle struct {
	track *Track
}

func (h *Handle) Tracks() []session.Track { return []session.Track{h.track} }
