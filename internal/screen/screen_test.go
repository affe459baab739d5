package screen

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
	"github.com/GriffinCanCode/screenrec/internal/session"
)

func noiseFrame(t *testing.T, seed int64) []byte {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(r.Intn(256))})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fakeGrabber serves frames in order, repeating the last one. After failAfter
// successful grabs every call fails.
type fakeGrabber struct {
	mu        sync.Mutex
	frames    [][]byte
	grabs     int
	failAfter int
	openErr   error
	closed    int
}

func (g *fakeGrabber) Grab(ctx context.Context) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failAfter >= 0 && g.grabs >= g.failAfter {
		return nil, errors.New("could not create image from display")
	}
	i := min(g.grabs, len(g.frames)-1)
	g.grabs++
	return g.frames[i], nil
}

func (g *fakeGrabber) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed++
	return nil
}

func (g *fakeGrabber) closeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func newTestProvider(g *fakeGrabber, dist int) *Provider {
	return NewProvider(Options{
		NewGrabber: func() (Grabber, error) {
			if g.openErr != nil {
				return nil, g.openErr
			}
			return g, nil
		},
		FrameRate:        100,
		SceneCutDistance: dist,
	})
}

func TestNewProviderDefaults(t *testing.T) {
	p := NewProvider(Options{})
	assert.Equal(t, DefaultFrameRate, p.FrameRate())
	assert.Equal(t, DefaultSceneCutDistance, p.sceneDist)
	assert.NotNil(t, p.newGrabber)
}

func TestRequestCaptureRejectsAudio(t *testing.T) {
	p := newTestProvider(&fakeGrabber{failAfter: -1}, 10)
	_, err := p.RequestCapture(context.Background(), session.CaptureRequest{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidArgument))
}

func TestRequestCapturePermissionDenied(t *testing.T) {
	t.Run("no tool", func(t *testing.T) {
		g := &fakeGrabber{openErr: errors.New("no screenshot tool found")}
		_, err := newTestProvider(g, 10).RequestCapture(context.Background(), session.CaptureRequest{VideoOnly: true})
		assert.True(t, apperrors.IsCode(err, apperrors.CodePermissionDenied))
	})
	t.Run("probe frame fails", func(t *testing.T) {
		g := &fakeGrabber{failAfter: 0}
		_, err := newTestProvider(g, 10).RequestCapture(context.Background(), session.CaptureRequest{VideoOnly: true})
		assert.True(t, apperrors.IsCode(err, apperrors.CodePermissionDenied))
		assert.Equal(t, 1, g.closeCount(), "grabber must be released")
	})
}

func TestTrackDeliversFramesAtConstantRate(t *testing.T) {
	frame := noiseFrame(t, 1)
	g := &fakeGrabber{frames: [][]byte{frame}, failAfter: -1}
	h, err := newTestProvider(g, 10).RequestCapture(context.Background(), session.CaptureRequest{VideoOnly: true})
	require.NoError(t, err)

	tracks := h.Tracks()
	require.Len(t, tracks, 1)
	track := tracks[0]
	assert.Equal(t, "video", track.Kind())
	assert.Equal(t, "screen-1", track.ID())

	for i := 0; i < 3; i++ {
		select {
		case f := <-track.Frames():
			assert.Equal(t, frame, f.Data)
			assert.False(t, f.At.IsZero())
		case <-time.After(2 * time.Second):
			t.Fatal("no frame delivered")
		}
	}

	track.Stop()
	track.Stop()
	assert.Equal(t, 1, g.closeCount())
	select {
	case <-track.Ended():
	default:
		t.Fatal("Ended should be closed after Stop")
	}
	for range track.Frames() {
	}
}

func TestTrackEndsAfterRepeatedGrabFailures(t *testing.T) {
	g := &fakeGrabber{frames: [][]byte{noiseFrame(t, 1)}, failAfter: 1}
	h, err := newTestProvider(g, 10).RequestCapture(context.Background(), session.CaptureRequest{VideoOnly: true})
	require.NoError(t, err)
	track := h.Tracks()[0]

	select {
	case <-track.Ended():
	case <-time.After(2 * time.Second):
		t.Fatal("track should end once the platform stops delivering frames")
	}
	track.Stop()
	assert.Equal(t, 1, g.closeCount())
}

func TestTrackReportsSceneCuts(t *testing.T) {
	a, b := noiseFrame(t, 1), noiseFrame(t, 2)
	g := &fakeGrabber{frames: [][]byte{a, a, b}, failAfter: -1}
	h, err := newTestProvider(g, 0).RequestCapture(context.Background(), session.CaptureRequest{VideoOnly: true})
	require.NoError(t, err)
	track := h.Tracks()[0]
	defer track.Stop()

	reporter, ok := track.(session.SceneReporter)
	require.True(t, ok)
	require.Eventually(t, func() bool { return len(reporter.SceneCuts()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestSceneDetector(t *testing.T) {
	a, b := noiseFrame(t, 1), noiseFrame(t, 2)

	d := newSceneDetector(0)
	assert.False(t, d.observe(a, 0), "first frame is the baseline")
	assert.False(t, d.observe(a, time.Second))
	assert.True(t, d.observe(b, 2*time.Second))
	assert.False(t, d.observe([]byte("not an image"), 3*time.Second))
	assert.Equal(t, []time.Duration{2 * time.Second}, d.cutsCopy())

	strict := newSceneDetector(64)
	strict.observe(a, 0)
	assert.False(t, strict.observe(b, time.Second), "distance never exceeds the hash width")
}
