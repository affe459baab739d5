package screen

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/GriffinCanCode/screenrec/internal/session"
)

type trackConfig struct {
	interval  time.Duration
	sceneDist int
	clock     func() time.Time
}

// Track is the video track of a screen capture. A grab loop refreshes the
// latest screenshot as fast as the tool allows (capped at the frame
// interval) and an emit loop hands the latest screenshot to the consumer at
// a constant rate, repeating it when the tool is slower than the frame rate.
type Track struct {
	id      string
	grabber Grabber
	cfg     trackConfig

	frames chan session.Frame
	ended  chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	endOnce  sync.Once
	stopOnce sync.Once

	mu        sync.Mutex
	latest    []byte
	startedAt time.Time
	scenes    *sceneDetector
}

var (
	_ session.Track         = (*Track)(nil)
	_ session.SceneReporter = (*Track)(nil)
)

func newTrack(id string, g Grabber, cfg trackConfig) *Track {
	ctx, cancel := context.WithCancel(context.Background())
	return &Track{
		id:      id,
		grabber: g,
		cfg:     cfg,
		frames:  make(chan session.Frame, 2),
		ended:   make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		scenes:  newSceneDetector(cfg.sceneDist),
	}
}

func (t *Track) ID() string                   { return t.id }
func (t *Track) Kind() string                 { return "video" }
func (t *Track) Frames() <-chan session.Frame { return t.frames }
func (t *Track) Ended() <-chan struct{}       { return t.ended }

// Stop ends the track and releases the grabber. Safe to call more than once.
func (t *Track) Stop() {
	t.stopOnce.Do(func() {
		t.end()
		t.wg.Wait()
		if err := t.grabber.Close(); err != nil {
			slog.Warn("close screen grabber", "track", t.id, "error", err)
		}
	})
}

// SceneCuts returns the offsets, relative to the track start, at which the
// picture changed substantially.
func (t *Track) SceneCuts() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scenes.cutsCopy()
}

func (t *Track) end() {
	t.endOnce.Do(func() {
		t.cancel()
		close(t.ended)
	})
}

func (t *Track) start(first []byte) {
	t.mu.Lock()
	t.startedAt = t.cfg.clock()
	t.latest = first
	t.scenes.observe(first, 0)
	t.mu.Unlock()

	t.wg.Add(2)
	go t.grabLoop()
	go t.emitLoop()
}

func (t *Track) grabLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.cfg.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
		}
		data, err := t.grabber.Grab(t.ctx)
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			failures++
			slog.Debug("screen grab failed", "track", t.id, "failures", failures, "error", err)
			if failures >= MaxGrabFailures {
				slog.Warn("screen capture ended by platform", "track", t.id, "error", err)
				t.end()
				return
			}
			continue
		}
		failures = 0

		t.mu.Lock()
		t.latest = data
		if t.scenes.observe(data, t.cfg.clock().Sub(t.startedAt)) {
			slog.Debug("scene cut", "track", t.id, "at", t.cfg.clock().Sub(t.startedAt))
		}
		t.mu.Unlock()
	}
}

func (t *Track) emitLoop() {
	defer t.wg.Done()
	defer close(t.frames)
	ticker := time.NewTicker(t.cfg.interval)
	defer ticker.Stop()

	for {
		t.mu.Lock()
		f := session.Frame{Data: t.latest, At: t.cfg.clock()}
		t.mu.Unlock()

		select {
		case t.frames <- f:
		case <-t.ctx.Done():
			return
		default:
			// Consumer is behind; drop rather than build latency.
		}

		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
