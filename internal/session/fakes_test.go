package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/screenrec/internal/artifact"
)

// fakeTrack is a video track whose end can be triggered by the test.
type fakeTrack struct {
	id     string
	frames chan Frame
	ended  chan struct{}
	once   sync.Once

	mu    sync.Mutex
	stops int
	cuts  []time.Duration
}

func newFakeTrack(id string) *fakeTrack {
	return &fakeTrack{id: id, frames: make(chan Frame), ended: make(chan struct{})}
}

func (t *fakeTrack) ID() string             { return t.id }
func (t *fakeTrack) Kind() string           { return "video" }
func (t *fakeTrack) Frames() <-chan Frame   { return t.frames }
func (t *fakeTrack) Ended() <-chan struct{} { return t.ended }

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.stops++
	t.mu.Unlock()
	t.end()
}

// end simulates the platform ending the share.
func (t *fakeTrack) end() { t.once.Do(func() { close(t.ended) }) }

func (t *fakeTrack) SceneCuts() []time.Duration { return t.cuts }

func (t *fakeTrack) stopCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

type fakeHandle struct {
	tracks []*fakeTrack
}

func (h *fakeHandle) Tracks() []Track {
	out := make([]Track, len(h.tracks))
	for i, t := range h.tracks {
		out[i] = t
	}
	return out
}

type fakeProvider struct {
	mu      sync.Mutex
	err     error
	gate    chan struct{}
	calls   int
	handles []*fakeHandle
}

func (p *fakeProvider) RequestCapture(ctx context.Context, req CaptureRequest) (DeviceHandle, error) {
	p.mu.Lock()
	p.calls++
	gate, err := p.gate, p.err
	p.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !req.VideoOnly {
		return nil, errors.New("expected a video-only request")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	h := &fakeHandle{tracks: []*fakeTrack{newFakeTrack(fmt.Sprintf("screen-%d", len(p.handles)+1))}}
	p.handles = append(p.handles, h)
	return h, nil
}

func (p *fakeProvider) lastTrack() *fakeTrack {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.handles) == 0 {
		return nil
	}
	return p.handles[len(p.handles)-1].tracks[0]
}

type fakeEncoder struct {
	mu         sync.Mutex
	emit       func(Event)
	format     string
	status     EncoderStatus
	startErr   error
	stopErr    error
	silentStop bool
	tail       []byte
	pauses     int
	resumes    int
	stops      int
}

func (e *fakeEncoder) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return e.startErr
	}
	e.status = EncoderRecording
	e.emit(Event{Kind: EventStarted})
	return nil
}

func (e *fakeEncoder) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != EncoderRecording {
		return errors.New("not recording")
	}
	e.pauses++
	e.status = EncoderPaused
	e.emit(Event{Kind: EventPaused})
	return nil
}

func (e *fakeEncoder) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != EncoderPaused {
		return errors.New("not paused")
	}
	e.resumes++
	e.status = EncoderRecording
	e.emit(Event{Kind: EventResumed})
	return nil
}

func (e *fakeEncoder) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	if e.status == EncoderInactive {
		return nil
	}
	e.status = EncoderInactive
	if e.stopErr != nil {
		return e.stopErr
	}
	if e.tail != nil {
		e.emit(DataEvent(e.tail))
	}
	if !e.silentStop {
		e.emit(Event{Kind: EventStopped})
	}
	return nil
}

func (e *fakeEncoder) Status() EncoderStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *fakeEncoder) counts() (pauses, resumes, stops int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pauses, e.resumes, e.stops
}

type fakeFactory struct {
	mu         sync.Mutex
	supported  map[string]bool
	probed     []string
	newErr     error
	startErr   error
	stopErr    error
	silentStop bool
	tail       []byte
	encoders   []*fakeEncoder
}

func newFakeFactory(supported ...string) *fakeFactory {
	f := &fakeFactory{supported: map[string]bool{}}
	for _, s := range supported {
		f.supported[s] = true
	}
	return f
}

func (f *fakeFactory) Supports(format string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, format)
	return f.supported[format]
}

func (f *fakeFactory) New(_ DeviceHandle, format string, emit func(Event)) (Encoder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.newErr != nil {
		return nil, f.newErr
	}
	e := &fakeEncoder{
		emit:       emit,
		format:     format,
		status:     EncoderInactive,
		startErr:   f.startErr,
		stopErr:    f.stopErr,
		silentStop: f.silentStop,
		tail:       f.tail,
	}
	f.encoders = append(f.encoders, e)
	return e, nil
}

func (f *fakeFactory) last() *fakeEncoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.encoders) == 0 {
		return nil
	}
	return f.encoders[len(f.encoders)-1]
}

func (f *fakeFactory) probes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.probed...)
}

// fakeSink records issue/revoke order and counts overlapping live references.
type fakeSink struct {
	mu       sync.Mutex
	n        int
	live     map[string]*artifact.Artifact
	log      []string
	overlaps int
	issueErr error
}

func newFakeSink() *fakeSink { return &fakeSink{live: map[string]*artifact.Artifact{}} }

func (s *fakeSink) Issue(a *artifact.Artifact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issueErr != nil {
		return "", s.issueErr
	}
	if len(s.live) > 0 {
		s.overlaps++
	}
	s.n++
	ref := fmt.Sprintf("ref-%d", s.n)
	s.live[ref] = a
	s.log = append(s.log, "issue "+ref)
	return ref, nil
}

func (s *fakeSink) Revoke(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, ref)
	s.log = append(s.log, "revoke "+ref)
}

func (s *fakeSink) entries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.log...)
}

func (s *fakeSink) liveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

type fakePresenter struct {
	mu        sync.Mutex
	views     []View
	previews  []string
	downloads [][2]string
}

func (p *fakePresenter) Render(v View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views = append(p.views, v)
}

func (p *fakePresenter) Preview(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.previews = append(p.previews, ref)
}

func (p *fakePresenter) Download(ref, filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.downloads = append(p.downloads, [2]string{ref, filename})
}

func (p *fakePresenter) lastView() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.views) == 0 {
		return View{}
	}
	return p.views[len(p.views)-1]
}

func (p *fakePresenter) allViews() []View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]View(nil), p.views...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testFormats = []string{
	"video/webm; codecs=vp9",
	"video/webm; codecs=vp8",
	"video/webm",
}

type fixture struct {
	provider  *fakeProvider
	factory   *fakeFactory
	sink      *fakeSink
	presenter *fakePresenter
	clock     *fakeClock
}

func newFixture() *fixture {
	return &fixture{
		provider:  &fakeProvider{},
		factory:   newFakeFactory(testFormats...),
		sink:      newFakeSink(),
		presenter: &fakePresenter{},
		clock:     newFakeClock(),
	}
}

// run builds a manager from the fixture and runs it until the test ends.
func (f *fixture) run(t *testing.T, tweak ...func(*Options)) *Manager {
	t.Helper()
	opts := Options{
		Provider:    f.provider,
		Encoders:    f.factory,
		Sink:        f.sink,
		Presenter:   f.presenter,
		Formats:     testFormats,
		StopTimeout: time.Second,
		Clock:       f.clock.Now,
	}
	for _, fn := range tweak {
		fn(&opts)
	}
	m, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = m.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-m.Done()
	})
	return m
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
