package session

import (
	"context"
	"crypto/rand"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/GriffinCanCode/screenrec/internal/artifact"
	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
	"github.com/GriffinCanCode/screenrec/internal/trace"
)

// Manager defaults.
const (
	DefaultFilename    = "recording.webm"
	DefaultStopTimeout = 10 * time.Second
)

// Options wires a Manager to its platform collaborators.
type Options struct {
	Provider    CaptureProvider
	Encoders    EncoderFactory
	Sink        ArtifactSink
	Presenter   Presenter
	Formats     []string // preference order
	Filename    string
	StopTimeout time.Duration
	Clock       func() time.Time
}

// Manager is the capture session state machine. Every command and encoder
// event runs on the goroutine executing Run, one at a time.
type Manager struct {
	provider    CaptureProvider
	encoders    EncoderFactory
	sink        ArtifactSink
	presenter   Presenter
	formats     []string
	filename    string
	stopTimeout time.Duration
	clock       func() time.Time
	entropy     *ulid.MonotonicEntropy

	box      *mailbox
	done     chan struct{}
	doneOnce sync.Once

	// loop-owned
	runCtx  context.Context
	session *CaptureSession
	status  string
	quit    bool
}

// New validates options and constructs a manager. Call Run to process commands.
func New(opts Options) (*Manager, error) {
	if opts.Provider == nil || opts.Encoders == nil || opts.Sink == nil {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "capture provider, encoder factory and artifact sink are required")
	}
	if len(opts.Formats) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "at least one format candidate is required")
	}
	m := &Manager{
		provider:    opts.Provider,
		encoders:    opts.Encoders,
		sink:        opts.Sink,
		presenter:   opts.Presenter,
		formats:     append([]string(nil), opts.Formats...),
		filename:    strings.TrimSpace(opts.Filename),
		stopTimeout: opts.StopTimeout,
		clock:       opts.Clock,
		entropy:     ulid.Monotonic(rand.Reader, 0),
		box:         newMailbox(),
		done:        make(chan struct{}),
		status:      StatusReady,
	}
	if m.presenter == nil {
		m.presenter = NopPresenter{}
	}
	if m.filename == "" {
		m.filename = DefaultFilename
	}
	if m.stopTimeout <= 0 {
		m.stopTimeout = DefaultStopTimeout
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	return m, nil
}

// Run processes commands and encoder events until ctx is cancelled or Close
// is called. Resources of the active session are released on exit.
func (m *Manager) Run(ctx context.Context) error {
	m.runCtx = ctx
	m.render()
	defer m.doneOnce.Do(func() { close(m.done) })

	for {
		select {
		case <-ctx.Done():
			m.teardown()
			m.box.close()
			return ctx.Err()
		case <-m.box.ready():
			for _, fn := range m.box.drain() {
				fn()
				if m.quit {
					m.box.close()
					return nil
				}
			}
		}
	}
}

// Close tears down the active session and stops Run.
func (m *Manager) Close(ctx context.Context) error {
	_, err := call(ctx, m, func(reply func(struct{}, error)) {
		m.teardown()
		m.quit = true
		reply(struct{}{}, nil)
	})
	if apperrors.IsCode(err, apperrors.CodeClosed) {
		return nil
	}
	return err
}

// Done is closed once Run has returned.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Start begins a new capture session. It returns once permission has been
// resolved and the encoder is running, or the attempt has failed.
func (m *Manager) Start(ctx context.Context) (Snapshot, error) {
	return call(ctx, m, func(reply func(Snapshot, error)) { m.handleStart(ctx, reply) })
}

// Pause pauses an active recording; a no-op in any other state.
func (m *Manager) Pause(ctx context.Context) (Snapshot, error) {
	return call(ctx, m, func(reply func(Snapshot, error)) { reply(m.handlePause(ctx)) })
}

// Resume resumes a paused recording; a no-op in any other state.
func (m *Manager) Resume(ctx context.Context) (Snapshot, error) {
	return call(ctx, m, func(reply func(Snapshot, error)) { reply(m.handleResume(ctx)) })
}

// TogglePause pauses when recording and resumes when paused.
func (m *Manager) TogglePause(ctx context.Context) (Snapshot, error) {
	return call(ctx, m, func(reply func(Snapshot, error)) {
		if s := m.session; s != nil && s.state == Paused {
			reply(m.handleResume(ctx))
			return
		}
		reply(m.handlePause(ctx))
	})
}

// Stop ends the recording and returns after the artifact is issued. Calling
// Stop without an active encoder returns the current snapshot unchanged.
func (m *Manager) Stop(ctx context.Context) (Snapshot, error) {
	return call(ctx, m, func(reply func(Snapshot, error)) { m.handleStop(ctx, reply) })
}

// Snapshot returns the current state.
func (m *Manager) Snapshot(ctx context.Context) (Snapshot, error) {
	return call(ctx, m, func(reply func(Snapshot, error)) { reply(m.snapshot(), nil) })
}

// Download triggers the presenter's download of the finished artifact.
func (m *Manager) Download(ctx context.Context) (Offer, error) {
	return call(ctx, m, func(reply func(Offer, error)) { reply(m.handleDownload(ctx)) })
}

func (m *Manager) handleStart(ctx context.Context, reply func(Snapshot, error)) {
	log := trace.Logger(ctx)
	if cur := m.session; cur != nil && cur.state.Active() {
		log.Warn("start rejected, session active", "session", cur.id, "state", cur.state)
		reply(m.snapshot(), apperrors.Newf(apperrors.CodeSessionActive, "a recording session is already %s", cur.state).
			WithMetadata("session_id", cur.id))
		return
	}

	m.discard()
	s := newCaptureSession(m.newID())
	s.state = Requesting
	m.session = s
	m.setStatus(StatusRequesting)
	log.Info("requesting screen capture", "session", s.id)

	reqCtx := m.runCtx
	go func() {
		handle, err := m.provider.RequestCapture(reqCtx, CaptureRequest{VideoOnly: true})
		posted := m.box.post(func() { m.handleCapture(ctx, s, handle, err, reply) })
		if !posted {
			stopTracks(handle)
			reply(Snapshot{}, errClosed())
		}
	}()
}

func (m *Manager) handleCapture(ctx context.Context, s *CaptureSession, handle DeviceHandle, err error, reply func(Snapshot, error)) {
	log := trace.Logger(ctx).With("session", s.id)
	if m.session != s {
		stopTracks(handle)
		reply(m.snapshot(), errClosed())
		return
	}
	if err != nil || handle == nil {
		m.fail(ctx, s, permissionError(err))
		reply(m.snapshot(), s.err)
		return
	}
	s.device = handle

	format, err := NegotiateFormat(m.formats, m.encoders.Supports)
	if err != nil {
		m.fail(ctx, s, err)
		reply(m.snapshot(), s.err)
		return
	}

	enc, err := m.encoders.New(handle, format, m.emitter(s))
	if err != nil {
		m.fail(ctx, s, apperrors.Wrap(err, apperrors.CodeEncoderInit, "could not create recorder").WithMetadata("format", format))
		reply(m.snapshot(), s.err)
		return
	}
	if err := enc.Start(); err != nil {
		_ = enc.Stop()
		m.fail(ctx, s, apperrors.Wrap(err, apperrors.CodeEncoderInit, "could not start recorder").WithMetadata("format", format))
		reply(m.snapshot(), s.err)
		return
	}

	now := m.clock()
	s.encoder = enc
	s.format = format
	s.startedAt = now
	s.resumedAt = now
	s.state = Recording
	m.watchTracks(s, handle)
	m.setStatus(StatusStarted)
	log.Info("recording started", "format", format)
	reply(m.snapshot(), nil)
}

func (m *Manager) handlePause(ctx context.Context) (Snapshot, error) {
	s := m.session
	if s == nil || s.state != Recording || s.stopping {
		return m.snapshot(), nil
	}
	if err := s.encoder.Pause(); err != nil {
		trace.Logger(ctx).Warn("encoder pause failed", "session", s.id, "error", err)
		return m.snapshot(), apperrors.Wrap(err, apperrors.CodeInternal, "could not pause recorder")
	}
	s.closeSpan(m.clock())
	s.state = Paused
	m.setStatus(StatusPaused)
	return m.snapshot(), nil
}

func (m *Manager) handleResume(ctx context.Context) (Snapshot, error) {
	s := m.session
	if s == nil || s.state != Paused || s.stopping {
		return m.snapshot(), nil
	}
	if err := s.encoder.Resume(); err != nil {
		trace.Logger(ctx).Warn("encoder resume failed", "session", s.id, "error", err)
		return m.snapshot(), apperrors.Wrap(err, apperrors.CodeInternal, "could not resume recorder")
	}
	s.state = Recording
	s.resumedAt = m.clock()
	m.setStatus(StatusResumed)
	return m.snapshot(), nil
}

func (m *Manager) handleStop(ctx context.Context, reply func(Snapshot, error)) {
	s := m.session
	if s == nil || s.encoder == nil {
		reply(m.snapshot(), nil)
		return
	}
	s.stopWaiters = append(s.stopWaiters, reply)
	if s.stopping {
		return
	}

	log := trace.Logger(ctx).With("session", s.id)
	s.stopping = true
	s.closeSpan(m.clock())
	stopErr := s.encoder.Stop()
	s.releaseDevice()
	m.setStatus(StatusStopped)

	if stopErr != nil {
		log.Warn("encoder stop failed, finalizing with buffered chunks", "error", stopErr)
		m.finalize(s, stopErr)
		return
	}

	time.AfterFunc(m.stopTimeout, func() {
		m.box.post(func() {
			if m.session == s && s.stopping {
				slog.Warn("encoder did not report stop in time", "session", s.id, "timeout", m.stopTimeout)
				m.finalize(s, apperrors.New(apperrors.CodeUnavailable, "encoder stop timed out"))
			}
		})
	})
}

func (m *Manager) handleDownload(ctx context.Context) (Offer, error) {
	s := m.session
	if s == nil || s.state != Stopped || s.artifactRef == "" {
		m.setStatus(StatusNoArtifact)
		return Offer{}, apperrors.New(apperrors.CodeNoArtifact, StatusNoArtifact)
	}
	m.presenter.Download(s.artifactRef, m.filename)
	trace.Logger(ctx).Info("download offered", "session", s.id, "ref", s.artifactRef, "bytes", s.artifact.Size())
	return Offer{
		Ref:      s.artifactRef,
		Filename: m.filename,
		MIME:     s.artifact.MIME,
		Size:     s.artifact.Size(),
	}, nil
}

// handleEvent is the single dispatch point for encoder notifications.
func (m *Manager) handleEvent(s *CaptureSession, ev Event) {
	if m.session != s {
		slog.Debug("dropping event from stale session", "session", s.id, "kind", ev.Kind)
		return
	}
	switch ev.Kind {
	case EventStarted:
		slog.Debug("encoder started", "session", s.id)
	case EventPaused:
		// The engine may pause on its own; adopt it.
		if s.state == Recording && !s.stopping {
			s.closeSpan(m.clock())
			s.state = Paused
			m.setStatus(StatusPaused)
		}
	case EventResumed:
		if s.state == Paused && !s.stopping {
			s.state = Recording
			s.resumedAt = m.clock()
			m.setStatus(StatusResumed)
		}
	case EventDataAvailable:
		if s.state == Recording || s.state == Paused {
			s.appendChunk(ev.Data)
		}
	case EventStopped:
		if s.encoder != nil {
			m.finalize(s, ev.Err)
		}
	default:
		slog.Warn("unknown encoder event", "session", s.id, "kind", ev.Kind)
	}
}

// finalize moves s into Stopped: device released, artifact built from the
// chunk buffer, reference issued and stop waiters answered.
func (m *Manager) finalize(s *CaptureSession, cause error) {
	if s.state != Recording && s.state != Paused {
		return
	}
	log := slog.Default().With("session", s.id)
	if cause != nil {
		log.Warn("encoder ended abnormally", "error", cause)
	}

	s.closeSpan(m.clock())
	s.releaseDevice()
	s.encoder = nil
	s.stopping = false

	a := artifact.Build(s.chunks, artifact.DefaultMIME)
	a.SessionID = s.id
	a.Format = s.format
	a.Duration = s.recorded
	a.SceneCuts = s.sceneCuts

	ref, err := m.sink.Issue(a)
	if err != nil {
		m.fail(context.Background(), s, err)
		s.resolveWaiters(m.snapshot(), s.err)
		return
	}

	s.artifact = a
	s.artifactRef = ref
	s.chunkCount = len(s.chunks)
	s.chunks = nil
	s.state = Stopped

	m.presenter.Preview(ref)
	m.setStatus(StatusArtifact)
	log.Info("recording finalized", "ref", ref, "bytes", a.Size(), "chunks", a.Chunks, "duration", a.Duration)
	s.resolveWaiters(m.snapshot(), nil)
}

// fail moves s into Failed and releases whatever was acquired.
func (m *Manager) fail(ctx context.Context, s *CaptureSession, err error) {
	if s.encoder != nil {
		_ = s.encoder.Stop()
		s.encoder = nil
	}
	s.releaseDevice()
	s.chunks = nil
	s.bytes = 0
	s.stopping = false
	s.state = Failed
	s.err = err
	m.setStatus(StatusErrorPrefix + errorMessage(err))
	trace.Logger(ctx).Error("capture session failed", "session", s.id, "error", err)
}

// discard drops the previous session's artifact before a new one starts.
func (m *Manager) discard() {
	old := m.session
	if old == nil {
		return
	}
	if old.artifactRef != "" {
		m.sink.Revoke(old.artifactRef)
		m.presenter.Preview("")
	}
	old.artifact = nil
	old.artifactRef = ""
	old.chunks = nil
}

func (m *Manager) teardown() {
	s := m.session
	if s == nil {
		return
	}
	if s.encoder != nil {
		_ = s.encoder.Stop()
		s.encoder = nil
	}
	s.releaseDevice()
	if s.artifactRef != "" {
		m.sink.Revoke(s.artifactRef)
		m.presenter.Preview("")
	}
	s.resolveWaiters(Snapshot{}, errClosed())
	m.session = nil
	m.status = StatusReady
	slog.Info("capture session torn down", "session", s.id)
}

// watchTracks turns a platform-ended track into a stop, the way closing the
// system sharing indicator ends a recording.
func (m *Manager) watchTracks(s *CaptureSession, handle DeviceHandle) {
	for _, t := range handle.Tracks() {
		go func(t Track) {
			select {
			case <-t.Ended():
			case <-m.done:
				return
			}
			m.box.post(func() {
				if m.session != s || s.encoder == nil || s.stopping {
					return
				}
				slog.Info("capture track ended by platform", "session", s.id, "track", t.ID())
				m.handleStop(context.Background(), func(Snapshot, error) {})
			})
		}(t)
	}
}

func (m *Manager) emitter(s *CaptureSession) func(Event) {
	return func(ev Event) {
		m.box.post(func() { m.handleEvent(s, ev) })
	}
}

func (m *Manager) currentState() State {
	if m.session == nil {
		return Idle
	}
	return m.session.state
}

func (m *Manager) setStatus(status string) {
	m.status = status
	m.render()
}

func (m *Manager) render() {
	v := ViewFor(m.currentState(), m.status)
	if m.session != nil && m.session.stopping {
		// Pause and stop are refused until finalize settles the session.
		v.Pause.Enabled = false
		v.Stop.Enabled = false
	}
	m.presenter.Render(v)
}

func (m *Manager) snapshot() Snapshot {
	snap := Snapshot{State: m.currentState(), Status: m.status}
	s := m.session
	if s == nil {
		return snap
	}
	snap.SessionID = s.id
	snap.Format = s.format
	snap.StartedAt = s.startedAt
	snap.Recorded = s.recordedAt(m.clock())
	snap.Chunks = s.chunkTotal()
	snap.Bytes = s.bytes
	if s.artifactRef != "" && s.artifact != nil {
		snap.Artifact = &ArtifactInfo{
			Ref:       s.artifactRef,
			MIME:      s.artifact.MIME,
			Size:      s.artifact.Size(),
			Filename:  m.filename,
			Duration:  s.artifact.Duration,
			SceneCuts: s.artifact.SceneCuts,
		}
	}
	if s.err != nil {
		snap.Error = errorMessage(s.err)
		if appErr, ok := apperrors.As(s.err); ok {
			snap.ErrorCode = string(appErr.Code)
		}
	}
	return snap
}

func (m *Manager) newID() string {
	return ulid.MustNew(ulid.Timestamp(m.clock()), m.entropy).String()
}

// call posts fn to the loop and waits for its reply. fn may hold on to reply
// and answer later from another handler.
func call[T any](ctx context.Context, m *Manager, fn func(reply func(T, error))) (T, error) {
	type result struct {
		val T
		err error
	}
	ch := make(chan result, 1)
	reply := func(v T, err error) {
		select {
		case ch <- result{v, err}:
		default:
		}
	}

	var zero T
	if !m.box.post(func() { fn(reply) }) {
		return zero, errClosed()
	}
	select {
	case r := <-ch:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-m.done:
		select {
		case r := <-ch:
			return r.val, r.err
		default:
			return zero, errClosed()
		}
	}
}

func stopTracks(handle DeviceHandle) {
	if handle == nil {
		return
	}
	for _, t := range handle.Tracks() {
		t.Stop()
	}
}

func permissionError(err error) error {
	if err == nil {
		return apperrors.New(apperrors.CodePermissionDenied, "screen capture was not granted")
	}
	if apperrors.IsCode(err, apperrors.CodePermissionDenied) {
		return err
	}
	return apperrors.Wrap(err, apperrors.CodePermissionDenied, "screen capture permission denied")
}

func errClosed() error {
	return apperrors.New(apperrors.CodeClosed, "capture session manager closed")
}

func errorMessage(err error) string {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.Message
	}
	return err.Error()
}
