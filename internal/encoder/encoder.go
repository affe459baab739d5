package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/screenrec/internal/session"
)

// Encoder drives one ffmpeg process. Frames are written to stdin while
// recording and dropped while paused, so paused time never reaches the
// output. Stdout is buffered and emitted as a data event every chunk
// interval.
type Encoder struct {
	opts  Options
	track session.Track
	args  []string
	emit  func(session.Event)

	mu       sync.Mutex
	status   session.EncoderStatus
	started  bool
	stopping bool
	cmd      *exec.Cmd
	stopFeed chan struct{}
	feedDone chan struct{}
	// gate hands the pause state to feed, so a frame feed has already taken
	// is always judged by the state it arrived in.
	gate   chan bool
	killer *time.Timer

	out    chunkBuffer
	stderr tailBuffer
}

var _ session.Encoder = (*Encoder)(nil)

func newEncoder(opts Options, track session.Track, args []string, emit func(session.Event)) *Encoder {
	return &Encoder{
		opts:     opts,
		track:    track,
		args:     args,
		emit:     emit,
		status:   session.EncoderInactive,
		stopFeed: make(chan struct{}),
		feedDone: make(chan struct{}),
		gate:     make(chan bool),
	}
}

func (e *Encoder) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errors.New("encoder already started")
	}

	cmd := e.opts.Command(context.Background(), e.opts.Path, e.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	cmd.Stderr = &e.stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	e.cmd = cmd
	e.started = true
	e.status = session.EncoderRecording
	slog.Debug("ffmpeg started", "pid", cmd.Process.Pid, "args", strings.Join(e.args, " "))

	e.emit(session.Event{Kind: session.EventStarted})
	go e.feed(stdin)
	go e.pump(stdout)
	return nil
}

func (e *Encoder) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != session.EncoderRecording {
		return fmt.Errorf("cannot pause while %s", e.status)
	}
	e.status = session.EncoderPaused
	e.setGate(true)
	e.emit(session.Event{Kind: session.EventPaused})
	return nil
}

func (e *Encoder) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != session.EncoderPaused {
		return fmt.Errorf("cannot resume while %s", e.status)
	}
	e.status = session.EncoderRecording
	e.setGate(false)
	e.emit(session.Event{Kind: session.EventResumed})
	return nil
}

// Stop closes ffmpeg's input and returns. The remaining output and the
// stopped event follow asynchronously once ffmpeg has flushed; the process
// is killed if that takes longer than the stop timeout.
func (e *Encoder) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.stopping {
		return nil
	}
	e.stopping = true
	e.status = session.EncoderInactive
	close(e.stopFeed)
	proc := e.cmd.Process
	e.killer = time.AfterFunc(e.opts.StopTimeout, func() {
		slog.Warn("ffmpeg did not exit in time, killing", "pid", proc.Pid)
		_ = proc.Kill()
	})
	return nil
}

func (e *Encoder) Status() session.EncoderStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// setGate blocks until feed has taken the new pause state, so every frame
// handed over after Pause or Resume returns sees it. Called with e.mu held.
func (e *Encoder) setGate(paused bool) {
	select {
	case e.gate <- paused:
	case <-e.feedDone:
	}
}

// feed owns stdin and the pause state, and closes stdin on stop or when the
// track ends.
func (e *Encoder) feed(stdin io.WriteCloser) {
	defer close(e.feedDone)
	defer stdin.Close()
	frames := e.track.Frames()
	paused := false
	for {
		select {
		case <-e.stopFeed:
			return
		case paused = <-e.gate:
		case f, ok := <-frames:
			if !ok {
				return
			}
			if len(f.Data) == 0 || paused {
				continue
			}
			if _, err := stdin.Write(f.Data); err != nil {
				slog.Debug("ffmpeg stdin closed", "error", err)
				return
			}
		}
	}
}

// pump is the only goroutine that emits data and stopped events, which
// keeps fragments in output order with stopped last.
func (e *Encoder) pump(stdout io.Reader) {
	readDone := make(chan error, 1)
	go func() {
		_, err := io.Copy(&e.out, stdout)
		readDone <- err
	}()

	ticker := time.NewTicker(e.opts.ChunkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.flush()
		case readErr := <-readDone:
			waitErr := e.cmd.Wait()
			e.flush()
			e.emit(session.Event{Kind: session.EventStopped, Err: e.exitError(readErr, waitErr)})
			return
		}
	}
}

func (e *Encoder) flush() {
	if data := e.out.take(); len(data) > 0 {
		e.emit(session.DataEvent(data))
	}
}

func (e *Encoder) exitError(readErr, waitErr error) error {
	e.mu.Lock()
	stopping := e.stopping
	e.status = session.EncoderInactive
	if e.killer != nil {
		e.killer.Stop()
	}
	e.mu.Unlock()

	err := errors.Join(readErr, waitErr)
	if err == nil && stopping {
		return nil
	}
	if err == nil {
		err = errors.New("ffmpeg exited before stop")
	}
	if msg := e.stderr.String(); msg != "" {
		return fmt.Errorf("%w: %s", err, msg)
	}
	return err
}

// chunkBuffer collects stdout between flushes.
type chunkBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *chunkBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *chunkBuffer) take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf.Len() == 0 {
		return nil
	}
	out := bytes.Clone(b.buf.Bytes())
	b.buf.Reset()
	return out
}

const stderrTail = 4096

// tailBuffer keeps the last few KB of ffmpeg's stderr for error messages.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - stderrTail; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(string(b.buf))
}
