// Package encoder records a screen capture track into WebM by piping frames
// through an ffmpeg subprocess.
package encoder

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/GriffinCanCode/screenrec/internal/session"
)

// Factory defaults.
const (
	DefaultPath          = "ffmpeg"
	DefaultFrameRate     = 5.0
	DefaultChunkInterval = time.Second
	DefaultStopTimeout   = 10 * time.Second
	probeTimeout         = 10 * time.Second
)

// CommandFunc builds the ffmpeg command. Tests substitute a helper process.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// Options configures a Factory.
type Options struct {
	Path          string
	FrameRate     float64
	ChunkInterval time.Duration
	// StopTimeout bounds how long a stopping ffmpeg may take to flush
	// before it is killed.
	StopTimeout time.Duration
	Command     CommandFunc
}

// Factory implements session.EncoderFactory.
type Factory struct {
	opts  Options
	probe *prober
}

var _ session.EncoderFactory = (*Factory)(nil)

func NewFactory(opts Options) *Factory {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = DefaultFrameRate
	}
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = DefaultChunkInterval
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Command == nil {
		opts.Command = exec.CommandContext
	}
	return &Factory{opts: opts, probe: &prober{path: opts.Path, command: opts.Command}}
}

// Supports reports whether format parses and the local ffmpeg has both its
// muxer and a matching encoder.
func (f *Factory) Supports(format string) bool {
	t, err := parseFormat(format)
	if err != nil {
		slog.Debug("format rejected", "format", format, "error", err)
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	caps, err := f.probe.get(ctx)
	if err != nil {
		slog.Warn("ffmpeg probe failed", "path", f.opts.Path, "error", err)
		return false
	}
	_, ok := caps.resolve(t)
	return ok
}

// New builds an encoder for the first video track of handle.
func (f *Factory) New(handle session.DeviceHandle, format string, emit func(session.Event)) (session.Encoder, error) {
	var track session.Track
	for _, t := range handle.Tracks() {
		if t.Kind() == "video" {
			track = t
			break
		}
	}
	if track == nil {
		return nil, errors.New("capture has no video track")
	}
	t, err := parseFormat(format)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	caps, err := f.probe.get(ctx)
	if err != nil {
		return nil, err
	}
	codec, ok := caps.resolve(t)
	if !ok {
		return nil, errors.New("format " + strconv.Quote(format) + " is not available in this ffmpeg build")
	}
	return newEncoder(f.opts, track, f.args(t.muxer, codec), emit), nil
}

func (f *Factory) args(muxer, codec string) []string {
	rate := strconv.FormatFloat(f.opts.FrameRate, 'f', -1, 64)
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "image2pipe", "-framerate", rate, "-i", "pipe:0",
		"-an",
		"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
		"-pix_fmt", "yuv420p",
		"-c:v", codec,
	}
	switch codec {
	case "libvpx", "libvpx-vp9":
		args = append(args, "-deadline", "realtime", "-cpu-used", "8", "-b:v", "2M")
	}
	args = append(args,
		"-f", muxer,
		"-cluster_time_limit", strconv.FormatInt(f.opts.ChunkInterval.Milliseconds(), 10),
		"pipe:1",
	)
	return args
}
