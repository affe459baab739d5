// Package screen grants access to the display and turns it into a stream of
// still frames for the recording encoder.
package screen

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Grabber takes one screenshot of the main display.
type Grabber interface {
	Grab(ctx context.Context) ([]byte, error)
	Close() error
}

// commandGrabber shells out to a platform screenshot tool that writes an
// image file, then reads the file back.
type commandGrabber struct {
	tool    string
	tempDir string
	args    func(path string) []string
}

func newCommandGrabber(tool string, args func(path string) []string) (*commandGrabber, error) {
	if _, err := exec.LookPath(tool); err != nil {
		return nil, fmt.Errorf("screenshot tool %q not found: %w", tool, err)
	}
	dir, err := os.MkdirTemp("", "screenrec-frames-*")
	if err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	return &commandGrabber{tool: tool, tempDir: dir, args: args}, nil
}

func (g *commandGrabber) Grab(ctx context.Context) ([]byte, error) {
	path := filepath.Join(g.tempDir, "frame.jpg")
	cmd := exec.CommandContext(ctx, g.tool, g.args(path)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", g.tool, err, strings.TrimSpace(stderr.String()))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	_ = os.Remove(path)
	if len(data) == 0 {
		return nil, fmt.Errorf("%s produced an empty frame", g.tool)
	}
	return data, nil
}

func (g *commandGrabber) Close() error {
	if g.tempDir == "" {
		return nil
	}
	slog.Debug("removing frame dir", "dir", g.tempDir)
	return os.RemoveAll(g.tempDir)
}
