package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
	"github.com/GriffinCanCode/screenrec/internal/grpcclient"
	"github.com/GriffinCanCode/screenrec/internal/mcptools"
	"github.com/GriffinCanCode/screenrec/internal/session"
	"github.com/GriffinCanCode/screenrec/internal/trace"
)

// recorder is the remote surface recctl needs.
type recorder interface {
	session.Controller
	mcptools.Fetcher
	Close() error
}

type dialFunc func(addr string, longRunning bool) (recorder, error)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(dial dialFunc) *cli.App {
	app := &cli.App{
		Name:    "recctl",
		Usage:   "Control a screen recorder",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Value:   grpcclient.DefaultAddr,
				EnvVars: []string{"RECORDER_ADDR"},
				Usage:   "Recorder gRPC address",
			},
		},
		Commands: []*cli.Command{
			snapshotCmd(dial, "start", "Request screen-share permission and start recording", session.Controller.Start),
			snapshotCmd(dial, "pause", "Pause the recording", session.Controller.Pause),
			snapshotCmd(dial, "resume", "Resume a paused recording", session.Controller.Resume),
			snapshotCmd(dial, "toggle", "Pause or resume, whichever applies", session.Controller.TogglePause),
			snapshotCmd(dial, "stop", "Stop recording and finalize the artifact", session.Controller.Stop),
			snapshotCmd(dial, "status", "Show the session state", session.Controller.Snapshot),
			downloadCmd(dial),
			mcpCmd(dial),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// snapshotCmd creates a command that runs one controller call and prints the
// resulting snapshot.
func snapshotCmd(dial dialFunc, name, usage string, call func(session.Controller, context.Context) (session.Snapshot, error)) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			rec, err := dial(c.String("addr"), false)
			if err != nil {
				return outputError(err)
			}
			defer rec.Close()

			ctx, span := trace.StartSpan(cliContext(c), "cli."+name)
			defer span.End()

			snap, err := call(rec, ctx)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, snap)
		},
	}
}

// downloadCmd creates the download command.
func downloadCmd(dial dialFunc) *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Save the finished recording",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path (defaults to the offered filename)"},
		},
		Action: func(c *cli.Context) error {
			rec, err := dial(c.String("addr"), false)
			if err != nil {
				return outputError(err)
			}
			defer rec.Close()

			ctx, span := trace.StartSpan(cliContext(c), "cli.download")
			defer span.End()

			offer, err := rec.Download(ctx)
			if err != nil {
				return outputError(err)
			}
			path := c.String("output")
			if path == "" {
				path = offer.Filename
			}
			n, err := saveArtifact(ctx, rec, offer.Ref, path)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, mcptools.DownloadResult{Offer: offer, SavedTo: path, Written: n})
		},
	}
}

// mcpCmd serves the recorder tools over stdio.
func mcpCmd(dial dialFunc) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve recorder tools to an MCP client on stdio",
		Action: func(c *cli.Context) error {
			rec, err := dial(c.String("addr"), true)
			if err != nil {
				return outputError(err)
			}
			defer rec.Close()
			return mcptools.Run(rec, rec, Version)
		},
	}
}

// saveArtifact writes to a temp file next to path and renames it into place,
// so a failed transfer never leaves a truncated recording behind.
func saveArtifact(ctx context.Context, f mcptools.Fetcher, ref, path string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".recctl-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := f.Fetch(ctx, ref, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	return n, os.Rename(tmp.Name(), path)
}

func cliContext(c *cli.Context) context.Context {
	tc := trace.New()
	tc.Origin = trace.OriginCLI
	return trace.WithContext(c.Context, tc)
}

// Helper functions

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if appErr, ok := apperrors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
