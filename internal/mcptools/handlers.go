package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
	"github.com/GriffinCanCode/screenrec/internal/session"
	"github.com/GriffinCanCode/screenrec/internal/trace"
)

// Fetcher streams a live artifact into w.
type Fetcher interface {
	Fetch(ctx context.Context, ref string, w io.Writer) (int64, error)
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	ctrl  session.Controller
	fetch Fetcher
}

func NewHandlers(ctrl session.Controller, fetch Fetcher) *Handlers {
	return &Handlers{ctrl: ctrl, fetch: fetch}
}

// DownloadRequest represents the arguments for recording_download.
type DownloadRequest struct {
	Output string `json:"output,omitempty"`
}

// DownloadResult is the recording_download payload.
type DownloadResult struct {
	session.Offer
	SavedTo string `json:"saved_to,omitempty"`
	Written int64  `json:"written,omitempty"`
}

func (h *Handlers) command(fn func(context.Context) (session.Snapshot, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := trace.StartSpan(withOrigin(ctx), req.Params.Name)
		defer span.End()

		snap, err := fn(ctx)
		span.SetAttr("state", string(snap.State))
		if err != nil {
			trace.Logger(ctx).Warn("tool failed", "tool", req.Params.Name, "error", err)
			return errorResult(err), nil
		}
		return mcp.NewToolResultJSON(snap)
	}
}

func (h *Handlers) HandleDownload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := trace.StartSpan(withOrigin(ctx), req.Params.Name)
	defer span.End()

	args, err := decode[DownloadRequest](req)
	if err != nil {
		return errorResult(apperrors.New(apperrors.CodeInvalidArgument, err.Error())), nil
	}
	offer, err := h.ctrl.Download(ctx)
	if err != nil {
		trace.Logger(ctx).Warn("tool failed", "tool", req.Params.Name, "error", err)
		return errorResult(err), nil
	}
	out := DownloadResult{Offer: offer}
	if args.Output != "" {
		if h.fetch == nil {
			return errorResult(apperrors.New(apperrors.CodeInvalidArgument, "saving is not available on this connection")), nil
		}
		n, err := h.save(ctx, offer.Ref, args.Output)
		if err != nil {
			return errorResult(err), nil
		}
		out.SavedTo, out.Written = args.Output, n
		span.SetAttr("bytes", n)
	}
	return mcp.NewToolResultJSON(out)
}

// save writes to a temp file next to path and renames it into place.
func (h *Handlers) save(ctx context.Context, ref, path string) (int64, error) {
	f, err := os.CreateTemp(filepath.Dir(path), ".screenrec-*")
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "cannot write output").WithMetadata("path", path)
	}
	defer os.Remove(f.Name())

	n, err := h.fetch.Fetch(ctx, ref, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return n, apperrors.Wrap(err, apperrors.CodeInternal, "cannot write output").WithMetadata("path", path)
	}
	return n, nil
}

func withOrigin(ctx context.Context) context.Context {
	if _, ok := trace.FromContext(ctx); ok {
		return ctx
	}
	tc := trace.New()
	tc.Origin = trace.OriginMCP
	return trace.WithContext(ctx, tc)
}

// decode unmarshals tool arguments into a typed struct.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}

// errorResult reports err with IsError set. Internal causes are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	body := map[string]any{"code": apperrors.CodeInternal, "message": "an internal error occurred"}
	if appErr, ok := apperrors.As(err); ok && appErr.Code != apperrors.CodeInternal {
		body = map[string]any{"code": appErr.Code, "message": appErr.Message}
		if len(appErr.Metadata) > 0 {
			body["metadata"] = appErr.Metadata
		}
	}
	content, _ := json.Marshal(map[string]any{"error": body})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}
