package mcptools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
	"github.com/GriffinCanCode/screenrec/internal/session"
	"github.com/GriffinCanCode/screenrec/internal/trace"
)

type stubController struct {
	state    session.State
	err      error
	offer    session.Offer
	lastOrig string
}

func (s *stubController) next(ctx context.Context, st session.State) (session.Snapshot, error) {
	if tc, ok := trace.FromContext(ctx); ok {
		s.lastOrig = tc.Origin
	}
	if s.err != nil {
		return session.Snapshot{State: s.state}, s.err
	}
	if st != "" {
		s.state = st
	}
	return session.Snapshot{State: s.state, Status: "ok"}, nil
}

func (s *stubController) Start(ctx context.Context) (session.Snapshot, error) {
	return s.next(ctx, session.Recording)
}
func (s *stubController) Pause(ctx context.Context) (session.Snapshot, error) {
	return s.next(ctx, session.Paused)
}
func (s *stubController) Resume(ctx context.Context) (session.Snapshot, error) {
	return s.next(ctx, session.Recording)
}
func (s *stubController) TogglePause(ctx context.Context) (session.Snapshot, error) {
	return s.next(ctx, session.Paused)
}
func (s *stubController) Stop(ctx context.Context) (session.Snapshot, error) {
	return s.next(ctx, session.Stopped)
}
func (s *stubController) Snapshot(ctx context.Context) (session.Snapshot, error) {
	return s.next(ctx, "")
}
func (s *stubController) Download(context.Context) (session.Offer, error) {
	if s.offer.Ref == "" {
		return session.Offer{}, apperrors.New(apperrors.CodeNoArtifact, session.StatusNoArtifact)
	}
	return s.offer, nil
}

type stubFetcher struct {
	data []byte
	err  error
}

func (f stubFetcher) Fetch(_ context.Context, _ string, w io.Writer) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	n, err := w.Write(f.data)
	return int64(n), err
}

func makeRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, r.Content)
	text, ok := r.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", r.Content[0])
	return text.Text
}

func handlerFor(t *testing.T, h *Handlers, name string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t.Helper()
	for _, e := range toolRegistry {
		if e.def.Name == name {
			return e.handler(h)
		}
	}
	t.Fatalf("no tool %q", name)
	return nil
}

func TestToolNames(t *testing.T) {
	assert.Equal(t, []string{
		"recording_start", "recording_pause", "recording_resume", "recording_toggle",
		"recording_stop", "recording_status", "recording_download",
	}, ToolNames())
}

func TestNewServerRegistersTools(t *testing.T) {
	s := NewServer(&stubController{}, nil, "test")
	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range ToolNames() {
		assert.Contains(t, string(raw), `"name":"`+name+`"`)
	}
}

func TestCommandTools(t *testing.T) {
	ctrl := &stubController{state: session.Idle}
	h := NewHandlers(ctrl, nil)

	tests := []struct {
		tool string
		want session.State
	}{
		{"recording_start", session.Recording},
		{"recording_pause", session.Paused},
		{"recording_resume", session.Recording},
		{"recording_toggle", session.Paused},
		{"recording_stop", session.Stopped},
		{"recording_status", session.Stopped},
	}
	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			res, err := handlerFor(t, h, tt.tool)(context.Background(), makeRequest(tt.tool, nil))
			require.NoError(t, err)
			require.False(t, res.IsError, resultText(t, res))

			var snap session.Snapshot
			require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &snap))
			assert.Equal(t, tt.want, snap.State)
		})
	}
	assert.Equal(t, trace.OriginMCP, ctrl.lastOrig)
}

func TestCommandToolError(t *testing.T) {
	ctrl := &stubController{
		state: session.Recording,
		err:   apperrors.New(apperrors.CodeSessionActive, "a recording session is already recording").WithMetadata("state", "recording"),
	}
	res, err := handlerFor(t, NewHandlers(ctrl, nil), "recording_start")(context.Background(), makeRequest("recording_start", nil))
	require.NoError(t, err)
	require.True(t, res.IsError)

	var body struct {
		Error struct {
			Code     string            `json:"code"`
			Message  string            `json:"message"`
			Metadata map[string]string `json:"metadata"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &body))
	assert.Equal(t, "SESSION_ACTIVE", body.Error.Code)
	assert.Equal(t, "recording", body.Error.Metadata["state"])
}

func TestErrorResultHidesInternalCauses(t *testing.T) {
	for _, err := range []error{
		errors.New("open /tmp/secret: permission denied"),
		apperrors.Wrap(errors.New("boom"), apperrors.CodeInternal, "ffmpeg at /opt/bin crashed"),
	} {
		text := resultText(t, errorResult(err))
		assert.Contains(t, text, "INTERNAL")
		assert.NotContains(t, text, "/tmp/secret")
		assert.NotContains(t, text, "/opt/bin")
	}
}

func TestDownloadWithoutArtifact(t *testing.T) {
	h := NewHandlers(&stubController{}, nil)
	res, err := h.HandleDownload(context.Background(), makeRequest("recording_download", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "NO_ARTIFACT")
}

func TestDownloadOfferOnly(t *testing.T) {
	ctrl := &stubController{offer: session.Offer{Ref: "blob-1", Filename: "recording.webm", MIME: "video/webm", Size: 3}}
	res, err := NewHandlers(ctrl, nil).HandleDownload(context.Background(), makeRequest("recording_download", nil))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var out DownloadResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, "blob-1", out.Ref)
	assert.Empty(t, out.SavedTo)
}

func TestDownloadSavesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.webm")
	ctrl := &stubController{offer: session.Offer{Ref: "blob-1", Filename: "recording.webm", MIME: "video/webm", Size: 4}}
	h := NewHandlers(ctrl, stubFetcher{data: []byte("webm")})

	res, err := h.HandleDownload(context.Background(), makeRequest("recording_download", map[string]any{"output": path}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var out DownloadResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, path, out.SavedTo)
	assert.Equal(t, int64(4), out.Written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("webm"), data))
}

func TestDownloadFetchFailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.webm")
	ctrl := &stubController{offer: session.Offer{Ref: "blob-1"}}
	h := NewHandlers(ctrl, stubFetcher{err: apperrors.New(apperrors.CodeNoArtifact, "gone")})

	res, err := h.HandleDownload(context.Background(), makeRequest("recording_download", map[string]any{"output": path}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownloadSaveNeedsFetcher(t *testing.T) {
	ctrl := &stubController{offer: session.Offer{Ref: "blob-1"}}
	res, err := NewHandlers(ctrl, nil).HandleDownload(context.Background(),
		makeRequest("recording_download", map[string]any{"output": "/tmp/x.webm"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "INVALID_ARGUMENT")
}
