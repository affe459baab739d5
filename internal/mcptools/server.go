// Package mcptools exposes the recorder as MCP tools so agents can drive a
// recording session over stdio.
package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/GriffinCanCode/screenrec/internal/session"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

var toolRegistry = []toolEntry{
	{
		def: mcp.NewTool("recording_start",
			mcp.WithDescription("Ask for screen-share permission and start a video-only recording. Fails with SESSION_ACTIVE while a session is requesting, recording or paused."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.command(h.ctrl.Start) },
	},
	{
		def: mcp.NewTool("recording_pause",
			mcp.WithDescription("Pause the active recording. No effect unless recording."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.command(h.ctrl.Pause) },
	},
	{
		def: mcp.NewTool("recording_resume",
			mcp.WithDescription("Resume a paused recording. No effect unless paused."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.command(h.ctrl.Resume) },
	},
	{
		def: mcp.NewTool("recording_toggle",
			mcp.WithDescription("Pause when recording, resume when paused."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.command(h.ctrl.TogglePause) },
	},
	{
		def: mcp.NewTool("recording_stop",
			mcp.WithDescription("Stop the recording and finalize the artifact. Safe to call twice."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.command(h.ctrl.Stop) },
	},
	{
		def: mcp.NewTool("recording_status",
			mcp.WithDescription("Report the session state, status text, recorded duration, chunk count and artifact details."),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.command(h.ctrl.Snapshot) },
	},
	{
		def: mcp.NewTool("recording_download",
			mcp.WithDescription("Offer the finished recording. With output set, the artifact is also written to that file."),
			mcp.WithString("output", mcp.Description("Optional path to save the WebM file to")),
		),
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDownload },
	},
}

// ToolNames lists the registered tools in registration order.
func ToolNames() []string {
	names := make([]string, len(toolRegistry))
	for i, e := range toolRegistry {
		names[i] = e.def.Name
	}
	return names
}

// NewServer creates an MCP server with every recorder tool registered.
// fetch may be nil, in which case downloads only report the offer.
func NewServer(ctrl session.Controller, fetch Fetcher, version string) *server.MCPServer {
	s := server.NewMCPServer("screenrec", version, server.WithToolCapabilities(true))
	h := NewHandlers(ctrl, fetch)
	for _, e := range toolRegistry {
		s.AddTool(e.def, e.handler(h))
	}
	return s
}

// Run serves the tools on stdio until the client disconnects.
func Run(ctrl session.Controller, fetch Fetcher, version string) error {
	return server.ServeStdio(NewServer(ctrl, fetch, version))
}
