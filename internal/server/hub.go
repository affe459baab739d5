package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/screenrec/internal/artifact"
	"github.com/GriffinCanCode/screenrec/internal/session"
	"github.com/GriffinCanCode/screenrec/internal/syncx"
)

// Hub is the session.Presenter for browser clients. It keeps the last view
// and preview so late joiners render the current state immediately.
type Hub struct {
	state *syncx.Guard[hubState]

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type hubState struct {
	view    session.View
	preview string
}

var _ session.Presenter = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		state:   syncx.NewGuard(hubState{view: session.ViewFor(session.Idle, session.StatusReady)}),
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) Render(v session.View) {
	h.state.Update(func(s *hubState) { s.view = v })
	h.broadcast(ViewMessage{Type: "view", View: v})
}

func (h *Hub) Preview(ref string) {
	h.state.Update(func(s *hubState) { s.preview = ref })
	h.broadcast(previewMessage(ref))
}

func (h *Hub) Download(ref, filename string) {
	h.broadcast(DownloadMessage{Type: "download", URL: artifact.URL(ref, true), Filename: filename})
}

// View returns the last rendered view.
func (h *Hub) View() session.View {
	return syncx.View(h.state, func(s hubState) session.View { return s.view })
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func previewMessage(ref string) PreviewMessage {
	return PreviewMessage{Type: "preview", Ref: ref, URL: artifact.URL(ref, false)}
}

func (h *Hub) broadcast(msg any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.send(msg)
	}
}

// attach registers conn and queues the current state for it.
func (h *Hub) attach(conn *websocket.Conn) *client {
	c := &client{conn: conn, out: make(chan any, SendQueueSize), done: make(chan struct{})}

	h.mu.Lock()
	st := h.state.Load()
	c.send(ViewMessage{Type: "view", View: st.view})
	if st.preview != "" {
		c.send(previewMessage(st.preview))
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// client owns one WebSocket's outgoing queue. A single writer goroutine keeps
// messages in broadcast order.
type client struct {
	conn *websocket.Conn
	out  chan any
	done chan struct{}
	once sync.Once
}

func (c *client) send(msg any) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.out <- msg:
	default:
		slog.Warn("websocket send queue full, closing slow client")
		c.evict()
	}
}

func (c *client) close() { c.once.Do(func() { close(c.done) }) }

// evict disconnects a client that fell behind. The browser reconnects and
// attach hands it the current view, so nothing is lost silently.
func (c *client) evict() {
	c.close()
	go func() { _ = c.conn.Close(websocket.StatusPolicyViolation, "send queue full") }()
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, WriteTimeout)
			err := wsjson.Write(wctx, c.conn, msg)
			cancel()
			if err != nil {
				slog.Debug("websocket write error", "error", err)
				c.close()
				return
			}
		}
	}
}
