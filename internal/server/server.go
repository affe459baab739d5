package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/screenrec/internal/artifact"
	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
	"github.com/GriffinCanCode/screenrec/internal/session"
	"github.com/GriffinCanCode/screenrec/internal/trace"
)

// rateLimiter tracks command timestamps in a sliding window.
type rateLimiter struct {
	mu         sync.Mutex
	timestamps []time.Time
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// Server wires the browser surfaces to a session controller.
type Server struct {
	ctrl      session.Controller
	hub       *Hub
	artifacts http.Handler
}

// New creates a server. artifacts serves artifact.PathPrefix.
func New(ctrl session.Controller, hub *Hub, artifacts http.Handler) *Server {
	return &Server{ctrl: ctrl, hub: hub, artifacts: artifacts}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/recording", s.handleStatus)
	mux.HandleFunc("POST /api/recording/start", s.command(CmdStart))
	mux.HandleFunc("POST /api/recording/pause", s.command(CmdPause))
	mux.HandleFunc("POST /api/recording/resume", s.command(CmdResume))
	mux.HandleFunc("POST /api/recording/toggle", s.command(CmdToggle))
	mux.HandleFunc("POST /api/recording/stop", s.command(CmdStop))
	mux.HandleFunc("POST /api/recording/download", s.handleDownload)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": s.hub.Clients()})
	})
	if s.artifacts != nil {
		mux.Handle("GET "+artifact.PathPrefix, s.artifacts)
	}

	// trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Expose-Headers", trace.TraceIDKey)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// run dispatches one named command to the controller.
func (s *Server) run(ctx context.Context, cmd string) (session.Snapshot, error) {
	switch cmd {
	case CmdStart:
		return s.ctrl.Start(ctx)
	case CmdPause:
		return s.ctrl.Pause(ctx)
	case CmdResume:
		return s.ctrl.Resume(ctx)
	case CmdToggle:
		return s.ctrl.TogglePause(ctx)
	case CmdStop:
		return s.ctrl.Stop(ctx)
	case CmdStatus:
		return s.ctrl.Snapshot(ctx)
	default:
		return session.Snapshot{}, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown command %q", cmd)
	}
}

func (s *Server) command(cmd string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := trace.StartSpan(r.Context(), "http."+cmd)
		defer span.End()
		ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
		defer cancel()

		snap, err := s.run(ctx, cmd)
		span.SetAttr("state", snap.State)
		if err != nil {
			trace.Logger(ctx).Warn("command failed", "command", cmd, "error", err)
			writeJSON(w, httpStatus(err), map[string]any{"snapshot": snap, "error": errorBody(err)})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshot": snap})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ctrl.Snapshot(r.Context())
	if err != nil {
		writeJSON(w, httpStatus(err), map[string]any{"error": errorBody(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshot": snap, "view": s.hub.View()})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	offer, err := s.ctrl.Download(r.Context())
	if err != nil {
		writeJSON(w, httpStatus(err), map[string]any{"error": errorBody(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"offer": offerBody(offer)})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
	conn.SetReadLimit(MaxCommandBytes)

	baseCtx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := s.hub.attach(conn)
	defer s.hub.detach(c)
	go c.writeLoop(baseCtx)

	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)
	rl := &rateLimiter{}

	for {
		var raw json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &raw); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}
		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			c.send(RateLimitedMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		var msg CommandMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		tc, _ := trace.ExtractFromJSON(raw)
		ctx := trace.WithContext(baseCtx, tc)

		// Commands run concurrently so a pending permission prompt does not
		// block status requests; the manager serializes them.
		go s.handleCommand(ctx, c, msg)
	}
}

func (s *Server) handleCommand(ctx context.Context, c *client, msg CommandMessage) {
	ctx, span := trace.StartSpan(ctx, "ws."+msg.Type)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()

	res := ResultMessage{Type: "result", ID: msg.ID, Command: msg.Type, TraceID: span.Ctx.TraceID}
	if msg.Type == CmdDownload {
		offer, err := s.ctrl.Download(ctx)
		if err == nil {
			res.Offer = offerBody(offer)
		}
		res.Error = errorBody(err)
	} else {
		snap, err := s.run(ctx, msg.Type)
		if err == nil || snap.State != "" {
			res.Snapshot = &snap
		}
		res.Error = errorBody(err)
	}
	if res.Error != nil {
		trace.Logger(ctx).Warn("command failed", "command", msg.Type, "code", res.Error.Code)
	}
	c.send(res)
}

func offerBody(o session.Offer) *OfferBody {
	return &OfferBody{Offer: o, URL: artifact.URL(o.Ref, true)}
}

func httpStatus(err error) int {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.HTTPStatus()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}
