package trace

import (
	"encoding/json"
	"net/http"
)

// Middleware attaches a trace to every request and echoes its ID back in
// the response headers so clients can quote it in bug reports.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := Continue(r.Header.Get(TraceIDKey), r.Header.Get(SpanIDKey), OriginHTTP)
		w.Header().Set(TraceIDKey, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}

// ExtractFromJSON reads the optional trace_id/span_id of a WebSocket command
// frame. ok is false when the frame carried no trace.
func ExtractFromJSON(data []byte) (tc Context, ok bool) {
	var msg struct {
		TraceID string `json:"trace_id"`
		SpanID  string `json:"span_id"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.TraceID == "" {
		tc = New()
		tc.Origin = OriginWS
		return tc, false
	}
	return Continue(msg.TraceID, msg.SpanID, OriginWS), true
}
