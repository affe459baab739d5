package artifact

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
)

// PathPrefix is where the store is mounted on the HTTP mux.
const PathPrefix = "/artifacts/"

// Store holds at most one live artifact reference. Issuing a new reference
// revokes the previous one first, so repeated recordings never pile up blobs.
type Store struct {
	mu      sync.RWMutex
	ref     string
	current *Artifact
	entropy *ulid.MonotonicEntropy
}

// NewStore creates an empty reference store.
func NewStore() *Store {
	return &Store{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Issue revokes any live reference and returns a new one for a.
func (s *Store) Issue(a *Artifact) (string, error) {
	if a == nil {
		return "", apperrors.New(apperrors.CodeInvalidArgument, "nil artifact")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ref != "" {
		slog.Debug("revoking artifact reference", "ref", s.ref)
		s.ref, s.current = "", nil
	}

	id, err := ulid.New(ulid.Timestamp(time.Now()), s.entropy)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "mint artifact reference")
	}
	s.ref = "blob-" + strings.ToLower(id.String())
	s.current = a
	return s.ref, nil
}

// Revoke invalidates ref. Unknown or already revoked refs are ignored.
func (s *Store) Revoke(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ref != "" && ref == s.ref {
		s.ref, s.current = "", nil
	}
}

// Lookup returns the artifact behind a live reference.
func (s *Store) Lookup(ref string) (*Artifact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ref == "" || ref != s.ref {
		return nil, false
	}
	return s.current, true
}

// URL returns the path serving ref; download marks it as an attachment.
func URL(ref string, download bool) string {
	if ref == "" {
		return ""
	}
	u := PathPrefix + ref
	if download {
		u += "?download=1"
	}
	return u
}

// Handler serves GET /artifacts/{ref}. With ?download=1 the response is an
// attachment named filename.
func (s *Store) Handler(filename string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ref := strings.TrimPrefix(r.URL.Path, PathPrefix)
		a, ok := s.Lookup(ref)
		if !ok {
			http.Error(w, "artifact not found or revoked", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", a.MIME)
		w.Header().Set("Cache-Control", "no-store")
		if r.URL.Query().Get("download") != "" {
			w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
		}
		http.ServeContent(w, r, fmt.Sprintf("%s.webm", ref), a.CreatedAt, bytes.NewReader(a.Data))
	})
}
