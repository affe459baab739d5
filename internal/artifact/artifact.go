// Package artifact assembles finished recordings and hands out revocable
// references used for preview playback and downloads.
package artifact

import (
	"time"
)

// DefaultMIME is the container type every recording is served as.
const DefaultMIME = "video/webm"

// Artifact is one finalized recording.
type Artifact struct {
	SessionID string
	MIME      string
	Format    string // negotiated encoding, e.g. "video/webm; codecs=vp9"
	Data      []byte
	Chunks    int
	Duration  time.Duration
	SceneCuts []time.Duration
	CreatedAt time.Time
}

// Size returns the artifact length in bytes.
func (a *Artifact) Size() int64 { return int64(len(a.Data)) }

// Build joins chunks in order into one artifact. Fragments belong to the same
// container stream, so a byte-level join is the whole assembly; nothing is
// reordered or re-encoded. An empty sequence yields a zero-length artifact.
func Build(chunks [][]byte, mime string) *Artifact {
	if mime == "" {
		mime = DefaultMIME
	}
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	data := make([]byte, 0, total)
	for _, c := range chunks {
		data = append(data, c...)
	}
	return &Artifact{
		MIME:      mime,
		Data:      data,
		Chunks:    len(chunks),
		CreatedAt: time.Now(),
	}
}
