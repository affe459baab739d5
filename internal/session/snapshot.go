package session

import "time"

// ArtifactInfo describes the finished recording behind a live reference.
type ArtifactInfo struct {
	Ref       string          `json:"ref"`
	MIME      string          `json:"mime"`
	Size      int64           `json:"size"`
	Filename  string          `json:"filename"`
	Duration  time.Duration   `json:"duration_ns"`
	SceneCuts []time.Duration `json:"scene_cuts_ns,omitempty"`
}

// Snapshot is a point-in-time copy of the manager state, safe to hand out.
type Snapshot struct {
	SessionID string        `json:"session_id,omitempty"`
	State     State         `json:"state"`
	Status    string        `json:"status"`
	Format    string        `json:"format,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Recorded  time.Duration `json:"recorded_ns"`
	Chunks    int           `json:"chunks"`
	Bytes     int64         `json:"bytes"`
	Artifact  *ArtifactInfo `json:"artifact,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorCode string        `json:"error_code,omitempty"`
}

// Offer is the result of a download request.
type Offer struct {
	Ref      string `json:"ref"`
	Filename string `json:"filename"`
	MIME     string `json:"mime"`
	Size     int64  `json:"size"`
}
