// Package server exposes the recorder to the browser: a WebSocket hub that
// renders manager state and accepts commands, plus a small REST API.
package server

import "time"

const (
	// Per-connection command rate limit.
	RateLimitMessages = 20
	RateLimitWindow   = time.Second

	// Outgoing messages queued per connection before a slow client is closed.
	SendQueueSize = 32
	WriteTimeout  = 5 * time.Second

	// Largest accepted command frame.
	MaxCommandBytes = 4096

	// Deadline for a single command, including a pending permission prompt.
	CommandTimeout = 2 * time.Minute
)
