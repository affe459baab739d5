package grpcclient

import "time"

// Client defaults.
const (
	DefaultAddr = "localhost:50061"

	DefaultKeepaliveTime    = 30 * time.Second
	DefaultKeepaliveTimeout = 5 * time.Second

	// Start waits for the permission prompt, so it gets a long deadline.
	StartTimeout   = 2 * time.Minute
	CommandTimeout = 15 * time.Second
)
