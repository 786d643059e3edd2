package model

import "time"

// Shared defaults used by both the service and the TUI binaries.
const (
	DefaultUpdateInterval = 2 * time.Second
	DefaultTopK           = 3
	DefaultBatchSize      = 10_000
)
