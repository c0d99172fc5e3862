package node

import "errors"

var (
	ErrNameRequired           = errors.New("vehicle name is required")
	ErrInvalidStatusInterval  = errors.New("status interval must be greater than 0")
	ErrInvalidStaleMultiplier = errors.New("stale multiplier must be at least 1")
	ErrInvalidTickInterval    = errors.New("tick interval must be greater than 0")
)
