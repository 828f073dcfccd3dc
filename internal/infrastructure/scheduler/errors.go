package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSweepInProgress is returned when a sweep is requested while another is running
	ErrSweepInProgress = errors.New("escalation sweep already in progress")
)
