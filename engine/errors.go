package engine

import "errors"

var (
	// ErrTooFewDisks is returned when the member count is below the topology minimum.
	ErrTooFewDisks = errors.New("too few disks")

	// ErrPrecondition is returned when a request is rejected before any destructive step.
	ErrPrecondition = errors.New("precondition violated")

	// ErrDeviceTooSmall is returned for devices below the configured minimum size.
	ErrDeviceTooSmall = errors.New("device too small")

	// ErrPartitionTimeout is returned when new partition nodes never appear.
	ErrPartitionTimeout = errors.New("partition nodes did not appear")

	// ErrAborted is returned when the operator declines a confirmation.
	ErrAborted = errors.New("aborted by operator")
)
