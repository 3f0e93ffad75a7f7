package kernel

import "errors"

var (
	// ErrIllegalState is returned when an operation is invoked in a runState
	// that forbids it (e.g. Initialize while the kernel is running).
	ErrIllegalState = errors.New("kernel: illegal state for this operation")

	// ErrScheduleInPast is returned by the scheduling methods when the
	// requested time is earlier than the current simulation time.
	ErrScheduleInPast = errors.New("kernel: cannot schedule an event before the current simulation time")

	// ErrAlreadyExecuted is returned when a ScheduledEvent is executed a
	// second time.
	ErrAlreadyExecuted = errors.New("kernel: event already executed")

	// ErrInvalidPriority is returned when a caller requests a priority
	// outside [MinPriority, MaxPriority]; the values just beyond that range
	// are reserved for the kernel's own warmup/end-of-replication events.
	ErrInvalidPriority = errors.New("kernel: priority out of range")

	// ErrInvalidReplication is returned by Replication.Validate when the
	// start/warmup/end bounds are not ordered start <= warmup <= end.
	ErrInvalidReplication = errors.New("kernel: replication bounds must satisfy startTime <= warmupTime <= endTime")
)
