package kernel

import (
	"github.com/signalsfoundry/constellation-simulator/kernel/simcontext"
	"github.com/signalsfoundry/constellation-simulator/simtime"
)

// Replication describes one parameterized run: its time bounds and the
// context under which observers bind themselves.
type Replication struct {
	StartTime  simtime.Time
	WarmupTime simtime.Time
	EndTime    simtime.Time
	Context    *simcontext.Context
}

// Validate checks StartTime <= WarmupTime <= EndTime. The kernel consults a
// Replication's fields exactly once, at Initialize; after that it is treated
// as immutable for the duration of the run.
func (r Replication) Validate() error {
	if simtime.Compare(r.StartTime, r.WarmupTime) > 0 {
		return ErrInvalidReplication
	}
	if simtime.Compare(r.WarmupTime, r.EndTime) > 0 {
		return ErrInvalidReplication
	}
	return nil
}
