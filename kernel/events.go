package kernel

import "github.com/signalsfoundry/constellation-simulator/eventbus"

// Bus event types published by the kernel. Subscribers compare these by
// identity (see eventbus.Type).
var (
	TimeChanged      = eventbus.NewType("kernel.time_changed")
	Warmup           = eventbus.NewType("kernel.warmup")
	EndReplication   = eventbus.NewType("kernel.end_replication")
	EventListChanged = eventbus.NewType("kernel.eventlist_changed")
	Start            = eventbus.NewType("kernel.start")
	Stop             = eventbus.NewType("kernel.stop")
)
