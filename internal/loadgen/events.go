package loadgen

import "fmt"

// Event is the root of the synthetic message hierarchy. Mailboxes
// subscribed to Event see every message except Heartbeat.
type Event interface {
	EventName() string
}

// InstanceEvent is an Event about a single instance.
type InstanceEvent interface {
	Event
	InstanceID() string
}

// InstanceStarted is posted when an instance comes up.
type InstanceStarted struct {
	ID string
}

func (e InstanceStarted) EventName() string  { return "instance.started" }
func (e InstanceStarted) InstanceID() string { return e.ID }

// InstanceStopped is posted when an instance goes away.
type InstanceStopped struct {
	ID       string
	ExitCode int
}

func (e InstanceStopped) EventName() string  { return "instance.stopped" }
func (e InstanceStopped) InstanceID() string { return e.ID }

// Notice is an Event that does not concern a particular instance.
type Notice struct {
	Text string
}

func (e Notice) EventName() string { return "notice" }

// Heartbeat belongs to no hierarchy and has no subscribers, so every
// heartbeat comes back as a returned message.
type Heartbeat struct {
	Seq int
}

// kinds is the number of distinct messages a publisher cycles through.
const kinds = 4

// message returns the i-th message posted by publisher p.
func message(p, i int) any {
	id := fmt.Sprintf("p%d-%d", p, i/kinds)
	switch i % kinds {
	case 0:
		return InstanceStarted{ID: id}
	case 1:
		return InstanceStopped{ID: id}
	case 2:
		return Notice{Text: id}
	default:
		return Heartbeat{Seq: i}
	}
}
