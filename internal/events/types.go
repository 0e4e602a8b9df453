package events

import "fencecast/internal/store"

// Event type constants for kelindar/event.
const (
	TypeStatusChanged uint32 = iota + 1
	TypeWorkerCrashed
	TypeDriftDetected
	TypeBindingRemoved
	TypeOrphanReaped
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StatusChangedEvent is published when a binding's status transitions.
type StatusChangedEvent struct {
	UID       string       `json:"uid" example:"cam-front" doc:"Binding identifier"`
	From      store.Status `json:"from" example:"need_start" doc:"Previous status"`
	To        store.Status `json:"to" example:"started" doc:"New status"`
	Timestamp string       `json:"timestamp" example:"2026-08-26T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StatusChangedEvent.
func (e StatusChangedEvent) Type() uint32 { return TypeStatusChanged }

// WorkerCrashedEvent is published when a started worker has been missing for
// the debounce threshold and a restart was issued.
type WorkerCrashedEvent struct {
	UID          string `json:"uid" example:"cam-front" doc:"Binding identifier"`
	Observations int    `json:"observations" example:"3" doc:"Consecutive ticks the process was missing"`
	Timestamp    string `json:"timestamp" example:"2026-08-26T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for WorkerCrashedEvent.
func (e WorkerCrashedEvent) Type() uint32 { return TypeWorkerCrashed }

// DriftDetectedEvent is published when the change detector finds a binding's
// source URL or watermark content differs from its snapshot.
type DriftDetectedEvent struct {
	UID       string `json:"uid" example:"cam-front" doc:"Binding identifier"`
	Reason    string `json:"reason" example:"watermark content changed" doc:"What drifted"`
	Timestamp string `json:"timestamp" example:"2026-08-26T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DriftDetectedEvent.
func (e DriftDetectedEvent) Type() uint32 { return TypeDriftDetected }

// BindingRemovedEvent is published when a binding is unbound.
type BindingRemovedEvent struct {
	UID       string `json:"uid" example:"cam-front" doc:"Binding identifier"`
	Timestamp string `json:"timestamp" example:"2026-08-26T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for BindingRemovedEvent.
func (e BindingRemovedEvent) Type() uint32 { return TypeBindingRemoved }

// OrphanReapedEvent is published when the supervisor terminates a transcoder
// process that matched no valid binding.
type OrphanReapedEvent struct {
	PID       int    `json:"pid" example:"4242" doc:"Process id of the reaped orphan"`
	Timestamp string `json:"timestamp" example:"2026-08-26T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for OrphanReapedEvent.
func (e OrphanReapedEvent) Type() uint32 { return TypeOrphanReaped }
