package store

// Status is the desired/observed lifecycle state of a binding. Intent values
// (need_start, need_stop, need_restart) may be written by any caller; the
// running values (starting, started, stopping, restarting) are owned by the
// supervisor's reconcile loop.
type Status string

// Binding lifecycle statuses.
const (
	StatusStopped     Status = "stopped"
	StatusNeedStart   Status = "need_start"
	StatusStarting    Status = "starting"
	StatusStarted     Status = "started"
	StatusNeedStop    Status = "need_stop"
	StatusStopping    Status = "stopping"
	StatusNeedRestart Status = "need_restart"
	StatusRestarting  Status = "restarting"
)

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusStopped, StatusNeedStart, StatusStarting, StatusStarted,
		StatusNeedStop, StatusStopping, StatusNeedRestart, StatusRestarting:
		return true
	}
	return false
}

// Intent reports whether s is one of the externally writable intent statuses.
func (s Status) Intent() bool {
	switch s {
	case StatusNeedStart, StatusNeedStop, StatusNeedRestart:
		return true
	}
	return false
}

// Stopped reports whether s belongs to the stop family: the binding is not
// expected to have a running worker, so drift must not trigger a restart.
func (s Status) Stopped() bool {
	switch s {
	case StatusNeedStop, StatusStopping, StatusStopped:
		return true
	}
	return false
}
