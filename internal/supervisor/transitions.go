package supervisor

import "fencecast/internal/store"

// action is what the reconcile loop does for a binding this tick.
type action int

const (
	actionNone    action = iota // stopped
	actionLaunch                // need_start, or starting/restarting left over from a prior run
	actionRestart               // need_restart: stop then launch
	actionStop                  // need_stop, or a stale stopping
	actionCheck                 // started: verify the process is still alive
)

// actionFor is the single authority mapping a stored status to the
// supervisor's next move. The in-flight statuses starting, restarting and
// stopping only reach here when the previous run died mid-transition (a live
// transition holds the uid's in-flight guard), so each resumes toward its
// original goal.
func actionFor(status store.Status) action {
	switch status {
	case store.StatusNeedStart, store.StatusStarting, store.StatusRestarting:
		return actionLaunch
	case store.StatusNeedRestart:
		return actionRestart
	case store.StatusNeedStop, store.StatusStopping:
		return actionStop
	case store.StatusStarted:
		return actionCheck
	default:
		return actionNone
	}
}
