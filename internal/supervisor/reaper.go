package supervisor

import (
	"context"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/procfs"

	"fencecast/internal/events"
	"fencecast/internal/retry"
)

// reapRetry bounds the termination attempts for one orphan.
var reapRetry = retry.Policy{MaxAttempts: 3, Delay: 200 * time.Millisecond}

// reapOrphans terminates transcoder processes that match no valid binding:
// leftovers from a prior crash of the daemon itself, or workers kept running
// by stale bookkeeping. A process is spared as soon as any valid uid appears
// in its argument list.
func (s *Supervisor) reapOrphans(valid map[string]bool) {
	procs, err := procfs.AllProcs()
	if err != nil {
		s.logger.Warn("Failed to enumerate processes for orphan reaping", "error", err)
		return
	}

	tool := strings.ToLower(filepath.Base(s.cfg.FFmpegPath))

	for _, p := range procs {
		comm, err := p.Comm()
		if err != nil {
			continue
		}
		if !strings.Contains(strings.ToLower(comm), tool) {
			continue
		}

		cmdline, err := p.CmdLine()
		if err != nil {
			continue
		}
		if !isOrphan(cmdline, valid) {
			continue
		}

		pid := p.PID
		err = reapRetry.Do(context.Background(), s.logger, "reap orphan", func() error {
			if killErr := syscall.Kill(pid, syscall.SIGTERM); killErr != nil && killErr != syscall.ESRCH {
				return killErr
			}
			return nil
		})
		if err != nil {
			s.logger.Error("Failed to terminate orphan process", "pid", pid, "error", err)
			continue
		}

		s.logger.Warn("Reaped orphan transcoder process", "pid", pid, "comm", comm)
		s.bus.Publish(events.OrphanReapedEvent{
			PID:       pid,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// isOrphan reports whether the command line references none of the valid
// uids. Output paths and playlist names embed the uid, so every legitimate
// worker invocation mentions it.
func isOrphan(cmdline []string, valid map[string]bool) bool {
	for uid := range valid {
		if uid == "" {
			continue
		}
		for _, arg := range cmdline {
			if strings.Contains(arg, uid) {
				return false
			}
		}
	}
	return true
}
