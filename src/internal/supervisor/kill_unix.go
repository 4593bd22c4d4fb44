//go:build !windows

package supervisor

import (
	"errors"
	"os/exec"
	"syscall"
)

// configureProcAttr puts the child in its own process group so the whole
// tree can be signalled at once.
func configureProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminateTree kills the process group rooted at pid.
func terminateTree(pid int) TerminateOutcome {
	err := syscall.Kill(-pid, syscall.SIGKILL)
	if err == nil {
		return TerminateOutcomeTerminated
	}
	if errors.Is(err, syscall.ESRCH) {
		return TerminateOutcomeAlreadyGone
	}
	// Fall back to the single process in case it never got its own group.
	if syscall.Kill(pid, syscall.SIGKILL) == nil {
		return TerminateOutcomeTerminated
	}
	return TerminateOutcomeFailed
}
