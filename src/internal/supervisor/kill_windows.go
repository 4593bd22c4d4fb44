//go:build windows

package supervisor

import (
	"os/exec"
	"strconv"
	"strings"
)

func configureProcAttr(cmd *exec.Cmd) {}

// terminateTree kills the process and all of its descendants. Windows has no
// process groups we can signal, so this shells out to taskkill /T.
func terminateTree(pid int) TerminateOutcome {
	out, err := exec.Command("taskkill", "/PID", strconv.Itoa(pid), "/T", "/F").CombinedOutput()
	if err == nil {
		return TerminateOutcomeTerminated
	}
	if strings.Contains(string(out), "not found") {
		return TerminateOutcomeAlreadyGone
	}
	return TerminateOutcomeFailed
}
