//go:build linux

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr puts the child in its own process group when ownGroup
// is set, so signals reach everything it forks. Pdeathsig makes the child
// receive SIGTERM if the orchestrator dies before reaping it.
func configureSysProcAttr(cmd *exec.Cmd, ownGroup bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   ownGroup,
		Pdeathsig: syscall.SIGTERM,
	}
}
