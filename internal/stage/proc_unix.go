//go:build !windows

package stage

import (
	"os/exec"
	"syscall"
)

// configureProcess makes context cancellation forward SIGTERM to the child
// instead of SIGKILL. The child stays in our process group, so a terminal
// Ctrl-C reaches it directly as well.
func configureProcess(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
}
