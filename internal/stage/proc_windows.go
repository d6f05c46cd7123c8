//go:build windows

package stage

import "os/exec"

// configureProcess keeps the os/exec default: cancellation kills the child.
func configureProcess(cmd *exec.Cmd) {}
