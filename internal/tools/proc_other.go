//go:build !unix

package tools

import "os/exec"

// configureProcess keeps exec's default cancellation, which kills the direct
// child only; process groups are not available here.
func configureProcess(cmd *exec.Cmd) {
	if cmd.Cancel == nil {
		cmd.Cancel = func() error { return cmd.Process.Kill() }
	}
}
