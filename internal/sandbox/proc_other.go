//go:build !unix

package sandbox

import "os/exec"

// configureProcess keeps the default CommandContext behavior of killing the
// interpreter process itself.
func configureProcess(cmd *exec.Cmd) {}
