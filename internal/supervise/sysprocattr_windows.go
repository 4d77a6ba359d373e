//go:build windows

package supervise

import "os/exec"

// Windows uses job objects rather than POSIX process groups; taskkill /T in
// terminate handles tree-wide delivery instead.
func configureCmdSysProcAttr(cmd *exec.Cmd) {}
