//go:build !windows

package follow

import (
	"os"
	"syscall"
)

// processExists reports whether the writer process is still running, by
// sending it signal 0.
func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
