//go:build !windows

package lock

import (
	"errors"
	"os"
	"syscall"
)

// processExists reports whether a process with the given PID is running.
// Signal 0 probes existence without delivering anything; EPERM still means
// the process is alive.
func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil || errors.Is(err, syscall.EPERM) {
		return true
	}
	return false
}
