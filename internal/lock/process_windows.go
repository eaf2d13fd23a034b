//go:build windows

package lock

import (
	"syscall"
)

// processExists reports whether a process with the given PID is running
func processExists(pid int) bool {
	const processQueryLimitedInformation = 0x1000

	handle, err := syscall.OpenProcess(processQueryLimitedInformation, false, uint32(pid))
	if err != nil {
		return false
	}
	defer syscall.CloseHandle(handle)

	var exitCode uint32
	if err := syscall.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}

	// STILL_ACTIVE
	return exitCode == 259
}
