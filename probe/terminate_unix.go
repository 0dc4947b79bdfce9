//go:build !windows

package probe

import (
	"os"
	"syscall"
)

// signalTerm asks the process to shut down gracefully.
func signalTerm(process *os.Process) error {
	return process.Signal(syscall.SIGTERM)
}
