//go:build windows

package probe

import "os"

// Windows has no portable graceful-termination signal for arbitrary processes,
// so the termination request is a kill from the start. The caller's forced-kill
// fallback then becomes a no-op.
func signalTerm(process *os.Process) error {
	return process.Kill()
}
