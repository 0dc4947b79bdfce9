// Package test holds small helpers shared by the test suites.
package test

import (
	"fmt"
	"net"
)

const DEFAULT_LISTENER_ADDRESS = "127.0.0.1"

// ListenerString formats an address and port the way the --listener flag expects them.
func ListenerString(address string, port int) string {
	return fmt.Sprintf("%s:%d", address, port)
}

// GetFreePorts asks the kernel for n free TCP ports on the loopback interface.
// The listeners are closed before returning, so a small race window exists before
// the caller rebinds them; acceptable for tests.
func GetFreePorts(n int) ([]int, error) {
	ports := make([]int, 0, n)
	listeners := make([]net.Listener, 0, n)

	defer func() {
		for _, l := range listeners {
			_ = l.Close()
		}
	}()

	for i := 0; i < n; i++ {
		l, err := net.Listen("tcp", ListenerString(DEFAULT_LISTENER_ADDRESS, 0))
		if err != nil {
			return nil, err
		}
		listeners = append(listeners, l)
		ports = append(ports, l.Addr().(*net.TCPAddr).Port)
	}

	return ports, nil
}
