// Package ports provides bind-probe port allocation for managed services.
//
// The probe-then-bind pattern is inherently racy against concurrent external
// processes: a port reported available here can be taken before the caller
// binds it. That is acceptable for a local single-user tool and callers must
// treat results as best effort, not reservations.
package ports

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// DefaultHost is the host probed when callers pass an empty host.
const DefaultHost = "127.0.0.1"

// Prober checks whether a port can be bound. The default implementation binds
// a real listener; tests substitute a fake occupancy map.
type Prober func(port int, host string) bool

// IsPortAvailable reports whether a test listener can bind the port on the
// given host. "Address in use" means unavailable; any other bind error is
// treated as available, biasing toward usability over safety.
func IsPortAvailable(port int, host string) bool {
	if host == "" {
		host = DefaultHost
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return false
		}
		// Permission errors, bad host, exhausted descriptors: assume the
		// port itself is fine so a misconfigured host does not block every
		// allocation.
		return true
	}
	if closeErr := listener.Close(); closeErr != nil {
		return true
	}
	return true
}

// FindAvailablePort probes linearly forward from start for at most
// maxAttempts ports and returns the first available one. The second return
// value is false when every probed port is occupied.
func FindAvailablePort(start, maxAttempts int, host string) (int, bool) {
	return findAvailablePort(start, maxAttempts, host, IsPortAvailable)
}

// FindAvailablePorts returns count available ports, each search resuming one
// past the previously found port, so the result is strictly increasing and
// never overlaps within a single call.
func FindAvailablePorts(start, count, maxAttempts int, host string) ([]int, bool) {
	return findAvailablePorts(start, count, maxAttempts, host, IsPortAvailable)
}

func findAvailablePort(start, maxAttempts int, host string, probe Prober) (int, bool) {
	for port := start; port < start+maxAttempts && port <= 65535; port++ {
		if probe(port, host) {
			return port, true
		}
	}
	return 0, false
}

func findAvailablePorts(start, count, maxAttempts int, host string, probe Prober) ([]int, bool) {
	found := make([]int, 0, count)
	next := start
	for len(found) < count {
		port, ok := findAvailablePort(next, maxAttempts, host, probe)
		if !ok {
			return found, false
		}
		found = append(found, port)
		next = port + 1
	}
	return found, true
}
