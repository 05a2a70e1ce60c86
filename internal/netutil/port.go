// Package netutil provides small networking helpers for the cast server.
package netutil

import (
	"net"
	"strconv"
)

// PortNotFound is returned when no port in the probed range is free.
const PortNotFound = -1

// FindAvailablePort scans the inclusive range [start, end] and returns
// the first port for which a test bind-and-release succeeds, or
// PortNotFound if every port is occupied.
//
// The probe is inherently racy: a port reported free here can be taken
// by another process before the caller binds it. That limitation is
// accepted; callers must handle a failed bind on the returned port.
func FindAvailablePort(start, end int) int {
	for port := start; port <= end; port++ {
		listener, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			continue
		}
		_ = listener.Close()
		return port
	}
	return PortNotFound
}
