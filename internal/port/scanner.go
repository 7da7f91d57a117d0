package port

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// maxPort is the highest valid TCP/UDP port number (2^16 - 1).
const maxPort = 65535

// dialTimeout bounds each connection attempt made by IsListening. Loopback
// connections are answered or refused almost at once, so a short timeout
// only matters for a non-local host.
const dialTimeout = 500 * time.Millisecond

// ipv6Loopback is the IPv6 loopback address. A dev server started with
// "localhost" may listen only there.
const ipv6Loopback = "::1"

// Scanner checks ports on a given host address.
//
// It uses the operating system's network stack to decide. IsPortAvailable
// tries to bind (net.Listen / net.ListenPacket) and IsListening tries to
// connect (net.DialTimeout). Both ask the OS directly rather than parsing
// /proc/net/* or shelling out to `lsof`, which may need elevated
// permissions.
type Scanner struct {
	// host is the address to check. Empty means all interfaces.
	host string
}

// NewScanner creates a Scanner that checks the loopback interface, which is
// where the dev backend and the reserved backend port live.
func NewScanner() *Scanner {
	return &Scanner{host: LoopbackHost}
}

// NewScannerForHost creates a Scanner bound to the given host address.
// An empty host checks all interfaces.
func NewScannerForHost(host string) *Scanner {
	return &Scanner{host: host}
}

// IsPortAvailable checks whether a single port is free on the scanner's host.
//
// For TCP, it attempts net.Listen. For UDP, it attempts net.ListenPacket.
// If the bind succeeds the port is available and the test socket is closed
// immediately.
//
// Returns false if the port is in use, out of range, or the protocol is
// unknown.
func (s *Scanner) IsPortAvailable(port int, protocol string) bool {
	if port < 1 || port > maxPort {
		return false
	}
	addr := net.JoinHostPort(s.host, fmt.Sprint(port))

	switch protocol {
	case "tcp":
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = listener.Close() }()
		return true

	case "udp":
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		defer func() { _ = conn.Close() }()
		return true

	default:
		// Unknown protocol: report unavailable.
		return false
	}
}

// IsListening reports whether some process accepts TCP connections on the
// given port. Dev mode uses it to warn when the developer forgot to start
// the backend by hand.
//
// It connects instead of binding. A failed bind only says the port is
// taken, which is also true for a socket that is bound but not listening,
// or one held in TIME_WAIT. A completed handshake means a server is there.
// For the loopback host (and the all-interfaces host) both 127.0.0.1 and
// ::1 are tried, since either may be the only address the server took.
func (s *Scanner) IsListening(port int) bool {
	if port < 1 || port > maxPort {
		return false
	}
	for _, host := range s.dialHosts() {
		conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), dialTimeout)
		if err == nil {
			_ = conn.Close()
			return true
		}
	}
	return false
}

// dialHosts returns the addresses IsListening connects to, in order.
func (s *Scanner) dialHosts() []string {
	switch s.host {
	case "", LoopbackHost, "localhost":
		return []string{LoopbackHost, ipv6Loopback}
	default:
		return []string{s.host}
	}
}
