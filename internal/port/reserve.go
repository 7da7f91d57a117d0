package port

import (
	"fmt"
	"net"
)

// LoopbackHost is the only interface ports are reserved on. The backend and
// the frontend host are never reachable from other machines.
const LoopbackHost = "127.0.0.1"

// Reserve obtains a free ephemeral TCP port on the loopback interface and
// releases it immediately so the caller can hand it to another process.
//
// An error here means the OS refused to bind any ephemeral port or the bound
// address could not be read back. Both indicate resource exhaustion outside
// the application's control, so callers treat the error as fatal.
func Reserve() (int, error) {
	listener, port, err := ReserveListener()
	if err != nil {
		return 0, err
	}
	if err := listener.Close(); err != nil {
		return 0, fmt.Errorf("failed to release reserved port %d: %w", port, err)
	}
	return port, nil
}

// ReserveListener binds 127.0.0.1:0 and returns the open listener together
// with the port the OS assigned. The caller owns the listener.
//
// The frontend host keeps the listener and serves on it directly, which
// avoids the close-then-rebind window Reserve has to accept for the backend.
func ReserveListener() (net.Listener, int, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(LoopbackHost, "0"))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to reserve backend port: %w", err)
	}

	// listener.Addr() returns a net.Addr; for TCP it's a *net.TCPAddr.
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok || tcpAddr.Port < 1 || tcpAddr.Port > maxPort {
		_ = listener.Close()
		return nil, 0, fmt.Errorf("failed to read reserved backend port from %v", listener.Addr())
	}

	return listener, tcpAddr.Port, nil
}
