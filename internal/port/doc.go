// Package port implements loopback port reservation for the clovis-desktop
// shell.
//
// The reservation technique is the usual bind-to-zero trick:
//
//	net.Listen("tcp", "127.0.0.1:0") → read the assigned port → Close()
//
// The OS picks a free port from its ephemeral range; releasing the listener
// right away lets a separate process (the backend server) bind it instead.
// There is an unavoidable window between Close and the backend's own bind in
// which another process could take the port. The window is short and the
// ephemeral range is large, so no retry policy is layered on top.
//
// The Scanner answers the opposite question for dev mode: whether something
// is already listening on a fixed port.
package port
