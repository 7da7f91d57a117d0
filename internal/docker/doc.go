// Package docker runs the backend inside a Docker container as an
// alternative to a plain child process.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Container labels that tie a backend container to the launch that
//     created it, so containers left behind by a crash can be found later
//   - A supervisor.Launcher whose handles kill with SIGKILL and wait for
//     the container to stop before removing it
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
