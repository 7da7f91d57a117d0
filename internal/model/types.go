package model

import (
	"fmt"
	"strings"
	"time"
)

// BackendPortEnv is the environment variable the backend server reads to
// discover which port it must bind.
const BackendPortEnv = "CLOVIS_BACKEND_PORT"

// ProcessState represents the lifecycle state of the supervised backend.
// The state transitions are:
//
//	NotStarted → Running → Terminated
//
// There is no way back: a terminated backend is never restarted within the
// same application instance.
type ProcessState string

const (
	// StateNotStarted is the initial state. It is also the state reported in
	// dev mode, where no backend is spawned at all.
	StateNotStarted ProcessState = "not-started"

	// StateRunning indicates a backend handle is held by the supervisor.
	StateRunning ProcessState = "running"

	// StateTerminated indicates the handle was taken by the shutdown path
	// and the kill-and-wait sequence has been issued.
	StateTerminated ProcessState = "terminated"
)

// String returns the string representation of ProcessState.
func (s ProcessState) String() string {
	return string(s)
}

// IsValid checks whether the ProcessState value is one of the
// predefined valid states.
func (s ProcessState) IsValid() bool {
	switch s {
	case StateNotStarted, StateRunning, StateTerminated:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal step in
// the NotStarted → Running → Terminated state machine.
func (s ProcessState) CanTransition(next ProcessState) bool {
	switch s {
	case StateNotStarted:
		return next == StateRunning
	case StateRunning:
		return next == StateTerminated
	default:
		return false
	}
}

// RunEvent is a notification delivered by the host runtime's event loop.
type RunEvent string

const (
	// EventExitRequested is delivered when the user or the OS asks the
	// application to quit.
	EventExitRequested RunEvent = "exit-requested"

	// EventExit is delivered once, right before the process exits.
	EventExit RunEvent = "exit"
)

// String returns the string representation of RunEvent.
func (e RunEvent) String() string {
	return string(e)
}

// IsExit reports whether the event should trigger backend termination.
// Both exit-requested and the final exit qualify; the supervisor makes
// the second delivery a no-op.
func (e RunEvent) IsExit() bool {
	return e == EventExitRequested || e == EventExit
}

// LauncherKind selects how the backend is started.
type LauncherKind string

const (
	// LauncherProcess runs the backend as a plain child process.
	LauncherProcess LauncherKind = "process"

	// LauncherContainer runs the backend inside a Docker container with the
	// reserved port published on the loopback interface.
	LauncherContainer LauncherKind = "container"
)

// String returns the string representation of LauncherKind.
func (k LauncherKind) String() string {
	return string(k)
}

// IsValid checks whether the LauncherKind is a known launcher.
func (k LauncherKind) IsValid() bool {
	return k == LauncherProcess || k == LauncherContainer
}

// ParseLauncherKind converts a string to a LauncherKind.
// The empty string maps to LauncherProcess.
func ParseLauncherKind(s string) (LauncherKind, error) {
	if s == "" {
		return LauncherProcess, nil
	}
	kind := LauncherKind(strings.ToLower(s))
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid launcher: %q (valid: process, container)", s)
	}
	return kind, nil
}

// Mode selects between the packaged release behavior and development.
type Mode string

const (
	// ModeRelease reserves an ephemeral port and spawns the bundled backend.
	ModeRelease Mode = "release"

	// ModeDev points the frontend at a fixed port where a developer runs the
	// backend by hand. Nothing is spawned.
	ModeDev Mode = "dev"
)

// String returns the string representation of Mode.
func (m Mode) String() string {
	return string(m)
}

// IsValid checks whether the Mode is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeRelease || m == ModeDev
}

// ParseMode converts a string to a Mode. The empty string maps to ModeRelease.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return ModeRelease, nil
	}
	mode := Mode(strings.ToLower(s))
	if !mode.IsValid() {
		return "", fmt.Errorf("invalid mode: %q (valid: release, dev)", s)
	}
	return mode, nil
}

// BackendSpec holds everything a launcher needs to start the backend.
type BackendSpec struct {
	// Port is the reserved port passed to the backend via BackendPortEnv.
	Port int `json:"port"`

	// Executable is the runtime that interprets the script (e.g. "bun").
	// For the process launcher it is an absolute path or a PATH lookup
	// result; for the container launcher it is resolved inside the image.
	Executable string `json:"executable"`

	// Script is the absolute path of the backend bundle on the host.
	Script string `json:"script"`

	// Image is the container image. Only used by the container launcher.
	Image string `json:"image,omitempty"`

	// Env holds extra variables for the backend, in addition to the
	// inherited environment and BackendPortEnv.
	Env map[string]string `json:"env,omitempty"`

	// LogPath receives the backend's stdout and stderr. Empty discards them.
	LogPath string `json:"logPath,omitempty"`
}

// Validate checks the fields every launcher relies on.
func (s *BackendSpec) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("backend spec: port %d out of range (1-65535)", s.Port)
	}
	if s.Executable == "" {
		return fmt.Errorf("backend spec: executable must not be empty")
	}
	if s.Script == "" {
		return fmt.Errorf("backend spec: script must not be empty")
	}
	return nil
}

// PortEnv returns the "CLOVIS_BACKEND_PORT=<port>" assignment.
func (s *BackendSpec) PortEnv() string {
	return fmt.Sprintf("%s=%d", BackendPortEnv, s.Port)
}

// EnvList returns BackendPortEnv followed by the extra variables as
// "KEY=value" strings. BackendPortEnv always wins over a same-named entry
// in Env.
func (s *BackendSpec) EnvList() []string {
	env := make([]string, 0, len(s.Env)+1)
	for k, v := range s.Env {
		if k == BackendPortEnv {
			continue
		}
		env = append(env, k+"="+v)
	}
	return append(env, s.PortEnv())
}

// LaunchInfo summarizes a completed startup for display.
type LaunchInfo struct {
	Mode        Mode         `json:"mode"`
	Port        int          `json:"port"`
	BaseURL     string       `json:"baseUrl"`
	Launcher    LauncherKind `json:"launcher,omitempty"`
	BackendID   string       `json:"backendId,omitempty"`
	State       ProcessState `json:"state"`
	FrontendURL string       `json:"frontendUrl,omitempty"`
}

// ContainerInfo holds runtime information about a Docker container.
// This data is fetched dynamically from the Docker API, not persisted.
type ContainerInfo struct {
	// ContainerID is the unique Docker container identifier.
	ContainerID string `json:"containerId"`

	// ContainerName is the human-readable Docker container name.
	ContainerName string `json:"containerName"`

	// Status is the Docker container state ("running", "exited", ...).
	Status string `json:"status"`

	// Labels is the full set of Docker labels on the container.
	Labels map[string]string `json:"labels,omitempty"`
}

// BackendContainer is the metadata stamped on a containerized backend.
// It is reconstructed from container labels when looking for backends left
// behind by a session that crashed before it could terminate them.
type BackendContainer struct {
	// Session identifies the application launch that created the container.
	Session string `json:"session"`

	// Port is the reserved port the backend was published on.
	Port int `json:"port"`

	// Script is the host path of the backend bundle.
	Script string `json:"script"`

	// CreatedAt is when the container was created.
	CreatedAt time.Time `json:"createdAt"`

	// Container is filled in from the Docker API when listing.
	Container *ContainerInfo `json:"container,omitempty"`
}

// ExitCode defines the CLI exit codes. These codes allow scripts and
// installers to tell a missing resource apart from a backend that would
// not start.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error occurred.
	ExitGeneralError ExitCode = 1

	// ExitResourceNotFound indicates the resource directory, the backend
	// script, or an explicitly named config file was missing.
	ExitResourceNotFound ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitPortReservationFailed indicates the OS refused to hand out an
	// ephemeral port.
	ExitPortReservationFailed ExitCode = 4

	// ExitBackendSpawnFailed indicates the backend executable could not be
	// found or started.
	ExitBackendSpawnFailed ExitCode = 5

	// ExitConfigInvalid indicates the configuration could not be parsed or
	// failed validation.
	ExitConfigInvalid ExitCode = 6
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error satisfies the error interface. It returns the human-readable
// error message, optionally including the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
