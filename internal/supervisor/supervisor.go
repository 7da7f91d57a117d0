package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mmr-tortoise/clovis-desktop/internal/model"
)

// ErrAlreadyStarted is returned by Spawn when the supervisor has already
// launched (or launched and terminated) a backend.
var ErrAlreadyStarted = errors.New("backend already started")

// ErrTerminatedDuringStart is returned by Spawn when Terminate ran while
// the launcher was still starting the backend. The new backend has been
// killed by the time Spawn returns.
var ErrTerminatedDuringStart = errors.New("backend terminated while starting")

// Handle is a running backend. Implementations must tolerate Kill on a
// process that has already exited.
type Handle interface {
	// ID identifies the backend for display: a PID or a container ID.
	ID() string

	// Kill forcefully stops the backend.
	Kill() error

	// Wait blocks until the backend has exited and its resources are
	// reclaimed.
	Wait() error
}

// Launcher starts a backend described by a BackendSpec.
type Launcher interface {
	Launch(ctx context.Context, spec model.BackendSpec) (Handle, error)
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogf routes the supervisor's lifecycle messages to logf.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(s *Supervisor) {
		if logf != nil {
			s.logf = logf
		}
	}
}

// Supervisor tracks the single backend process of an application instance.
type Supervisor struct {
	launcher Launcher
	logf     func(format string, args ...any)

	mu     sync.Mutex
	handle Handle
	state  model.ProcessState

	// starting is set while Launch runs without the lock held.
	starting bool
}

// New creates a Supervisor that starts backends with launcher.
func New(launcher Launcher, opts ...Option) *Supervisor {
	s := &Supervisor{
		launcher: launcher,
		logf:     func(string, ...any) {},
		state:    model.StateNotStarted,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Spawn launches the backend and stores its handle. It succeeds at most
// once per Supervisor. On failure the supervisor stays NotStarted and the
// launcher's error is returned wrapped; callers treat it as fatal.
//
// The lock is not held while the launcher runs, which may take as long as
// an image pull. A Terminate that arrives meanwhile marks the supervisor
// terminated; Spawn then kills the new backend itself and returns
// ErrTerminatedDuringStart.
func (s *Supervisor) Spawn(ctx context.Context, spec model.BackendSpec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.starting || !s.state.CanTransition(model.StateRunning) {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w (state: %s)", ErrAlreadyStarted, state)
	}
	s.starting = true
	s.mu.Unlock()

	h, err := s.launcher.Launch(ctx, spec)

	s.mu.Lock()
	s.starting = false
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to spawn backend %q: %w", spec.Executable, err)
	}
	if s.state == model.StateTerminated {
		s.mu.Unlock()
		_ = h.Kill()
		_ = h.Wait()
		s.logf("backend %s killed: exit requested during start", h.ID())
		return ErrTerminatedDuringStart
	}
	s.handle = h
	s.state = model.StateRunning
	s.mu.Unlock()

	s.logf("backend %s started on port %d", h.ID(), spec.Port)
	return nil
}

// Terminate takes the stored handle, if any, then kills the backend and
// waits for it to exit. Errors from both steps are discarded. Calling
// Terminate again, or before Spawn, does nothing. Called while Spawn is
// still launching, it returns at once and leaves the kill to Spawn.
func (s *Supervisor) Terminate() {
	s.mu.Lock()
	h := s.handle
	s.handle = nil
	if h != nil || s.starting {
		s.state = model.StateTerminated
	}
	s.mu.Unlock()

	if h == nil {
		return
	}

	// The lock is released before the blocking wait so State() stays
	// responsive during teardown.
	_ = h.Kill()
	_ = h.Wait()
	s.logf("backend %s terminated", h.ID())
}

// State returns the current lifecycle state.
func (s *Supervisor) State() model.ProcessState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Present reports whether a backend handle is currently stored.
func (s *Supervisor) Present() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// BackendID returns the stored handle's ID, or "" when none is stored.
func (s *Supervisor) BackendID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return ""
	}
	return s.handle.ID()
}
