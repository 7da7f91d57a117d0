package supervisor

import (
	"context"
	"strconv"
	"sync"

	"github.com/mmr-tortoise/clovis-desktop/internal/model"
)

// FakeLauncher is an in-memory Launcher for tests. It records every spec
// it is asked to launch and hands out FakeHandles.
type FakeLauncher struct {
	// Err, when set, is returned by Launch instead of a handle.
	Err error

	mu       sync.Mutex
	launched []model.BackendSpec
	handles  []*FakeHandle
}

var _ Launcher = (*FakeLauncher)(nil)

// Launch records spec and returns a new FakeHandle, or Err.
func (f *FakeLauncher) Launch(ctx context.Context, spec model.BackendSpec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Err != nil {
		return nil, f.Err
	}
	f.launched = append(f.launched, spec)
	h := &FakeHandle{id: "fake-" + strconv.Itoa(len(f.launched))}
	f.handles = append(f.handles, h)
	return h, nil
}

// Launched returns a copy of the specs passed to Launch.
func (f *FakeLauncher) Launched() []model.BackendSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.BackendSpec(nil), f.launched...)
}

// Handles returns the handles created so far.
func (f *FakeLauncher) Handles() []*FakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeHandle(nil), f.handles...)
}

// FakeHandle counts Kill and Wait calls.
type FakeHandle struct {
	id string

	// KillErr and WaitErr are returned by Kill and Wait.
	KillErr error
	WaitErr error

	mu    sync.Mutex
	kills int
	waits int
}

var _ Handle = (*FakeHandle)(nil)

func (h *FakeHandle) ID() string { return h.id }

func (h *FakeHandle) Kill() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kills++
	return h.KillErr
}

func (h *FakeHandle) Wait() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.waits++
	return h.WaitErr
}

// Kills returns how many times Kill was called.
func (h *FakeHandle) Kills() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.kills
}

// Waits returns how many times Wait was called.
func (h *FakeHandle) Waits() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waits
}
