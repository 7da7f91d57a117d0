package docker

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// fakeAPI is an in-memory daemon implementing the parts of
// client.APIClient the launcher uses. Calling anything else panics on the
// nil embedded interface.
type fakeAPI struct {
	client.APIClient

	mu sync.Mutex

	// images present locally; creating from any other image fails with
	// not found until it is pulled.
	images map[string]bool

	created   []createCall
	started   []string
	kills     []string
	removed   []string
	pulled    []string
	listed    []container.ListOptions
	summaries []container.Summary

	startErr error
	pingErr  error
	nextID   int
}

type createCall struct {
	Config     *container.Config
	HostConfig *container.HostConfig
	Name       string
}

func newFakeAPI(images ...string) *fakeAPI {
	f := &fakeAPI{images: map[string]bool{}}
	for _, img := range images {
		f.images[img] = true
	}
	return f
}

type notFoundError struct{ msg string }

func (e notFoundError) Error() string { return e.msg }
func (e notFoundError) NotFound()     {}

func (f *fakeAPI) ContainerCreate(_ context.Context, cfg *container.Config, hostCfg *container.HostConfig,
	_ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.images[cfg.Image] {
		return container.CreateResponse{}, notFoundError{"No such image: " + cfg.Image}
	}
	f.nextID++
	f.created = append(f.created, createCall{Config: cfg, HostConfig: hostCfg, Name: name})
	return container.CreateResponse{ID: fmt.Sprintf("%064x", f.nextID)}, nil
}

func (f *fakeAPI) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, id)
	return nil
}

func (f *fakeAPI) ContainerKill(_ context.Context, id, signal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kills = append(f.kills, id+" "+signal)
	return nil
}

func (f *fakeAPI) ContainerWait(_ context.Context, _ string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	statusCh <- container.WaitResponse{StatusCode: 137}
	return statusCh, make(chan error)
}

func (f *fakeAPI) ContainerRemove(_ context.Context, id string, opts container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !opts.Force {
		return io.ErrUnexpectedEOF
	}
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeAPI) ContainerList(_ context.Context, opts container.ListOptions) ([]container.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, opts)
	return f.summaries, nil
}

func (f *fakeAPI) ContainerLogs(_ context.Context, _ string, _ container.LogsOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeAPI) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulled = append(f.pulled, ref)
	f.images[ref] = true
	return io.NopCloser(strings.NewReader(`{"status":"Downloaded newer image"}`)), nil
}

func (f *fakeAPI) Ping(_ context.Context) (types.Ping, error) {
	return types.Ping{APIVersion: "1.51"}, f.pingErr
}

func (f *fakeAPI) Close() error { return nil }
