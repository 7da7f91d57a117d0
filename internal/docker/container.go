// container.go implements the container launcher: the backend runs inside
// a Docker container with its reserved port published on the loopback
// interface, and the container is removed once it has stopped.
//
// Every container created here carries the "clovis.managed-by" label, so
// containers orphaned by a crashed session can be listed and removed later.
package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"

	"github.com/mmr-tortoise/clovis-desktop/internal/model"
	"github.com/mmr-tortoise/clovis-desktop/internal/port"
	"github.com/mmr-tortoise/clovis-desktop/internal/supervisor"
)

// mountPoint is where the script directory appears inside the container.
const mountPoint = "/app"

// killSignal is sent by Handle.Kill. There is no graceful stop phase.
const killSignal = "SIGKILL"

// ContainerLauncher starts backends as Docker containers. It implements
// supervisor.Launcher.
//
// The container runs spec.Executable on the bundled script, mounted
// read-only from the host, with CLOVIS_BACKEND_PORT set to the reserved
// port. The same port number is used inside and outside the container, so
// the injected API base URL is correct without any translation.
type ContainerLauncher struct {
	// cli is the daemon connection shared with the orphan cleanup.
	cli *Client

	// session is stamped on every container as LabelSession.
	session string

	// now supplies LabelCreatedAt. Tests replace it with a fixed clock.
	now func() time.Time

	// logf receives progress messages such as image pulls.
	logf func(format string, args ...any)
}

// NewContainerLauncher creates a launcher that talks to the daemon through
// cli. Each launcher gets a fresh session id, stamped on every container
// it creates.
func NewContainerLauncher(cli *Client, logf func(format string, args ...any)) *ContainerLauncher {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &ContainerLauncher{
		cli:     cli,
		session: uuid.NewString(),
		now:     time.Now,
		logf:    logf,
	}
}

// Session returns the id stamped on this launcher's containers. The run
// command passes it to RemoveOrphans so the cleanup never touches a
// container this launcher created.
func (l *ContainerLauncher) Session() string {
	return l.session
}

// Launch creates and starts the backend container.
//
// The steps are:
//
//  1. build the create request from spec (see buildContainerConfig);
//  2. ContainerCreate, and on a not-found error pull spec.Image and try
//     once more;
//  3. ContainerStart, removing the created container if the start fails
//     (a typical cause is the reserved port being taken in the meantime);
//  4. when spec.LogPath is set, follow the container's output into it.
//
// Errors are CLIErrors with ExitBackendSpawnFailed, except a missing image
// name which is a plain error caught by configuration validation first.
func (l *ContainerLauncher) Launch(ctx context.Context, spec model.BackendSpec) (supervisor.Handle, error) {
	if spec.Image == "" {
		return nil, fmt.Errorf("container launcher requires an image")
	}

	cfg, hostCfg, err := buildContainerConfig(spec, &model.BackendContainer{
		Session:   l.session,
		Port:      spec.Port,
		Script:    spec.Script,
		CreatedAt: l.now(),
	})
	if err != nil {
		return nil, err
	}
	name := containerName(l.session)

	api := l.cli.Inner()
	resp, err := api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	if cerrdefs.IsNotFound(err) {
		l.logf("Pulling image %s", spec.Image)
		if err := pullImage(ctx, l.cli, spec.Image); err != nil {
			return nil, err
		}
		resp, err = api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, name)
	}
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitBackendSpawnFailed,
			fmt.Sprintf("failed to create container %q", name),
			err,
		)
	}

	if err := api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = RemoveContainer(context.Background(), l.cli, resp.ID, true)
		return nil, model.WrapCLIError(
			model.ExitBackendSpawnFailed,
			fmt.Sprintf("failed to start container %q", name),
			err,
		)
	}
	l.logf("Started container %s (%s) publishing %s:%d", name, shortID(resp.ID), port.LoopbackHost, spec.Port)

	h := &containerHandle{cli: l.cli, id: resp.ID}
	if spec.LogPath != "" {
		h.logsDone = make(chan struct{})
		go l.followLogs(resp.ID, spec.LogPath, h.logsDone)
	}
	return h, nil
}

// followLogs appends the container's demultiplexed stdout and stderr to
// logPath until the log stream ends with the container.
func (l *ContainerLauncher) followLogs(id, logPath string, done chan<- struct{}) {
	defer close(done)

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		l.logf("Backend log unavailable: %v", err)
		return
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.logf("Backend log unavailable: %v", err)
		return
	}
	defer func() { _ = f.Close() }()

	rc, err := l.cli.Inner().ContainerLogs(context.Background(), id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		l.logf("Backend log unavailable: %v", err)
		return
	}
	defer func() { _ = rc.Close() }()

	_, _ = stdcopy.StdCopy(f, f, rc)
}

// buildContainerConfig translates a BackendSpec into the create request.
// The script's directory is mounted read-only at /app and the reserved
// port is published on the loopback interface only.
func buildContainerConfig(spec model.BackendSpec, meta *model.BackendContainer) (*container.Config, *container.HostConfig, error) {
	containerPort, err := nat.NewPort("tcp", strconv.Itoa(spec.Port))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid backend port %d: %w", spec.Port, err)
	}

	scriptDir, scriptName := filepath.Split(spec.Script)
	scriptDir = filepath.Clean(scriptDir)

	cfg := &container.Config{
		Image:        spec.Image,
		Cmd:          []string{spec.Executable, path.Join(mountPoint, scriptName)},
		Env:          spec.EnvList(),
		WorkingDir:   mountPoint,
		ExposedPorts: nat.PortSet{containerPort: struct{}{}},
		Labels:       BuildLabels(meta),
	}
	hostCfg := &container.HostConfig{
		Binds: []string{scriptDir + ":" + mountPoint + ":ro"},
		PortBindings: nat.PortMap{
			containerPort: []nat.PortBinding{{
				HostIP:   port.LoopbackHost,
				HostPort: strconv.Itoa(spec.Port),
			}},
		},
	}
	return cfg, hostCfg, nil
}

// containerName derives a readable container name from the session id,
// e.g. "clovis-backend-3f2a9c1e7b4d". Docker requires names to be unique,
// and the session id already is.
func containerName(session string) string {
	short := strings.ReplaceAll(session, "-", "")
	if len(short) > 12 {
		short = short[:12]
	}
	return "clovis-backend-" + short
}

// shortID truncates a container ID to the 12 characters the docker CLI
// shows.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// pullImage pulls ref and drains the progress stream, which is what makes
// the pull run to completion.
func pullImage(ctx context.Context, cli *Client, ref string) error {
	rc, err := cli.Inner().ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return model.WrapCLIError(
			model.ExitBackendSpawnFailed,
			fmt.Sprintf("failed to pull image %q", ref),
			err,
		)
	}
	defer func() { _ = rc.Close() }()

	if _, err := io.Copy(io.Discard, rc); err != nil {
		return model.WrapCLIError(
			model.ExitBackendSpawnFailed,
			fmt.Sprintf("failed to pull image %q", ref),
			err,
		)
	}
	return nil
}

// containerHandle is the supervisor.Handle of a backend container.
type containerHandle struct {
	cli *Client

	// id is the full container ID returned by ContainerCreate.
	id string

	// logsDone is closed when followLogs has finished writing. It is nil
	// when the backend output is discarded.
	logsDone chan struct{}

	// waitOnce makes Wait idempotent; waitErr keeps the first result.
	waitOnce sync.Once
	waitErr  error
}

// ID returns "container <short id>" for display in logs and the list
// command.
func (h *containerHandle) ID() string {
	return "container " + shortID(h.id)
}

// Kill sends SIGKILL. A container that already stopped is not an error.
func (h *containerHandle) Kill() error {
	err := h.cli.Inner().ContainerKill(context.Background(), h.id, killSignal)
	if err != nil && !cerrdefs.IsNotFound(err) && !cerrdefs.IsConflict(err) {
		return fmt.Errorf("failed to kill container %s: %w", shortID(h.id), err)
	}
	return nil
}

// Wait blocks until the container is no longer running, then removes it.
// It is safe to call more than once.
func (h *containerHandle) Wait() error {
	h.waitOnce.Do(func() {
		h.waitErr = h.wait()
	})
	return h.waitErr
}

// wait performs a single Wait: block on ContainerWait with the
// not-running condition, let the log follower drain, then force-remove the
// container. A container that is already gone counts as stopped. The first
// error encountered is returned; removal still runs after a wait error.
func (h *containerHandle) wait() error {
	ctx := context.Background()
	api := h.cli.Inner()

	statusCh, errCh := api.ContainerWait(ctx, h.id, container.WaitConditionNotRunning)
	var waitErr error
	select {
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			waitErr = fmt.Errorf("container %s: %s", shortID(h.id), status.Error.Message)
		}
	case err := <-errCh:
		if !cerrdefs.IsNotFound(err) {
			waitErr = fmt.Errorf("failed to wait for container %s: %w", shortID(h.id), err)
		}
	}

	if h.logsDone != nil {
		<-h.logsDone
	}

	if err := RemoveContainer(ctx, h.cli, h.id, true); err != nil && waitErr == nil {
		waitErr = err
	}
	return waitErr
}

// ListManagedContainers returns every container carrying the
// clovis.managed-by label, stopped ones included.
//
// The query uses the Docker API label filter, so containers of unrelated
// tools are never transferred. Returns a model.CLIError with
// ExitDockerNotRunning when the daemon cannot be queried.
func ListManagedContainers(ctx context.Context, cli *Client) ([]model.ContainerInfo, error) {
	args := filters.NewArgs()
	for k, v := range FilterLabels() {
		args.Add("label", k+"="+v)
	}

	containers, err := cli.Inner().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: args,
	})
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitDockerNotRunning,
			"failed to list Docker containers",
			err,
		)
	}

	result := make([]model.ContainerInfo, 0, len(containers))
	for _, c := range containers {
		result = append(result, containerToInfo(c))
	}
	return result, nil
}

// ListBackends returns the managed containers as BackendContainers, each
// with its Container field set to the matching ContainerInfo.
// Containers whose labels cannot be parsed are skipped, since there is no
// way to tell which session or port they belong to.
func ListBackends(ctx context.Context, cli *Client) ([]model.BackendContainer, error) {
	containers, err := ListManagedContainers(ctx, cli)
	if err != nil {
		return nil, err
	}

	backends := make([]model.BackendContainer, 0, len(containers))
	for i := range containers {
		b, err := ParseLabels(containers[i].Labels)
		if err != nil {
			continue
		}
		b.Container = &containers[i]
		backends = append(backends, *b)
	}
	return backends, nil
}

// RemoveScope selects which managed containers RemoveOrphans may remove.
type RemoveScope int

const (
	// ScopeStopped removes only containers that are no longer running.
	// This is what an application does at startup: a running container of
	// another session may belong to a second instance that is still alive,
	// and removing it would kill that instance's backend.
	ScopeStopped RemoveScope = iota

	// ScopeAll removes running containers too. Only the "clean" command
	// uses it, after the user confirmed.
	ScopeAll
)

// liveStates are the Docker container states in which the backend may
// still be serving another instance.
var liveStates = map[string]bool{
	"running":    true,
	"restarting": true,
	"paused":     true,
}

// IsLive reports whether a container in the given Docker state may still
// be serving an application instance.
func IsLive(status string) bool {
	return liveStates[status]
}

// RemoveOrphans force-removes the managed containers whose session is not
// keepSession and returns the ones it removed. Pass "" to consider every
// session. With ScopeStopped, live containers are left alone.
func RemoveOrphans(ctx context.Context, cli *Client, keepSession string, scope RemoveScope) ([]model.BackendContainer, error) {
	backends, err := ListBackends(ctx, cli)
	if err != nil {
		return nil, err
	}

	removed := make([]model.BackendContainer, 0, len(backends))
	for _, b := range backends {
		if keepSession != "" && b.Session == keepSession {
			continue
		}
		if scope == ScopeStopped && IsLive(b.Container.Status) {
			continue
		}
		if err := RemoveContainer(ctx, cli, b.Container.ContainerID, true); err != nil {
			return removed, err
		}
		removed = append(removed, b)
	}
	return removed, nil
}

// containerToInfo converts a Docker API container summary to
// model.ContainerInfo, stripping the leading "/" the API puts on names.
func containerToInfo(c container.Summary) model.ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	return model.ContainerInfo{
		ContainerID:   c.ID,
		ContainerName: name,
		Status:        string(c.State),
		Labels:        c.Labels,
	}
}

// RemoveContainer removes a container by ID. With force, a running
// container is killed first. A container that is already gone is not an
// error.
func RemoveContainer(ctx context.Context, cli *Client, containerID string, force bool) error {
	err := cli.Inner().ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force: force,
	})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}
