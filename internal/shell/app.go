package shell

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mmr-tortoise/clovis-desktop/internal/config"
	"github.com/mmr-tortoise/clovis-desktop/internal/docker"
	"github.com/mmr-tortoise/clovis-desktop/internal/model"
	"github.com/mmr-tortoise/clovis-desktop/internal/port"
	"github.com/mmr-tortoise/clovis-desktop/internal/supervisor"
	"github.com/mmr-tortoise/clovis-desktop/internal/webview"
)

// ErrAlreadySetUp is returned by Setup on every call after the first. An
// App owns at most one backend, so it can only be set up once.
var ErrAlreadySetUp = errors.New("application already set up")

// shutdownTimeout bounds how long Run waits for in-flight frontend
// requests once the exit has been requested.
const shutdownTimeout = 5 * time.Second

// Options adjusts how an App runs.
type Options struct {
	// Headless skips the frontend host. The backend still runs until the
	// context passed to Run ends.
	Headless bool

	// Launcher overrides the launcher chosen from the configuration.
	Launcher supervisor.Launcher

	// Logf receives progress messages. Nil discards them.
	Logf func(format string, args ...any)

	// Report is called once the application is up.
	Report func(model.LaunchInfo)
}

// App is one application instance.
type App struct {
	cfg  *config.Config
	opts Options
	logf func(format string, args ...any)

	mu          sync.Mutex
	setupCalled bool
	ready       bool
	sup         *supervisor.Supervisor
	port        int
	hook        func(webview.Window)
	frontendDir string
	host        *webview.Host
	closers     []func() error
}

// New creates an App for cfg. cfg must already be validated.
func New(cfg *config.Config, opts Options) *App {
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &App{cfg: cfg, opts: opts, logf: logf}
}

// Setup chooses the backend port and prepares the page-load hook. In
// release mode it reserves an ephemeral port and spawns the backend; in
// dev mode it uses the configured dev port and spawns nothing.
//
// Errors are CLIErrors and are meant to abort the application. Setup runs
// at most once; later calls return ErrAlreadySetUp, even after a failure.
func (a *App) Setup(ctx context.Context) error {
	a.mu.Lock()
	if a.setupCalled {
		a.mu.Unlock()
		return ErrAlreadySetUp
	}
	a.setupCalled = true
	a.mu.Unlock()

	frontendDir, err := a.resolveFrontendDir()
	if err != nil {
		return err
	}

	var p int
	switch a.cfg.Mode {
	case model.ModeDev:
		p = a.cfg.Dev.Port
		if !port.NewScanner().IsListening(p) {
			a.logf("Nothing is listening on dev port %d yet; start the backend by hand", p)
		}
	default:
		p, err = a.spawnBackend(ctx)
		if err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.port = p
	a.hook = webview.PageLoadHook(webview.BaseURL(p))
	a.frontendDir = frontendDir
	a.ready = true
	a.mu.Unlock()
	return nil
}

// spawnBackend reserves a port, resolves the packaged backend and starts it.
func (a *App) spawnBackend(ctx context.Context) (int, error) {
	resourceDir, err := a.cfg.ResolveResourceDir()
	if err != nil {
		return 0, err
	}
	a.logf("Resource directory: %s", resourceDir)

	p, err := port.Reserve()
	if err != nil {
		return 0, model.WrapCLIError(model.ExitPortReservationFailed, "failed to reserve a backend port", err)
	}
	a.logf("Reserved backend port %d", p)

	spec, err := a.cfg.ResolveBackend(p, resourceDir)
	if err != nil {
		return 0, err
	}

	launcher, err := a.launcher(ctx)
	if err != nil {
		return 0, err
	}
	if a.cfg.Backend.Launcher != model.LauncherContainer {
		spec.Executable = supervisor.ResolveExecutable(spec.Executable, resourceDir)
	}

	sup := supervisor.New(launcher, supervisor.WithLogf(a.logf))
	a.mu.Lock()
	a.sup = sup
	a.mu.Unlock()

	if err := sup.Spawn(ctx, spec); err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			return 0, err
		}
		return 0, model.WrapCLIError(model.ExitBackendSpawnFailed, "failed to start the backend", err)
	}
	a.logf("Backend %s running with %s", sup.BackendID(), spec.PortEnv())
	return p, nil
}

// launcher returns the configured launcher. The container launcher needs
// a reachable daemon and removes backend containers left by earlier
// sessions before starting a new one.
func (a *App) launcher(ctx context.Context) (supervisor.Launcher, error) {
	if a.opts.Launcher != nil {
		return a.opts.Launcher, nil
	}
	if a.cfg.Backend.Launcher != model.LauncherContainer {
		return supervisor.NewProcessLauncher(), nil
	}

	cli, err := docker.NewClient()
	if err != nil {
		return nil, err
	}
	a.addCloser(cli.Close)
	if err := cli.Ping(ctx); err != nil {
		return nil, err
	}

	l := docker.NewContainerLauncher(cli, a.logf)
	removed, err := docker.RemoveOrphans(ctx, cli, l.Session(), docker.ScopeStopped)
	if err != nil {
		a.logf("Could not clean up old backend containers: %v", err)
	}
	for _, b := range removed {
		a.logf("Removed orphaned backend container %s (session %s, port %d)",
			b.Container.ContainerName, b.Session, b.Port)
	}
	return l, nil
}

// resolveFrontendDir returns the directory to serve, or "" when running
// headless. A relative directory is taken from the resource directory.
func (a *App) resolveFrontendDir() (string, error) {
	dir := a.cfg.Frontend.Dir
	if a.opts.Headless || dir == "" {
		return "", nil
	}
	if !filepath.IsAbs(dir) {
		resourceDir, err := a.cfg.ResolveResourceDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(resourceDir, dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", model.WrapCLIError(
			model.ExitResourceNotFound,
			fmt.Sprintf("frontend directory not found: %s", dir),
			err,
		)
	}
	return dir, nil
}

// Run sets the application up, unless Setup already succeeded, serves the
// frontend and blocks until ctx is done or the frontend host fails. It then
// delivers ExitRequested, stops the host, and delivers Exit.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	a.mu.Lock()
	called, ready := a.setupCalled, a.ready
	a.mu.Unlock()
	switch {
	case !called:
		if err := a.Setup(ctx); err != nil {
			return err
		}
	case !ready:
		return model.NewCLIError(model.ExitGeneralError, "application setup did not complete")
	}

	var hostErr <-chan error
	if a.frontendDir != "" {
		ln, err := net.Listen("tcp", a.cfg.Frontend.Listen)
		if err != nil {
			a.exit()
			return model.WrapCLIError(model.ExitGeneralError,
				fmt.Sprintf("failed to listen on %s", a.cfg.Frontend.Listen), err)
		}
		host := webview.NewHost(a.frontendDir, a.OnPageLoad)
		hostErr = host.Start(ln)
		a.mu.Lock()
		a.host = host
		a.mu.Unlock()
	} else {
		a.logf("Running headless")
	}

	if a.opts.Report != nil {
		a.opts.Report(a.Info())
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-hostErr:
	}

	a.exit()
	return runErr
}

// exit delivers both exit events around the host shutdown, as the host
// runtime does when a window is closed.
func (a *App) exit() {
	a.HandleEvent(model.EventExitRequested)

	a.mu.Lock()
	host := a.host
	a.mu.Unlock()
	if host != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = host.Shutdown(ctx)
		cancel()
	}

	a.HandleEvent(model.EventExit)
}

// HandleEvent reacts to a run event. Exit events terminate the backend;
// the supervisor makes every delivery after the first a no-op.
func (a *App) HandleEvent(ev model.RunEvent) {
	if !ev.IsExit() {
		return
	}
	a.mu.Lock()
	sup := a.sup
	a.mu.Unlock()
	if sup == nil {
		return
	}
	a.logf("Received %s", ev)
	sup.Terminate()
}

// OnPageLoad publishes the backend base URL to a freshly loaded page.
// Before Setup it does nothing.
func (a *App) OnPageLoad(w webview.Window) {
	a.mu.Lock()
	hook := a.hook
	a.mu.Unlock()
	if hook != nil {
		hook(w)
	}
}

// Info describes the running application.
func (a *App) Info() model.LaunchInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	info := model.LaunchInfo{
		Mode:  a.cfg.Mode,
		Port:  a.port,
		State: model.StateNotStarted,
	}
	if a.port != 0 {
		info.BaseURL = webview.BaseURL(a.port)
	}
	if a.sup != nil {
		info.Launcher = a.cfg.Backend.Launcher
		info.State = a.sup.State()
		info.BackendID = a.sup.BackendID()
	}
	if a.host != nil {
		info.FrontendURL = a.host.URL()
	}
	return info
}

func (a *App) addCloser(fn func() error) {
	a.mu.Lock()
	a.closers = append(a.closers, fn)
	a.mu.Unlock()
}

// close releases resources acquired during Setup. The backend has already
// been terminated by then.
func (a *App) close() {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()
	for _, fn := range closers {
		_ = fn()
	}
}
