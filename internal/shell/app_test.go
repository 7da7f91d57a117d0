package shell

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmr-tortoise/clovis-desktop/internal/config"
	"github.com/mmr-tortoise/clovis-desktop/internal/model"
	"github.com/mmr-tortoise/clovis-desktop/internal/supervisor"
	"github.com/mmr-tortoise/clovis-desktop/internal/webview"
)

// releaseConfig lays out a resource directory with a backend script and a
// built frontend, and returns a release-mode config pointing at it.
func releaseConfig(t *testing.T) *config.Config {
	t.Helper()
	resources := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(resources, "server.js"), []byte("// backend"), 0o644))
	web := filepath.Join(resources, "web")
	require.NoError(t, os.MkdirAll(web, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(web, "index.html"),
		[]byte("<html><head><title>Clovis</title></head><body></body></html>"), 0o644))

	cfg := config.Default()
	cfg.Backend.ResourceDir = resources
	cfg.Backend.LogFile = "none"
	require.NoError(t, cfg.Validate())
	return cfg
}

type recordingWindow struct{ scripts []string }

func (w *recordingWindow) Eval(script string) error {
	w.scripts = append(w.scripts, script)
	return nil
}

func singleHandle(t *testing.T, l *supervisor.FakeLauncher) *supervisor.FakeHandle {
	t.Helper()
	handles := l.Handles()
	require.Len(t, handles, 1)
	return handles[0]
}

// TestSetup_Release reserves a port, spawns the backend with it and binds
// the page-load hook to the same port.
func TestSetup_Release(t *testing.T) {
	launcher := &supervisor.FakeLauncher{}
	app := New(releaseConfig(t), Options{Launcher: launcher, Headless: true})

	require.NoError(t, app.Setup(context.Background()))

	launched := launcher.Launched()
	require.Len(t, launched, 1)
	spec := launched[0]
	assert.Contains(t, spec.EnvList(), spec.PortEnv())
	assert.Equal(t, "server.js", filepath.Base(spec.Script))

	w := &recordingWindow{}
	app.OnPageLoad(w)
	require.Len(t, w.scripts, 1)
	assert.Equal(t, webview.BootstrapScript(webview.BaseURL(spec.Port)), w.scripts[0])

	info := app.Info()
	assert.Equal(t, model.ModeRelease, info.Mode)
	assert.Equal(t, spec.Port, info.Port)
	assert.Equal(t, webview.BaseURL(spec.Port), info.BaseURL)
	assert.Equal(t, model.StateRunning, info.State)
	assert.Equal(t, "fake-1", info.BackendID)
}

// TestHandleEvent_KillsOnce delivers ExitRequested then Exit and checks the
// backend is killed and reaped exactly once.
func TestHandleEvent_KillsOnce(t *testing.T) {
	launcher := &supervisor.FakeLauncher{}
	app := New(releaseConfig(t), Options{Launcher: launcher, Headless: true})
	require.NoError(t, app.Setup(context.Background()))

	app.HandleEvent(model.EventExitRequested)
	app.HandleEvent(model.EventExit)
	app.HandleEvent(model.EventExit)

	h := singleHandle(t, launcher)
	assert.Equal(t, 1, h.Kills())
	assert.Equal(t, 1, h.Waits())
	assert.Equal(t, model.StateTerminated, app.Info().State)
}

// TestSetup_Twice calls Setup again on a running app: the second call is
// rejected without launching, and the exit still kills the one backend.
func TestSetup_Twice(t *testing.T) {
	launcher := &supervisor.FakeLauncher{}
	app := New(releaseConfig(t), Options{Launcher: launcher, Headless: true})
	require.NoError(t, app.Setup(context.Background()))
	firstPort := app.Info().Port

	err := app.Setup(context.Background())
	assert.ErrorIs(t, err, ErrAlreadySetUp)
	assert.Len(t, launcher.Launched(), 1)
	assert.Equal(t, firstPort, app.Info().Port)

	app.HandleEvent(model.EventExit)
	h := singleHandle(t, launcher)
	assert.Equal(t, 1, h.Kills())
	assert.Equal(t, 1, h.Waits())
}

// TestSetup_TwiceAfterFailure keeps a failed Setup final.
func TestSetup_TwiceAfterFailure(t *testing.T) {
	launcher := &supervisor.FakeLauncher{Err: errors.New("exec format error")}
	app := New(releaseConfig(t), Options{Launcher: launcher, Headless: true})

	require.Error(t, app.Setup(context.Background()))
	assert.ErrorIs(t, app.Setup(context.Background()), ErrAlreadySetUp)

	err := app.Run(context.Background())
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitGeneralError, cliErr.Code)
	assert.Empty(t, launcher.Launched())
	assert.Empty(t, app.Info().BaseURL)
}

// TestRun_AfterSetup runs an app that was already set up: Run reuses that
// backend instead of spawning another.
func TestRun_AfterSetup(t *testing.T) {
	launcher := &supervisor.FakeLauncher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var reported model.LaunchInfo
	app := New(releaseConfig(t), Options{
		Launcher: launcher,
		Headless: true,
		Report: func(info model.LaunchInfo) {
			reported = info
			cancel()
		},
	})
	require.NoError(t, app.Setup(ctx))
	setupPort := app.Info().Port

	require.NoError(t, app.Run(ctx))

	assert.Len(t, launcher.Launched(), 1)
	assert.Equal(t, setupPort, reported.Port)
	h := singleHandle(t, launcher)
	assert.Equal(t, 1, h.Kills())
	assert.Equal(t, 1, h.Waits())
}

func TestHandleEvent_BeforeSetup(t *testing.T) {
	app := New(releaseConfig(t), Options{Launcher: &supervisor.FakeLauncher{}})
	assert.NotPanics(t, func() { app.HandleEvent(model.EventExit) })

	w := &recordingWindow{}
	app.OnPageLoad(w)
	assert.Empty(t, w.scripts, "no injection before the port is known")
}

func TestSetup_Dev(t *testing.T) {
	cfg := releaseConfig(t)
	cfg.Mode = model.ModeDev
	cfg.Dev.Port = 3100
	launcher := &supervisor.FakeLauncher{}
	app := New(cfg, Options{Launcher: launcher, Headless: true})

	require.NoError(t, app.Setup(context.Background()))
	assert.Empty(t, launcher.Launched(), "dev mode spawns nothing")

	w := &recordingWindow{}
	app.OnPageLoad(w)
	assert.Equal(t, []string{"window.__CLOVIS_API_BASE__ = 'http://127.0.0.1:3100';"}, w.scripts)

	info := app.Info()
	assert.Equal(t, 3100, info.Port)
	assert.Equal(t, model.StateNotStarted, info.State)
	assert.NotPanics(t, func() { app.HandleEvent(model.EventExit) })
}

func TestSetup_MissingScript(t *testing.T) {
	cfg := releaseConfig(t)
	cfg.Backend.Script = "missing.js"
	launcher := &supervisor.FakeLauncher{}

	err := New(cfg, Options{Launcher: launcher, Headless: true}).Setup(context.Background())
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitResourceNotFound, cliErr.Code)
	assert.Empty(t, launcher.Launched())
}

func TestSetup_MissingFrontendDir(t *testing.T) {
	cfg := releaseConfig(t)
	cfg.Frontend.Dir = "dist"
	launcher := &supervisor.FakeLauncher{}

	err := New(cfg, Options{Launcher: launcher}).Setup(context.Background())
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitResourceNotFound, cliErr.Code)
	assert.Empty(t, launcher.Launched(), "nothing spawned when the frontend is missing")
}

// TestRun_SpawnFailureStartsNoHost checks that a backend that cannot be
// started aborts the run before anything is served.
func TestRun_SpawnFailureStartsNoHost(t *testing.T) {
	cfg := releaseConfig(t)
	cfg.Frontend.Dir = "web"
	reported := false
	app := New(cfg, Options{
		Launcher: &supervisor.FakeLauncher{Err: errors.New("exec: \"bun\": executable file not found in $PATH")},
		Report:   func(model.LaunchInfo) { reported = true },
	})

	err := app.Run(context.Background())
	var cliErr *model.CLIError
	require.ErrorAs(t, err, &cliErr)
	assert.Equal(t, model.ExitBackendSpawnFailed, cliErr.Code)
	assert.Contains(t, err.Error(), "executable file not found")
	assert.False(t, reported)
	assert.Empty(t, app.Info().FrontendURL)
	assert.Equal(t, model.StateNotStarted, app.Info().State)
}

// TestRun_ServesInjectedFrontend runs the whole application: the served
// page carries the backend base URL and cancelling the context kills the
// backend once.
func TestRun_ServesInjectedFrontend(t *testing.T) {
	cfg := releaseConfig(t)
	cfg.Frontend.Dir = "web"
	launcher := &supervisor.FakeLauncher{}
	infos := make(chan model.LaunchInfo, 1)
	app := New(cfg, Options{
		Launcher: launcher,
		Report:   func(info model.LaunchInfo) { infos <- info },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	var info model.LaunchInfo
	select {
	case info = <-infos:
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("application did not come up")
	}
	require.NotEmpty(t, info.FrontendURL)

	resp, err := http.Get(info.FrontendURL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), webview.BootstrapScript(info.BaseURL))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	h := singleHandle(t, launcher)
	assert.Equal(t, 1, h.Kills())
	assert.Equal(t, model.StateTerminated, app.Info().State)
}

func TestRun_Headless(t *testing.T) {
	cfg := releaseConfig(t)
	cfg.Frontend.Dir = "web"
	launcher := &supervisor.FakeLauncher{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	app := New(cfg, Options{
		Launcher: launcher,
		Headless: true,
		Report:   func(model.LaunchInfo) { cancel() },
	})

	require.NoError(t, app.Run(ctx))

	assert.Empty(t, app.Info().FrontendURL)
	assert.Equal(t, 1, singleHandle(t, launcher).Kills())
}
