package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestProcessState_IsValid checks that only defined states pass validation.
func TestProcessState_IsValid(t *testing.T) {
	assert.True(t, StateNotStarted.IsValid())
	assert.True(t, StateRunning.IsValid())
	assert.True(t, StateTerminated.IsValid())
	assert.False(t, ProcessState("zombie").IsValid())
	assert.False(t, ProcessState("").IsValid())
}

// TestProcessState_CanTransition walks the whole transition table of the
// NotStarted → Running → Terminated state machine.
func TestProcessState_CanTransition(t *testing.T) {
	states := []ProcessState{StateNotStarted, StateRunning, StateTerminated}
	allowed := map[[2]ProcessState]bool{
		{StateNotStarted, StateRunning}:  true,
		{StateRunning, StateTerminated}: true,
	}

	for _, from := range states {
		for _, to := range states {
			t.Run(from.String()+"->"+to.String(), func(t *testing.T) {
				assert.Equal(t, allowed[[2]ProcessState{from, to}], from.CanTransition(to))
			})
		}
	}
}

// TestRunEvent_IsExit verifies that both exit notifications trigger
// termination and nothing else does.
func TestRunEvent_IsExit(t *testing.T) {
	assert.True(t, EventExitRequested.IsExit())
	assert.True(t, EventExit.IsExit())
	assert.False(t, RunEvent("page-load").IsExit())
}

// TestParseLauncherKind verifies string-to-launcher conversion,
// including the empty default and case normalization.
func TestParseLauncherKind(t *testing.T) {
	tests := []struct {
		input    string
		expected LauncherKind
		hasError bool
	}{
		{"", LauncherProcess, false},
		{"process", LauncherProcess, false},
		{"Container", LauncherContainer, false},
		{"vm", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseLauncherKind(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestParseMode verifies string-to-mode conversion.
func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
		hasError bool
	}{
		{"", ModeRelease, false},
		{"release", ModeRelease, false},
		{"DEV", ModeDev, false},
		{"debug", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseMode(tt.input)
			if tt.hasError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}

// TestBackendSpec_Validate checks the port range and required fields.
func TestBackendSpec_Validate(t *testing.T) {
	valid := BackendSpec{Port: 53211, Executable: "bun", Script: "/opt/clovis/server.js"}

	tests := []struct {
		name    string
		modify  func(s *BackendSpec)
		wantErr string
	}{
		{"valid", func(s *BackendSpec) {}, ""},
		{"port zero", func(s *BackendSpec) { s.Port = 0 }, "out of range"},
		{"port too high", func(s *BackendSpec) { s.Port = 65536 }, "out of range"},
		{"lowest port", func(s *BackendSpec) { s.Port = 1 }, ""},
		{"highest port", func(s *BackendSpec) { s.Port = 65535 }, ""},
		{"no executable", func(s *BackendSpec) { s.Executable = "" }, "executable"},
		{"no script", func(s *BackendSpec) { s.Script = "" }, "script"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := valid
			tt.modify(&spec)
			err := spec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

// TestBackendSpec_EnvList verifies that the port variable is always present
// and cannot be overridden through Env.
func TestBackendSpec_EnvList(t *testing.T) {
	spec := BackendSpec{
		Port: 53211,
		Env: map[string]string{
			"NODE_ENV":     "production",
			BackendPortEnv: "1",
		},
	}

	env := spec.EnvList()

	assert.Len(t, env, 2)
	assert.Contains(t, env, "NODE_ENV=production")
	assert.Contains(t, env, "CLOVIS_BACKEND_PORT=53211")
	assert.NotContains(t, env, "CLOVIS_BACKEND_PORT=1")
	assert.Equal(t, "CLOVIS_BACKEND_PORT=53211", env[len(env)-1])
}

// TestCLIError verifies the custom error type used for exit code mapping.
func TestCLIError(t *testing.T) {
	t.Run("simple error", func(t *testing.T) {
		err := NewCLIError(ExitBackendSpawnFailed, "backend did not start")
		assert.Equal(t, ExitBackendSpawnFailed, err.Code)
		assert.Equal(t, "backend did not start", err.Error())
		assert.Nil(t, err.Unwrap())
	})

	t.Run("wrapped error", func(t *testing.T) {
		inner := errors.New("executable file not found in $PATH")
		err := WrapCLIError(ExitBackendSpawnFailed, "backend did not start", inner)
		assert.Equal(t, ExitBackendSpawnFailed, err.Code)
		assert.Contains(t, err.Error(), "executable file not found")
		assert.Equal(t, inner, err.Unwrap())
	})

	t.Run("errors.Is chain", func(t *testing.T) {
		inner := errors.New("connection refused")
		err := WrapCLIError(ExitDockerNotRunning, "Docker daemon is not running", inner)
		assert.True(t, errors.Is(err, inner))
	})
}
