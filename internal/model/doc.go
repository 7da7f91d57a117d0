// Package model defines the domain types and value objects for the
// clovis-desktop shell.
//
// This package contains pure data structures with no external dependencies.
// The supervised backend's lifecycle (ProcessState), the host runtime's
// exit notifications (RunEvent), and the launch parameters handed from the
// configuration layer to the supervisor (BackendSpec) all live here so that
// every other package can share them without import cycles.
//
// The package also defines exit codes (ExitCode) and a custom error type
// (CLIError) that carries exit codes for proper OS process exit handling.
package model
