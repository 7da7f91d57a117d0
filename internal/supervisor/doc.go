// Package supervisor spawns the backend server and guarantees it is torn
// down when the application exits.
//
// A Supervisor owns at most one backend Handle for the lifetime of the
// application. The handle is set exactly once by Spawn and taken exactly
// once by Terminate; the mutex around it exists because the host runtime
// delivers exit events on a different goroutine than the one that ran
// setup. Terminate is best-effort: kill and wait errors are discarded since
// the application is already on its way out.
//
// Launchers decide how the backend runs. ProcessLauncher starts a plain OS
// process; the docker package provides a container-based Launcher. Platform
// differences (console suppression, executable suffix, permission bits,
// process-group kill) live in a small capability table selected by build
// tags, not in runtime branches.
package supervisor
