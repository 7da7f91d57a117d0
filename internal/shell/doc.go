// Package shell ties the pieces of the desktop shell together: port
// reservation, the backend supervisor, and the frontend host.
//
// An App runs in two phases. Setup decides the backend port and, in
// release mode, spawns the backend; any failure there is fatal and happens
// before a frontend is served. Run then serves the frontend until its
// context ends and delivers the exit events that tear the backend down.
package shell
