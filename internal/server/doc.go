// Package server exposes the desktop command surface over a localhost HTTP
// API: project snapshots, settings, credential resolution, project file
// storage and export, web-auth sessions, and update status.
//
// The server binds to the configured loopback host only. When no port is
// configured it probes the 3000-9000 range for the first free port and
// records the bound port in a port file so CLI commands can find it.
//
// Errors map onto HTTP statuses uniformly: store.ErrNotFound is 404,
// credentials.ErrInvalidKey is 401, a validation transport failure is 502,
// malformed input is 400, and everything else is 500 with the detail kept
// in the server log.
package server
