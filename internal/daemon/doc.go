// Package daemon hosts the long-running voxportd process: the export worker
// pool, the HTTP API with its websocket status channel, and single-instance
// locking.
package daemon
