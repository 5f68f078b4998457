// Package client implements the HTTP and websocket client the voxport CLI
// uses to talk to a running voxportd.
package client
