// Package api defines the wire types shared by the daemon's HTTP API and
// the CLI client.
package api
