// Package logs pages through the daemon's log file by byte offset.
//
// The Tailer backs the /api/logs endpoint and `voxport logs`: a client
// starts from the trailing lines, then resumes from the returned offset,
// optionally holding the request open while it waits for new lines.
package logs
