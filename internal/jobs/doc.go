// Package jobs persists export jobs and their lifecycle transitions.
//
// A job starts queued, is claimed by exactly one worker into processing, and
// ends ready or failed. Jobs and their progress survive daemon restarts.
package jobs
