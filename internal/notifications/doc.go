// Package notifications delivers export pipeline events via pluggable
// notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The worker pool emits one notification per finished job so users
// do not have to keep a status socket open.
//
// Extend this package for alternative transports; the pipeline depends only
// on the Service interface.
package notifications
