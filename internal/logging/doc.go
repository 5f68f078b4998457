// Package logging provides slog-based structured logging with console and
// JSON handlers, standardized field names, and context-derived attributes.
package logging
