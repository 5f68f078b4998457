// Package dataset stores and resolves speech audio catalogue records.
//
// The catalogue lives in a local SQLite database. Callers filter records by
// language and optional demographic criteria, then sample a percentage or a
// fixed number of the matching set. Resolution is available eagerly for
// small sets and as a lazy cursor for export streaming.
package dataset
