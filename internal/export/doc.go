// Package export orchestrates one export job from record resolution through
// archive upload and terminal status.
package export
