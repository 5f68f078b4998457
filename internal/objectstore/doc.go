// Package objectstore wraps the S3-compatible bucket that stores raw audio
// and finished export archives. It provides streaming reads, multipart
// streaming writes, and presigned download URLs.
package objectstore
