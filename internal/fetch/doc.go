// Package fetch retrieves raw audio content for export, with bounded
// concurrency, retry with exponential backoff, and order-preserving
// streaming delivery.
package fetch
