// Package services holds cross-cutting service plumbing: the error taxonomy
// used to classify pipeline failures and context carriers for structured
// logging fields.
package services
