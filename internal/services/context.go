package services

import "context"

type contextKey string

const (
	jobIDKey    contextKey = "job_id"
	languageKey contextKey = "language"
)

// WithJobID attaches an export job identifier to the context for logging.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the export job identifier, if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(jobIDKey).(string)
	return id, ok && id != ""
}

// WithLanguage attaches the requested dataset language to the context.
func WithLanguage(ctx context.Context, language string) context.Context {
	return context.WithValue(ctx, languageKey, language)
}

// LanguageFromContext extracts the dataset language, if present.
func LanguageFromContext(ctx context.Context) (string, bool) {
	language, ok := ctx.Value(languageKey).(string)
	return language, ok && language != ""
}
