package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// WithLogger returns a copy of ctx carrying l.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// Ctx returns the request-scoped logger, or the global one when ctx carries
// none. The result is a pointer so level methods can be chained directly.
func Ctx(ctx context.Context) *zerolog.Logger {
	return zerolog.Ctx(ctx)
}
