package http

import (
	"context"
	"log/slog"
)

// handlerLogger derives the logger for one handler operation. The request
// logger wins over the handler's own; the authenticated actor is attached
// when the request carries one so gesture logs can be traced to a person.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = fallback
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := make([]any, 0, 6+len(attrs))
	pairs = append(pairs, "handler", handlerName)
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if principal, ok := PrincipalFromContext(ctx); ok && principal.UserID != "" {
		pairs = append(pairs, "actor", principal.UserID)
	}
	return logger.With(append(pairs, attrs...)...)
}
