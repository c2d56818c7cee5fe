package events

import (
	"context"
	"os"
	"sync"
)

type contextKey int

const (
	loggerKey contextKey = iota
	sessionKey
	operationKey
)

// FromContext returns the context's logger, or the default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return defaultLogger
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// WithSession tags ctx with the id of one CLI invocation, so every request
// it makes can be correlated in the logs.
func WithSession(ctx context.Context, id string) context.Context {
	logger := FromContext(ctx).WithField("session", id)
	ctx = context.WithValue(ctx, sessionKey, id)
	return WithLogger(ctx, logger)
}

// WithOperation tags ctx with the user-facing operation, e.g.
// "travelmap visit add".
func WithOperation(ctx context.Context, op string) context.Context {
	logger := FromContext(ctx).WithField("op", op)
	ctx = context.WithValue(ctx, operationKey, op)
	return WithLogger(ctx, logger)
}

// Session returns the session id stored in ctx.
func Session(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey).(string)
	return id
}

// Operation returns the operation stored in ctx.
func Operation(ctx context.Context) string {
	op, _ := ctx.Value(operationKey).(string)
	return op
}

// Annotate adds the session and operation carried by ctx to a component
// logger that was built without a context.
func Annotate(ctx context.Context, logger *Logger) *Logger {
	fields := make(map[string]interface{}, 2)
	if id := Session(ctx); id != "" {
		fields["session"] = id
	}
	if op := Operation(ctx); op != "" {
		fields["op"] = op
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.WithFields(fields)
}

var defaultLogger = &Logger{
	mu:     &sync.Mutex{},
	level:  InfoLevel,
	format: "text",
	output: os.Stderr,
	fields: make(map[string]interface{}),
}

// SetDefault replaces the logger FromContext falls back to.
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
