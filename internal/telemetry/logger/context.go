package logger

import "context"

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const (
	// loggerKey is the context key for the logger.
	loggerKey contextKey = "wasmsnap.logger"
	// commandKey is the context key for the running CLI command.
	commandKey contextKey = "wasmsnap.command"
	// snapshotKey is the context key for the snapshot being processed.
	snapshotKey contextKey = "wasmsnap.snapshot_id"
)

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext extracts the logger from context.
// Returns the default logger if none is set.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey).(Logger); ok {
		return l
	}
	return Default()
}

// WithCommand records the CLI command name in the context.
func WithCommand(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, commandKey, name)
}

// CommandFromContext extracts the command name from context.
func CommandFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(commandKey).(string); ok {
		return name
	}
	return ""
}

// WithSnapshotID records the snapshot id in the context.
func WithSnapshotID(ctx context.Context, id uint32) context.Context {
	return context.WithValue(ctx, snapshotKey, id)
}

// SnapshotIDFromContext extracts the snapshot id from context.
func SnapshotIDFromContext(ctx context.Context) (uint32, bool) {
	id, ok := ctx.Value(snapshotKey).(uint32)
	return id, ok
}

// L is a shorthand for FromContext that also enriches the logger
// with the command and snapshot id from the context.
func L(ctx context.Context) Logger {
	l := FromContext(ctx)

	if cmd := CommandFromContext(ctx); cmd != "" {
		l = l.With("command", cmd)
	}
	if id, ok := SnapshotIDFromContext(ctx); ok {
		l = l.With("snapshot_id", id)
	}

	return l
}
