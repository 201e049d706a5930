package logging

import "log/slog"

// Shared attribute keys so log lines stay greppable across packages.
const (
	FieldComponent = "component"
	FieldCanvasID  = "canvas_id"
	FieldActorID   = "actor_id"
	FieldOpID      = "op_id"
	FieldOpKind    = "op_kind"
	FieldQueued    = "queued"
	FieldAttempt   = "attempt"
	FieldDelay     = "delay"
	FieldOnline    = "online"
)

// WithComponent tags a logger with the component attribute consumed by the
// console handler's message prefix.
func WithComponent(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	return logger.With(slog.String(FieldComponent, name))
}
