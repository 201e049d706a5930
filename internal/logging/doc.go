// Package logging builds the slog loggers used across easel.
//
// Two handler formats are supported: a single-line console format with the
// component attribute promoted into the message prefix, and standard JSON
// output for machine consumption. Console color is enabled only when stdout
// is a terminal.
package logging
