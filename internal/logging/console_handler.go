package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders human-oriented single-line output:
//
//	2026-08-26T12:00:00Z INFO syncer: drain complete ops=4 elapsed=120ms
//
// The component attribute is promoted into the message prefix; remaining
// attributes render as key=value pairs.
type consoleHandler struct {
	mu     sync.Mutex
	writer io.Writer
	level  *slog.LevelVar
	color  bool
	attrs  []slog.Attr
	prefix string
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, color bool) slog.Handler {
	return &consoleHandler{writer: w, level: lvl, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var component string
	pairs := make([]slog.Attr, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		if attr.Key == FieldComponent && component == "" {
			component = attr.Value.Resolve().String()
			continue
		}
		pairs = append(pairs, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == FieldComponent && component == "" {
			component = attr.Value.Resolve().String()
			return true
		}
		pairs = append(pairs, attr)
		return true
	})

	var buf bytes.Buffer
	buf.WriteString(timestamp.UTC().Format(time.RFC3339))
	buf.WriteByte(' ')
	h.writeLevel(&buf, record.Level)
	buf.WriteByte(' ')
	if component != "" {
		buf.WriteString(component)
		buf.WriteString(": ")
	}
	buf.WriteString(record.Message)

	for _, attr := range pairs {
		if attr.Equal(slog.Attr{}) {
			continue
		}
		buf.WriteByte(' ')
		key := attr.Key
		if h.prefix != "" {
			key = h.prefix + "." + key
		}
		buf.WriteString(key)
		buf.WriteByte('=')
		buf.WriteString(renderValue(attr.Value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := h.clone()
	clone.attrs = append(clone.attrs, attrs...)
	return clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	clone := h.clone()
	if clone.prefix == "" {
		clone.prefix = name
	} else {
		clone.prefix = clone.prefix + "." + name
	}
	return clone
}

func (h *consoleHandler) clone() *consoleHandler {
	clone := &consoleHandler{
		writer: h.writer,
		level:  h.level,
		color:  h.color,
		prefix: h.prefix,
	}
	clone.attrs = append(clone.attrs, h.attrs...)
	return clone
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiDim    = "\x1b[2m"
)

func (h *consoleHandler) writeLevel(buf *bytes.Buffer, level slog.Level) {
	label, tint := "DEBUG", ansiDim
	switch {
	case level >= slog.LevelError:
		label, tint = "ERROR", ansiRed
	case level >= slog.LevelWarn:
		label, tint = "WARN", ansiYellow
	case level >= slog.LevelInfo:
		label, tint = "INFO", ansiCyan
	}
	if !h.color {
		buf.WriteString(label)
		return
	}
	buf.WriteString(tint)
	buf.WriteString(label)
	buf.WriteString(ansiReset)
}

func renderValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return maybeQuote(v.String())
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	default:
		if err, ok := v.Any().(error); ok {
			return maybeQuote(err.Error())
		}
		return maybeQuote(v.String())
	}
}

func maybeQuote(s string) string {
	if s == "" || strings.ContainsAny(s, " =\"") {
		return strconv.Quote(s)
	}
	return s
}
