package logger

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatPretty  = "pretty"
)

// Logger is a zerolog logger bound to a service name.
type Logger struct {
	zl      zerolog.Logger
	service string
}

// New builds a logger writing to cfg.Output.
func New(cfg *Config, serviceName string) *Logger {
	out := io.Writer(os.Stderr)
	if cfg.Output == "stdout" {
		out = os.Stdout
	}
	return NewWithWriter(out, cfg, serviceName)
}

// NewWithWriter builds a logger writing to w. An unparsable level falls back to info.
func NewWithWriter(w io.Writer, cfg *Config, serviceName string) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var zl zerolog.Logger
	switch cfg.Format {
	case FormatConsole, FormatPretty, "":
		zl = zerolog.New(consoleWriter(w, serviceName, cfg.NoColor))
	default:
		zl = zerolog.New(w)
	}
	ctx := zl.With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return &Logger{zl: ctx.Logger().Level(level), service: serviceName}
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (l *Logger) derive(zl zerolog.Logger) *Logger {
	return &Logger{zl: zl, service: l.service}
}

// WithComponent tags every entry with the component name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.derive(l.zl.With().Str(FieldComponent, name).Logger())
}

// WithFields attaches fields to every entry.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	return l.derive(l.zl.With().Fields(fields).Logger())
}

// WithError attaches err to every entry.
func (l *Logger) WithError(err error) *Logger {
	return l.derive(l.zl.With().Err(err).Logger())
}

type pipelineIDKey struct{}

// ContextWithPipelineID stores the pipeline id that WithContext reads back.
func ContextWithPipelineID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, pipelineIDKey{}, id)
}

// WithContext adds the pipeline id carried by ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	id, ok := ctx.Value(pipelineIDKey{}).(string)
	if !ok {
		return l
	}
	return l.derive(l.zl.With().Str(FieldPipelineID, id).Logger())
}

// Zerolog exposes the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

func (l *Logger) emit(ev *zerolog.Event, msg string, fields []map[string]any) {
	for _, f := range fields {
		ev = ev.Fields(f)
	}
	ev.Msg(msg)
}

func (l *Logger) Debug(msg string, fields ...map[string]any) { l.emit(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...map[string]any)  { l.emit(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...map[string]any)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields ...map[string]any) { l.emit(l.zl.Error(), msg, fields) }
