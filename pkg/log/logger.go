package log

import (
	"fmt"
	stdlog "log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured JSON logs to stderr.
//
// Each logger belongs to a subsystem, which is included in every record as
// the 'subsystem' field. Records below the configured level are dropped,
// unless the subsystem is one of the enabled subsystems in which case every
// record is logged.
//
// Logs never go to stdout, since when running under Maelstrom stdout carries
// protocol messages.
type Logger interface {
	Subsystem() string
	// WithSubsystem creates a new logger with the given subsystem.
	WithSubsystem(s string) Logger
	With(fields ...zap.Field) Logger
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Sync() error
	// StdLogger returns a standard library logger that writes each line as
	// a record with the given level.
	StdLogger(level zapcore.Level) *stdlog.Logger
}

type logger struct {
	zl *zap.Logger

	// base is the unfiltered core, including any fields added with With.
	base  zapcore.Core
	level zapcore.Level

	subsystem         string
	enabledSubsystems []string
}

// NewLogger creates a logger that filters records using the given level and
// enabled subsystems.
func NewLogger(lvl string, enabledSubsystems []string) (Logger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	// The logger name is used as the subsystem.
	encoderConfig.NameKey = "subsystem"
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(
		"2006-01-02T15:04:05.999Z07:00",
	)

	sink, _, err := zap.Open("stderr")
	if err != nil {
		return nil, fmt.Errorf("open sink: %w", err)
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		sink,
		zap.NewAtomicLevelAt(zapcore.DebugLevel),
	)
	return newLogger(core, lvl, enabledSubsystems)
}

func newLogger(core zapcore.Core, lvl string, enabledSubsystems []string) (Logger, error) {
	zapLevel, err := zapLevelFromString(lvl)
	if err != nil {
		return nil, err
	}

	l := &logger{
		base:              core,
		level:             zapLevel,
		enabledSubsystems: enabledSubsystems,
	}
	return l.build("main"), nil
}

func (l *logger) Subsystem() string {
	return l.subsystem
}

func (l *logger) WithSubsystem(s string) Logger {
	if s == l.subsystem {
		return l
	}
	return l.build(s)
}

func (l *logger) With(fields ...zap.Field) Logger {
	if len(fields) == 0 {
		return l
	}
	clone := *l
	clone.base = l.base.With(fields)
	return clone.build(l.subsystem)
}

func (l *logger) Debug(msg string, fields ...zap.Field) {
	l.zl.Debug(msg, fields...)
}

func (l *logger) Info(msg string, fields ...zap.Field) {
	l.zl.Info(msg, fields...)
}

func (l *logger) Warn(msg string, fields ...zap.Field) {
	l.zl.Warn(msg, fields...)
}

func (l *logger) Error(msg string, fields ...zap.Field) {
	l.zl.Error(msg, fields...)
}

func (l *logger) Sync() error {
	return l.zl.Sync()
}

func (l *logger) StdLogger(level zapcore.Level) *stdlog.Logger {
	stdLogger, err := zap.NewStdLogAt(l.zl, level)
	if err != nil {
		// Only fails with an invalid level, so fall back to info.
		return zap.NewStdLog(l.zl)
	}
	return stdLogger
}

// build creates a logger for the given subsystem from the base core.
func (l *logger) build(subsystem string) *logger {
	core := &filterCore{
		Core:   l.base,
		level:  l.level,
		bypass: subsystemMatch(subsystem, l.enabledSubsystems),
	}
	return &logger{
		zl:                zap.New(core).Named(subsystem),
		base:              l.base,
		level:             l.level,
		subsystem:         subsystem,
		enabledSubsystems: l.enabledSubsystems,
	}
}

// NewNopLogger returns a logger that discards all records.
func NewNopLogger() Logger {
	return &logger{
		zl:   zap.NewNop(),
		base: zapcore.NewNopCore(),
	}
}

// filterCore wraps a core to filter by level, except when bypass is set in
// which case all records are written.
type filterCore struct {
	zapcore.Core

	level  zapcore.Level
	bypass bool
}

func (c *filterCore) Enabled(lvl zapcore.Level) bool {
	return c.bypass || lvl >= c.level
}

func (c *filterCore) With(fields []zapcore.Field) zapcore.Core {
	return &filterCore{
		Core:   c.Core.With(fields),
		level:  c.level,
		bypass: c.bypass,
	}
}

func (c *filterCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}
	return ce.AddCore(ent, c)
}

func subsystemMatch(subsystem string, enabled []string) bool {
	for _, s := range enabled {
		if subsystem == s {
			return true
		}
	}
	return false
}

func zapLevelFromString(s string) (zapcore.Level, error) {
	switch s {
	case "debug":
		return zap.DebugLevel, nil
	case "info":
		return zap.InfoLevel, nil
	case "warn":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zapcore.Level(0), fmt.Errorf("unsupported level: %s", s)
	}
}
