// Package auditlog provides the durable, rotated record of every
// state-changing action an invocation performs (SPEC_FULL.md §3). It
// is deliberately separate from pkg/logger's namespace debug tracer:
// this log is always written (not gated by DEBUG=...), structured as
// JSON, and meant to be grepped long after the process exits.
package auditlog

import (
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Entry is one audit record.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	InvocationID string    `json:"invocation_id"`
	Command      string    `json:"command"`
	Component    string    `json:"component,omitempty"`
	Outcome      string    `json:"outcome"`
	Detail       string    `json:"detail,omitempty"`
}

// Log wraps a zap logger sinked through a rotating file writer.
type Log struct {
	invocationID string
	zl           *zap.Logger
}

// Open creates (or appends to) the audit log under
// <workspaceRoot>/.meta/audit.log, rotating at 10MB with 5 backups
// kept for 28 days, matching the teacher's own operational defaults
// for long-lived log files.
func Open(workspaceRoot, invocationID string) (*Log, error) {
	w := &lumberjack.Logger{
		Filename:   filepath.Join(workspaceRoot, ".meta", "audit.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(w),
		zap.InfoLevel,
	)

	return &Log{invocationID: invocationID, zl: zap.New(core)}, nil
}

// Record appends one audit entry.
func (l *Log) Record(command, component, outcome, detail string) {
	if l == nil {
		return
	}
	fields := []zap.Field{
		zap.String("invocation_id", l.invocationID),
		zap.String("command", command),
		zap.String("outcome", outcome),
	}
	if component != "" {
		fields = append(fields, zap.String("component", component))
	}
	if detail != "" {
		fields = append(fields, zap.String("detail", detail))
	}
	l.zl.Info("audit", fields...)
}

// Close flushes and releases the underlying writer.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.zl.Sync()
}
