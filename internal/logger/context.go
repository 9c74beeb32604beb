package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for a single bus dispatch.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	DeviceID  uint8     // Target bus device id
	Command   uint16    // Command code being dispatched
	Handle    uint16    // Network session handle, if applicable
	Slot      int       // Disk slot index, if applicable (-1 if not)
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a dispatch to the given device.
func NewLogContext(deviceID uint8) *LogContext {
	return &LogContext{
		DeviceID:  deviceID,
		Slot:      -1,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		DeviceID:  lc.DeviceID,
		Command:   lc.Command,
		Handle:    lc.Handle,
		Slot:      lc.Slot,
		StartTime: lc.StartTime,
	}
}

// WithCommand returns a copy with the command code set
func (lc *LogContext) WithCommand(cmd uint16) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Command = cmd
	}
	return clone
}

// WithHandle returns a copy with the session handle set
func (lc *LogContext) WithHandle(handle uint16) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Handle = handle
	}
	return clone
}

// WithSlot returns a copy with the disk slot index set
func (lc *LogContext) WithSlot(slot int) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Slot = slot
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
