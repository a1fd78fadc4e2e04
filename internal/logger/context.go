package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds session-scoped logging context.
type LogContext struct {
	SessionID string // TCP session / sync session identifier
	ClientIP  string // client IP address (without port)
	UIN       uint32 // peer device UIN, once authenticated
	Plugin    string // active plugin tag, once selected
	StartTime time.Time
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

// NewLogContext creates a new LogContext with the given client IP
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		SessionID: lc.SessionID,
		ClientIP:  lc.ClientIP,
		UIN:       lc.UIN,
		Plugin:    lc.Plugin,
		StartTime: lc.StartTime,
	}
}

// WithUIN returns a copy with the peer UIN set, once the session header is authenticated.
func (lc *LogContext) WithUIN(uin uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.UIN = uin
	}
	return clone
}

// WithPlugin returns a copy with the active plugin tag set.
func (lc *LogContext) WithPlugin(tag string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Plugin = tag
	}
	return clone
}

// WithSessionID returns a copy with the session identifier set.
func (lc *LogContext) WithSessionID(id string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SessionID = id
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
