package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Device & Session
	// ========================================================================
	KeyUIN         = "uin"         // device UIN
	KeyPeerUIN     = "peer_uin"    // peer device UIN (when distinct from the subject)
	KeyDeviceName  = "device_name" // human-readable device name
	KeySessionID   = "session_id"  // TCP session / sync session identifier
	KeyPlugin      = "plugin"      // plugin tag: file, open, rcmd, nots, clip, sync
	KeyMethod      = "method"      // JSON-RPC method name
	KeyRequestID   = "request_id"  // JSON-RPC request id

	// ========================================================================
	// Network
	// ========================================================================
	KeyClientIP   = "client_ip"   // remote address
	KeyClientPort = "client_port" // remote port
	KeyBindAddr   = "bind_addr"   // local listen address

	// ========================================================================
	// File System Operations
	// ========================================================================
	KeyPath     = "path"     // full file/directory path
	KeyFilename = "filename" // file or directory name (basename)
	KeySize     = "size"     // byte count

	// ========================================================================
	// I/O Operations
	// ========================================================================
	KeyBytesRead    = "bytes_read"
	KeyBytesWritten = "bytes_written"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyAttempt    = "attempt"
)

// UIN returns a slog.Attr for a device UIN.
func UIN(uin uint32) slog.Attr {
	return slog.Uint64(KeyUIN, uint64(uin))
}

// PeerUIN returns a slog.Attr for a peer device UIN.
func PeerUIN(uin uint32) slog.Attr {
	return slog.Uint64(KeyPeerUIN, uint64(uin))
}

// DeviceName returns a slog.Attr for a device's display name.
func DeviceName(name string) slog.Attr {
	return slog.String(KeyDeviceName, name)
}

// SessionID returns a slog.Attr for a session identifier.
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// Plugin returns a slog.Attr for a plugin tag.
func Plugin(tag string) slog.Attr {
	return slog.String(KeyPlugin, tag)
}

// Method returns a slog.Attr for an RPC method name.
func Method(name string) slog.Attr {
	return slog.String(KeyMethod, name)
}

// RequestID returns a slog.Attr for an RPC request id rendered as a string.
func RequestID(id any) slog.Attr {
	return slog.String(KeyRequestID, fmt.Sprint(id))
}

// ClientIP returns a slog.Attr for a remote address.
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// ClientPort returns a slog.Attr for a remote port.
func ClientPort(port int) slog.Attr {
	return slog.Int(KeyClientPort, port)
}

// BindAddr returns a slog.Attr for a local listen address.
func BindAddr(addr string) slog.Attr {
	return slog.String(KeyBindAddr, addr)
}

// Path returns a slog.Attr for a file/directory path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Filename returns a slog.Attr for a file/directory basename.
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Size returns a slog.Attr for a byte count.
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// BytesRead returns a slog.Attr for actual bytes read.
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// BytesWritten returns a slog.Attr for actual bytes written.
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error, or a zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Attempt returns a slog.Attr for a retry attempt number.
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}
