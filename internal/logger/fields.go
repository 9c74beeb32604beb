package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// These keys are protocol-agnostic across the bus, network device, disk
// device, and modem subsystems. Use these keys consistently across all log
// statements so logs can be aggregated and queried uniformly.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Bus & Device Identification
	// ========================================================================
	KeyDeviceID  = "device_id"  // 8-bit bus device identifier
	KeyRequestID = "request_id" // Monotonic bus request id
	KeyCommand   = "command"    // 16-bit command code
	KeyStatus    = "status"     // StatusCode result
	KeyStatusMsg = "status_msg" // Human-readable status message

	// ========================================================================
	// Network Device / Sessions
	// ========================================================================
	KeyHandle    = "handle"    // NetworkDevice session handle (generation<<8|index)
	KeyScheme    = "scheme"    // URL scheme (tcp, tls, http, https)
	KeyURL       = "url"       // Target URL
	KeyOffset    = "offset"    // Stream read/write offset
	KeyMaxBytes  = "max_bytes" // Requested max bytes
	KeyDataLen   = "data_len"  // Bytes actually transferred
	KeyEOF       = "eof"       // End-of-stream indicator
	KeyTruncated = "truncated"

	// ========================================================================
	// Disk Device
	// ========================================================================
	KeySlot       = "slot"        // Disk slot index
	KeyImageType  = "image_type"  // ATR, SSD, Raw, DSD
	KeyLBA        = "lba"         // Logical sector address
	KeySectorSize = "sector_size" // Sector size in bytes
	KeyPath       = "path"        // Filesystem path
	KeyFSName     = "fs_name"     // Filesystem name (flash, sd0, host)

	// ========================================================================
	// Modem
	// ========================================================================
	KeyATCommand = "at_command"
	KeyBaud      = "baud"

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
)

// ----------------------------------------------------------------------------
// Field constructors for type safety
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID.
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID.
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// DeviceID returns a slog.Attr for the 8-bit bus device id.
func DeviceID(id uint8) slog.Attr {
	return slog.Int(KeyDeviceID, int(id))
}

// RequestID returns a slog.Attr for the monotonic bus request id.
func RequestID(id uint32) slog.Attr {
	return slog.Uint64(KeyRequestID, uint64(id))
}

// Command returns a slog.Attr for the 16-bit command code.
func Command(cmd uint16) slog.Attr {
	return slog.Int(KeyCommand, int(cmd))
}

// Status returns a slog.Attr for a StatusCode-shaped value.
func Status(code int) slog.Attr {
	return slog.Int(KeyStatus, code)
}

// StatusMsg returns a slog.Attr for a human-readable status message.
func StatusMsg(msg string) slog.Attr {
	return slog.String(KeyStatusMsg, msg)
}

// Handle returns a slog.Attr for a NetworkDevice session handle.
func Handle(h uint16) slog.Attr {
	return slog.String(KeyHandle, fmt.Sprintf("0x%04x", h))
}

// Scheme returns a slog.Attr for a URL scheme.
func Scheme(scheme string) slog.Attr {
	return slog.String(KeyScheme, scheme)
}

// URL returns a slog.Attr for a target URL.
func URL(url string) slog.Attr {
	return slog.String(KeyURL, url)
}

// Offset returns a slog.Attr for a stream offset.
func Offset(off uint32) slog.Attr {
	return slog.Uint64(KeyOffset, uint64(off))
}

// MaxBytes returns a slog.Attr for a requested max byte count.
func MaxBytes(n uint16) slog.Attr {
	return slog.Int(KeyMaxBytes, int(n))
}

// DataLen returns a slog.Attr for bytes actually transferred.
func DataLen(n int) slog.Attr {
	return slog.Int(KeyDataLen, n)
}

// EOF returns a slog.Attr for end-of-stream indicator.
func EOF(eof bool) slog.Attr {
	return slog.Bool(KeyEOF, eof)
}

// Truncated returns a slog.Attr for the truncated-read indicator.
func Truncated(t bool) slog.Attr {
	return slog.Bool(KeyTruncated, t)
}

// Slot returns a slog.Attr for a disk slot index.
func Slot(slot int) slog.Attr {
	return slog.Int(KeySlot, slot)
}

// ImageType returns a slog.Attr for a disk image type.
func ImageType(t string) slog.Attr {
	return slog.String(KeyImageType, t)
}

// LBA returns a slog.Attr for a logical sector address.
func LBA(lba uint32) slog.Attr {
	return slog.Uint64(KeyLBA, uint64(lba))
}

// SectorSize returns a slog.Attr for a sector size in bytes.
func SectorSize(n int) slog.Attr {
	return slog.Int(KeySectorSize, n)
}

// Path returns a slog.Attr for a filesystem path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// FSName returns a slog.Attr for a filesystem name.
func FSName(name string) slog.Attr {
	return slog.String(KeyFSName, name)
}

// ATCommand returns a slog.Attr for a raw Hayes AT command line.
func ATCommand(cmd string) slog.Attr {
	return slog.String(KeyATCommand, cmd)
}

// Baud returns a slog.Attr for the modem's reported baud rate.
func Baud(b int) slog.Attr {
	return slog.Int(KeyBaud, b)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a numeric error code.
func ErrorCode(code int) slog.Attr {
	return slog.Int(KeyErrorCode, code)
}
