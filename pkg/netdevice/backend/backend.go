// Package backend defines the contract every NetworkDevice transport
// (TCP, TLS, HTTP) implements, and the small set of types they share:
// connection state, capability flags, and the Info summary returned to
// the bus.
package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// State is a backend's connection lifecycle stage. Not every backend uses
// every state (HTTP, for instance, never reports PeerClosed), but all of
// them report from this one enum so NetworkDevice can reason about them
// uniformly.
type State uint8

const (
	Idle State = iota
	Connecting
	Connected
	PeerClosed
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case PeerClosed:
		return "PeerClosed"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Capabilities describes what a backend supports, so NetworkDevice can
// enforce e.g. sequential-offset reads only where required.
type Capabilities struct {
	IsStreaming             bool
	RequiresSequentialRead  bool
	RequiresSequentialWrite bool
}

// OpenOptions carries everything an Open call needs, assembled by
// NetworkDevice from the wire request before scheme dispatch.
type OpenOptions struct {
	Method         string
	FollowRedirect bool
	StreamedBody   bool // flag bit2: body length not known up front
	URL            string
	RawQuery       string // the "?k=v&k=v" portion, backend-specific
	RequestHeaders map[string]string
	BodyLenHint    uint32
	// ResponseHeaderAllowlist is the lowercase set of header names Info
	// is permitted to report back.
	ResponseHeaderAllowlist []string
}

// Info is the point-in-time snapshot returned to NetworkDevice's Info
// command, with fields various backends leave zero when irrelevant
// (TCP/TLS never set HTTPStatus, for instance).
type Info struct {
	State      State
	HasStatus  bool
	HTTPStatus uint16
	HasLength  bool
	Length     uint64
	Headers    map[string]string
	// Diagnostics holds backend-specific pseudo-headers (TCP/TLS) or is
	// nil for HTTP, which reports real response headers in Headers.
	Diagnostics map[string]string
	LastErr     string
}

// Backend is the polymorphic transport NetworkDevice drives per session.
// Every method must be nonblocking: long-running work happens in Poll or
// a background goroutine (the HTTP request worker, the TLS handshake),
// never inline in Read/Write.
type Backend interface {
	// Open begins connecting/dispatching per opts and returns an error
	// only when that cannot start. The resulting state (e.g. Connecting
	// for async backends) is reported through Info, not by Open.
	Open(ctx context.Context, opts OpenOptions) error

	Capabilities() Capabilities

	// ReadBody copies up to len(dst) bytes starting at offset into dst.
	// Returns the count copied, whether this is the stream's logical
	// EOF, and an error (NotReady-class errors are returned via the
	// sentinel errors below, not as opaque errors).
	ReadBody(ctx context.Context, offset uint32, dst []byte) (n int, eof bool, err error)

	// WriteBody writes data at offset (which streaming backends require
	// to equal the current write cursor). A zero-length write at the
	// expected offset is the commit signal for a deferred POST/PUT body.
	WriteBody(ctx context.Context, offset uint32, data []byte) (n int, err error)

	Info(ctx context.Context, maxHeaderBytes uint16) (Info, error)

	// Poll advances background work (connect-in-progress, HTTP worker
	// completion). Called at least once per bus tick for every open
	// session regardless of pending I/O.
	Poll(ctx context.Context)

	Close() error
}

// Sentinel errors a Backend returns from ReadBody/WriteBody/Open; the
// bus-facing device layer maps these to bus.StatusCode.
var (
	// ErrNotReady means the operation is valid but must be retried later
	// (no bytes yet, still connecting, worker still running).
	ErrNotReady = errors.New("backend: not ready")
	// ErrBusy means there's no room to accept data right now; retry.
	ErrBusy = errors.New("backend: busy")
	// ErrSequence means the caller's offset didn't match the backend's
	// expected read/write cursor.
	ErrSequence = errors.New("backend: non-sequential offset")
	// ErrUnsupportedScheme means no backend is registered for the
	// requested URL scheme.
	ErrUnsupportedScheme = errors.New("backend: unsupported scheme")
)

// DecodeQuery parses a raw "k=v&k=v" query string (the portion after the
// target URL's "?") into opts, a pointer to a transport's Options struct,
// via its `mapstructure` tags. WeaklyTypedInput lets "1"/"true"-style
// query values bind to bool fields and numeric strings bind to int
// fields, so each backend doesn't hand-roll its own strconv switch.
// Unknown keys are ignored; a value that can't convert to its field's
// type leaves that field at its existing (default) value.
func DecodeQuery(raw string, opts interface{}) error {
	raw = strings.TrimPrefix(raw, "?")
	if raw == "" {
		return nil
	}

	values := make(map[string]interface{})
	for _, kv := range strings.Split(raw, "&") {
		if kv == "" {
			continue
		}
		parts := strings.SplitN(kv, "=", 2)
		val := ""
		if len(parts) == 2 {
			val = parts[1]
		}
		values[parts[0]] = val
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           opts,
	})
	if err != nil {
		return err
	}
	// mapstructure still populates every field it can convert even when it
	// returns an error for the rest, so a single bad value (or an unknown
	// key, which isn't an error at all since ErrorUnused isn't set) never
	// blocks the other options from taking effect.
	_ = decoder.Decode(values)
	return nil
}
