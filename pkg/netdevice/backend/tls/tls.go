// Package tls implements backend.Backend over crypto/tls. Go's tls.Conn
// has no nonblocking mode of its own, so Open doesn't dial/handshake
// inline: it launches a background goroutine to do that work and returns
// immediately in Connecting state, the same async-connect shape the tcp
// backend gets from a nonblocking socket. Poll observes completion. Once
// connected, ReadBody/WriteBody run with a short per-call deadline on the
// underlying connection and report a timeout as NotReady rather than
// propagating it as an error — this mirrors the wire contract (Poll-driven,
// never blocks the caller) without reimplementing a TLS state machine over
// raw sockets.
package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend"
)

const stepTimeout = 5 * time.Millisecond

// Options are the tls:// query-string parameters this backend understands.
type Options struct {
	Insecure         bool `mapstructure:"insecure"`
	ConnectTimeoutMS int  `mapstructure:"connect_timeout_ms"`
}

func defaultOptions() Options {
	return Options{ConnectTimeoutMS: 5000}
}

// Backend is a single TLS stream session.
type Backend struct {
	opts Options

	mu          sync.Mutex
	conn        net.Conn
	state       backend.State
	writeCursor uint32
	readCursor  uint32
	lastErr     error
	peerAddr    string

	connectDone chan struct{} // closed exactly once, when the connect goroutine exits
	cancel      context.CancelFunc
}

var _ backend.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{state: backend.Idle}
}

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		IsStreaming:             true,
		RequiresSequentialRead:  true,
		RequiresSequentialWrite: true,
	}
}

// Open parses the target and kicks off dial+handshake on a background
// goroutine, returning immediately with state Connecting. Poll picks up
// the result once the goroutine finishes.
func (b *Backend) Open(ctx context.Context, opts backend.OpenOptions) error {
	host, portStr, err := net.SplitHostPort(authorityOf(opts.URL))
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}

	b.opts = defaultOptions()
	_ = backend.DecodeQuery(opts.RawQuery, &b.opts)
	b.peerAddr = net.JoinHostPort(host, portStr)
	b.state = backend.Connecting
	b.connectDone = make(chan struct{})

	connectCtx, cancel := context.WithTimeout(context.Background(), time.Duration(b.opts.ConnectTimeoutMS)*time.Millisecond)
	b.cancel = cancel

	go func() {
		defer close(b.connectDone)
		defer cancel()

		dialer := net.Dialer{}
		tcpConn, err := dialer.DialContext(connectCtx, "tcp", b.peerAddr)
		if err != nil {
			b.mu.Lock()
			b.lastErr = fmt.Errorf("tls: dial: %w", err)
			b.mu.Unlock()
			return
		}

		tlsConn := tls.Client(tcpConn, &tls.Config{
			ServerName:         host,
			InsecureSkipVerify: b.opts.Insecure,
		})
		if err := tlsConn.HandshakeContext(connectCtx); err != nil {
			tcpConn.Close()
			b.mu.Lock()
			b.lastErr = fmt.Errorf("tls: handshake: %w", err)
			b.mu.Unlock()
			return
		}

		b.mu.Lock()
		b.conn = tlsConn
		b.mu.Unlock()
	}()

	return nil
}

// Poll observes connect-goroutine completion; once connected,
// ReadBody/WriteBody manage their own short deadlines per call so no
// further pumping is needed.
func (b *Backend) Poll(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != backend.Connecting {
		return
	}
	select {
	case <-b.connectDone:
		if b.conn != nil {
			b.state = backend.Connected
		} else {
			b.state = backend.Error
		}
	default:
	}
}

func (b *Backend) ReadBody(ctx context.Context, offset uint32, dst []byte) (int, bool, error) {
	b.mu.Lock()
	conn := b.conn
	state := b.state
	lastErr := b.lastErr
	b.mu.Unlock()

	if offset != b.readCursor {
		return 0, false, backend.ErrSequence
	}
	if state != backend.Connected {
		if state == backend.PeerClosed {
			return 0, true, nil
		}
		if state == backend.Connecting {
			return 0, false, backend.ErrNotReady
		}
		return 0, false, lastErr
	}

	conn.SetReadDeadline(time.Now().Add(stepTimeout))
	n, err := conn.Read(dst)
	if n > 0 {
		b.readCursor += uint32(n)
	}
	if err == nil {
		return n, false, nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return n, false, backend.ErrNotReady
	}
	b.mu.Lock()
	b.state = backend.PeerClosed
	b.mu.Unlock()
	return n, true, nil
}

func (b *Backend) WriteBody(ctx context.Context, offset uint32, data []byte) (int, error) {
	b.mu.Lock()
	conn := b.conn
	state := b.state
	b.mu.Unlock()

	if offset != b.writeCursor {
		return 0, backend.ErrSequence
	}
	if state != backend.Connected {
		return 0, backend.ErrNotReady
	}
	if len(data) == 0 {
		return 0, nil
	}

	conn.SetWriteDeadline(time.Now().Add(stepTimeout))
	n, err := conn.Write(data)
	if n > 0 {
		b.writeCursor += uint32(n)
	}
	if err == nil {
		return n, nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return n, backend.ErrBusy
	}
	b.mu.Lock()
	b.state = backend.Error
	b.lastErr = err
	b.mu.Unlock()
	return n, err
}

func (b *Backend) Info(ctx context.Context, maxHeaderBytes uint16) (backend.Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	info := backend.Info{
		State:       b.state,
		Diagnostics: map[string]string{"peer": b.peerAddr},
	}
	if tlsConn, ok := b.conn.(*tls.Conn); ok {
		cs := tlsConn.ConnectionState()
		info.Diagnostics["tls_version"] = strconv.Itoa(int(cs.Version))
	}
	if b.lastErr != nil {
		info.LastErr = b.lastErr.Error()
	}
	return info, nil
}

// Close stops an in-progress connect (if any) and closes the connection.
// Cleanup of the connecting goroutine is cooperative: cancel unblocks
// DialContext/HandshakeContext, which then exit the goroutine on their
// own and close(connectDone) as usual.
func (b *Backend) Close() error {
	b.mu.Lock()
	cancel := b.cancel
	conn := b.conn
	b.conn = nil
	b.state = backend.Idle
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// authorityOf strips any "scheme://" prefix and "?query" suffix from a
// URL, leaving the bare "host:port" authority the net package expects.
func authorityOf(url string) string {
	s := url
	if idx := strings.Index(s, "://"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.IndexByte(s, '?'); idx >= 0 {
		s = s[:idx]
	}
	return s
}
