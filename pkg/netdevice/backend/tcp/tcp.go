// Package tcp implements backend.Backend over a raw nonblocking TCP
// socket: connect and receive are driven from Poll and WriteBody sends
// with a nonblocking write, so the bus never blocks waiting on the network.
package tcp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend"
	"github.com/fujinet-nio/fujinet-nio/pkg/ring"
	"golang.org/x/sys/unix"
)

// Options are the tcp:// query-string parameters this backend understands.
type Options struct {
	ConnectTimeoutMS int  `mapstructure:"connect_timeout_ms"`
	IOTimeoutMS      int  `mapstructure:"io_timeout_ms"`
	NoDelay          bool `mapstructure:"nodelay"`
	KeepAlive        bool `mapstructure:"keepalive"`
	RxBuf            int  `mapstructure:"rx_buf"`
	HalfClose        bool `mapstructure:"halfclose"`
}

func defaultOptions() Options {
	return Options{
		ConnectTimeoutMS: 5000,
		IOTimeoutMS:      0,
		NoDelay:          true,
		KeepAlive:        true,
		RxBuf:            8192,
		HalfClose:        false,
	}
}

// Backend is a single nonblocking TCP stream session.
type Backend struct {
	fd          int
	state       backend.State
	opts        Options
	rx          *ring.Buffer
	writeCursor uint32
	readCursor  uint32
	connectAt   time.Time
	lastErr     error
	peerAddr    string
}

var _ backend.Backend = (*Backend)(nil)

// New constructs an idle backend ready for Open.
func New() *Backend {
	return &Backend{fd: -1, state: backend.Idle}
}

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		IsStreaming:             true,
		RequiresSequentialRead:  true,
		RequiresSequentialWrite: true,
	}
}

// Open parses host:port from opts.URL (scheme already stripped by the
// caller), decodes query options, and begins a nonblocking connect.
func (b *Backend) Open(ctx context.Context, opts backend.OpenOptions) error {
	host, portStr, err := net.SplitHostPort(authorityOf(opts.URL))
	if err != nil {
		return fmt.Errorf("tcp: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("tcp: invalid port %q", portStr)
	}

	b.opts = defaultOptions()
	_ = backend.DecodeQuery(opts.RawQuery, &b.opts)
	b.rx = ring.New(b.opts.RxBuf)

	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return fmt.Errorf("tcp: resolve %q: %w", host, err)
	}
	ip4 := ips[0].To4()

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("tcp: socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("tcp: nonblock: %w", err)
	}
	if b.opts.NoDelay {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}
	if b.opts.KeepAlive {
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	}

	var addr unix.SockaddrInet4
	addr.Port = port
	if ip4 != nil {
		copy(addr.Addr[:], ip4)
	} else {
		unix.Close(fd)
		return fmt.Errorf("tcp: %q did not resolve to IPv4", host)
	}

	b.fd = fd
	b.connectAt = time.Now()
	b.peerAddr = net.JoinHostPort(host, portStr)

	err = unix.Connect(fd, &addr)
	if err == nil {
		b.state = backend.Connected
		return nil
	}
	if err == unix.EINPROGRESS {
		b.state = backend.Connecting
		return nil
	}
	unix.Close(fd)
	b.fd = -1
	b.state = backend.Error
	b.lastErr = err
	return fmt.Errorf("tcp: connect: %w", err)
}

// Poll advances an in-progress connect and pumps any readable bytes into
// the receive ring.
func (b *Backend) Poll(ctx context.Context) {
	if b.fd < 0 {
		return
	}
	if b.state == backend.Connecting {
		b.stepConnect()
	}
	if b.state == backend.Connected {
		b.pump()
	}
}

func (b *Backend) stepConnect() {
	timeout := time.Duration(b.opts.ConnectTimeoutMS) * time.Millisecond
	if timeout > 0 && time.Since(b.connectAt) > timeout {
		b.state = backend.Error
		b.lastErr = unix.ETIMEDOUT
		return
	}

	pfd := []unix.PollFd{{Fd: int32(b.fd), Events: unix.POLLOUT}}
	n, err := unix.Poll(pfd, 0)
	if err != nil || n == 0 {
		return
	}
	if pfd[0].Revents&(unix.POLLERR|unix.POLLHUP) != 0 {
		b.state = backend.Error
		b.lastErr = fmt.Errorf("tcp: connect failed")
		return
	}
	soErr, err := unix.GetsockoptInt(b.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		b.state = backend.Error
		b.lastErr = err
		return
	}
	if soErr != 0 {
		b.state = backend.Error
		b.lastErr = unix.Errno(soErr)
		return
	}
	b.state = backend.Connected
}

// pump drains whatever the kernel has buffered into rx, nonblocking.
func (b *Backend) pump() {
	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(b.fd, buf)
		if n > 0 {
			b.rx.Write(buf[:n]) // ring is fixed-capacity; excess is dropped, matching a bounded rx_buf
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		if n == 0 || err != nil {
			b.state = backend.PeerClosed
			return
		}
		if n < len(buf) {
			return
		}
	}
}

func (b *Backend) ReadBody(ctx context.Context, offset uint32, dst []byte) (int, bool, error) {
	if offset != b.readCursor {
		return 0, false, backend.ErrSequence
	}
	if b.state == backend.Error {
		return 0, false, b.lastErr
	}
	n := b.rx.Read(dst)
	if n == 0 {
		if b.state == backend.PeerClosed {
			return 0, true, nil
		}
		return 0, false, backend.ErrNotReady
	}
	b.readCursor += uint32(n)
	return n, false, nil
}

func (b *Backend) WriteBody(ctx context.Context, offset uint32, data []byte) (int, error) {
	if offset != b.writeCursor {
		return 0, backend.ErrSequence
	}
	if b.state != backend.Connected {
		return 0, backend.ErrNotReady
	}
	if len(data) == 0 {
		if b.opts.HalfClose {
			_ = unix.Shutdown(b.fd, unix.SHUT_WR)
		}
		return 0, nil
	}
	n, err := unix.Write(b.fd, data)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, backend.ErrBusy
	}
	if err != nil {
		b.state = backend.Error
		b.lastErr = err
		return 0, err
	}
	b.writeCursor += uint32(n)
	return n, nil
}

func (b *Backend) Info(ctx context.Context, maxHeaderBytes uint16) (backend.Info, error) {
	info := backend.Info{
		State: b.state,
		Diagnostics: map[string]string{
			"peer":    b.peerAddr,
			"pending": strconv.Itoa(b.rx.Len()),
		},
	}
	if b.lastErr != nil {
		info.LastErr = b.lastErr.Error()
	}
	return info, nil
}

func (b *Backend) Close() error {
	if b.fd >= 0 {
		err := unix.Close(b.fd)
		b.fd = -1
		b.state = backend.Idle
		return err
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
