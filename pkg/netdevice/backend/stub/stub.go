// Package stub implements backend.Backend entirely in memory, for tests
// that exercise NetworkDevice's session/handle logic without a real
// socket or HTTP round trip.
package stub

import (
	"context"

	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend"
)

// Backend is a scriptable in-memory backend: tests preload ResponseBody
// and read WrittenBody back out.
type Backend struct {
	Caps         backend.Capabilities
	ResponseBody []byte
	OpenErr      error
	State        backend.State

	readCursor  uint32
	writeCursor uint32
	WrittenBody []byte
	Closed      bool
	OpenedWith  backend.OpenOptions
}

var _ backend.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{State: backend.Connected}
}

func (b *Backend) Capabilities() backend.Capabilities { return b.Caps }

func (b *Backend) Open(ctx context.Context, opts backend.OpenOptions) error {
	b.OpenedWith = opts
	if b.OpenErr != nil {
		b.State = backend.Error
		return b.OpenErr
	}
	b.State = backend.Connected
	return nil
}

func (b *Backend) Poll(ctx context.Context) {}

func (b *Backend) ReadBody(ctx context.Context, offset uint32, dst []byte) (int, bool, error) {
	if offset != b.readCursor {
		return 0, false, backend.ErrSequence
	}
	remaining := b.ResponseBody[min(len(b.ResponseBody), int(b.readCursor)):]
	n := copy(dst, remaining)
	b.readCursor += uint32(n)
	eof := n == 0 && int(b.readCursor) >= len(b.ResponseBody)
	return n, eof, nil
}

func (b *Backend) WriteBody(ctx context.Context, offset uint32, data []byte) (int, error) {
	if offset != b.writeCursor {
		return 0, backend.ErrSequence
	}
	b.WrittenBody = append(b.WrittenBody, data...)
	b.writeCursor += uint32(len(data))
	return len(data), nil
}

func (b *Backend) Info(ctx context.Context, maxHeaderBytes uint16) (backend.Info, error) {
	return backend.Info{State: b.State, HasLength: true, Length: uint64(len(b.ResponseBody))}, nil
}

func (b *Backend) Close() error {
	b.Closed = true
	b.State = backend.Idle
	return nil
}
