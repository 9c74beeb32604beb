// Package legacy bridges the historic single-character device protocol
// (device IDs 0x71-0x78, commands 'O'/'C'/'R'/'W'/'S') onto NetworkDevice,
// so clients built against the original bus never need to learn the
// binary Open/Read/Write/Info/Close protocol directly.
package legacy

import (
	"context"
	"sync"

	"github.com/fujinet-nio/fujinet-nio/pkg/bus"
	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice"
	"github.com/fujinet-nio/fujinet-nio/pkg/wire"
)

// Legacy device ID range and single-character commands.
const (
	FirstDeviceID uint8 = 0x71
	LastDeviceID  uint8 = 0x78
	NumDevices          = int(LastDeviceID-FirstDeviceID) + 1

	CmdOpen   uint16 = 'O'
	CmdClose  uint16 = 'C'
	CmdRead   uint16 = 'R'
	CmdWrite  uint16 = 'W'
	CmdStatus uint16 = 'S'
)

// Legacy aux1 method codes, per the historic N: device protocol.
const (
	aux1Get1    = 4
	aux1Get2    = 12
	aux1Del1    = 5
	aux1Del2    = 9
	aux1Put1    = 8
	aux1Put2    = 14
	aux1Post    = 13
)

// Legacy status-record error bytes.
const (
	errOK        uint8 = 1
	errEOF       uint8 = 136
	errForbidden uint8 = 165
	errNotFound  uint8 = 170
	errClient    uint8 = 144
	errServer    uint8 = 146
)

// slot is the per-device-ID bookkeeping the bridge keeps: one NetworkDevice
// session worth of translation state.
type slot struct {
	opened         bool
	handle         uint16
	writeCursor    uint32
	readCursor     uint32
	awaitingCommit bool
}

// Bridge adapts net to the legacy 0x71-0x78 protocol. One Bridge instance
// is registered for every legacy device ID; Handle uses req.Device to pick
// the right slot, so a single Bridge can serve the whole ID range if the
// transport dispatches by device ID rather than by distinct Device values.
type Bridge struct {
	mu    sync.Mutex
	net   *netdevice.Device
	slots [NumDevices]slot
}

var _ bus.Device = (*Bridge)(nil)

// New builds a Bridge translating onto net.
func New(net *netdevice.Device) *Bridge {
	return &Bridge{net: net}
}

func (b *Bridge) Poll(ctx context.Context) {}

func slotIndex(deviceID uint8) (int, bool) {
	if deviceID < FirstDeviceID || deviceID > LastDeviceID {
		return 0, false
	}
	return int(deviceID - FirstDeviceID), true
}

func respond(req bus.IORequest, status bus.StatusCode, payload []byte) bus.IOResponse {
	return bus.IOResponse{ID: req.ID, Device: req.Device, Command: req.Command, Status: status, Payload: payload}
}

// Handle dispatches a single legacy character command.
func (b *Bridge) Handle(ctx context.Context, req bus.IORequest) bus.IOResponse {
	idx, ok := slotIndex(req.Device)
	if !ok {
		return respond(req, bus.DeviceNotFound, nil)
	}

	switch req.Command {
	case CmdOpen:
		return b.handleOpen(ctx, req, idx)
	case CmdClose:
		return b.handleClose(ctx, req, idx)
	case CmdRead:
		return b.handleRead(ctx, req, idx)
	case CmdWrite:
		return b.handleWrite(ctx, req, idx)
	case CmdStatus:
		return b.handleStatus(ctx, req, idx)
	default:
		return respond(req, bus.InvalidRequest, nil)
	}
}

// methodFromAux1 maps the legacy aux1 byte to a NetworkDevice method.
func methodFromAux1(aux1 uint8) netdevice.Method {
	switch aux1 {
	case aux1Get1, aux1Get2:
		return netdevice.MethodGet
	case aux1Del1, aux1Del2:
		return netdevice.MethodDelete
	case aux1Put1, aux1Put2:
		return netdevice.MethodPut
	case aux1Post:
		return netdevice.MethodPost
	default:
		return netdevice.MethodGet
	}
}

// stripDevicePrefix removes a leading "N:" or "n:" from a legacy Open
// payload, leaving the scheme-qualified URL NetworkDevice expects.
func stripDevicePrefix(s string) string {
	if len(s) >= 2 && (s[0] == 'N' || s[0] == 'n') && s[1] == ':' {
		return s[2:]
	}
	return s
}

func (b *Bridge) handleOpen(ctx context.Context, req bus.IORequest, idx int) bus.IOResponse {
	var aux1, aux2 uint8
	if len(req.Params) > 0 {
		aux1 = req.Params[0]
	}
	if len(req.Params) > 1 {
		aux2 = req.Params[1]
	}

	method := methodFromAux1(aux1)
	url := stripDevicePrefix(string(req.Payload))

	var flags uint8 = aux2 & 0x07
	deferBody := method == netdevice.MethodPost || method == netdevice.MethodPut
	if deferBody {
		flags |= netdevice.FlagStreamedNoLen
	}

	openPayload := wire.NewWriter().U8(wire.ProtocolVersion).
		U8(methodByte(method)).U8(flags).LPString(url).
		U16(0).  // no request headers from the legacy layer
		U32(0).  // no body length hint
		U16(0).  // no response header allowlist
		Build()

	resp := b.net.Handle(ctx, bus.IORequest{Command: netdevice.OpOpen, Payload: openPayload})
	if resp.Status != bus.Ok {
		return respond(req, resp.Status, nil)
	}

	r := wire.NewReader(resp.Payload)
	r.U8()
	r.U8()
	r.U16()
	h := r.U16()

	b.mu.Lock()
	b.slots[idx] = slot{opened: true, handle: h, awaitingCommit: deferBody}
	b.mu.Unlock()

	return respond(req, bus.Ok, nil)
}

func methodByte(m netdevice.Method) uint8 {
	switch m {
	case netdevice.MethodGet:
		return 1
	case netdevice.MethodPost:
		return 2
	case netdevice.MethodPut:
		return 3
	case netdevice.MethodDelete:
		return 4
	case netdevice.MethodHead:
		return 5
	default:
		return 1
	}
}

// commitIfAwaiting sends the zero-length Write that tells the backend a
// deferred POST/PUT body is complete, per the legacy protocol's implicit
// commit-on-first-Read/Status convention.
func (b *Bridge) commitIfAwaiting(ctx context.Context, idx int) bus.StatusCode {
	b.mu.Lock()
	sl := b.slots[idx]
	b.mu.Unlock()
	if !sl.opened || !sl.awaitingCommit {
		return bus.Ok
	}

	writePayload := wire.NewWriter().U8(wire.ProtocolVersion).U16(sl.handle).U32(sl.writeCursor).U16(0).Build()
	resp := b.net.Handle(ctx, bus.IORequest{Command: netdevice.OpWrite, Payload: writePayload})
	if resp.Status != bus.Ok {
		return resp.Status
	}

	b.mu.Lock()
	b.slots[idx].awaitingCommit = false
	b.mu.Unlock()
	return bus.Ok
}

func (b *Bridge) handleRead(ctx context.Context, req bus.IORequest, idx int) bus.IOResponse {
	if st := b.commitIfAwaiting(ctx, idx); st != bus.Ok {
		return respond(req, st, nil)
	}

	b.mu.Lock()
	sl := b.slots[idx]
	b.mu.Unlock()
	if !sl.opened {
		return respond(req, bus.InvalidRequest, nil)
	}

	maxBytes := uint16(512)
	if len(req.Params) >= 2 {
		maxBytes = uint16(req.Params[0]) | uint16(req.Params[1])<<8
	}
	readPayload := wire.NewWriter().U8(wire.ProtocolVersion).U16(sl.handle).U32(sl.readCursor).U16(maxBytes).Build()
	resp := b.net.Handle(ctx, bus.IORequest{Command: netdevice.OpRead, Payload: readPayload})
	if resp.Status != bus.Ok {
		return respond(req, resp.Status, nil)
	}

	r := wire.NewReader(resp.Payload)
	r.U8()
	r.U8()
	r.U16()
	r.U16() // handle, echoed
	r.U32() // offset, echoed
	n := r.U16()
	data := r.Bytes(int(n))

	b.mu.Lock()
	b.slots[idx].readCursor += uint32(n)
	b.mu.Unlock()

	return respond(req, bus.Ok, data)
}

func (b *Bridge) handleWrite(ctx context.Context, req bus.IORequest, idx int) bus.IOResponse {
	b.mu.Lock()
	sl := b.slots[idx]
	b.mu.Unlock()
	if !sl.opened {
		return respond(req, bus.InvalidRequest, nil)
	}

	writePayload := wire.NewWriter().U8(wire.ProtocolVersion).U16(sl.handle).U32(sl.writeCursor).
		U16(uint16(len(req.Payload))).Bytes(req.Payload).Build()
	resp := b.net.Handle(ctx, bus.IORequest{Command: netdevice.OpWrite, Payload: writePayload})
	if resp.Status != bus.Ok {
		return respond(req, resp.Status, nil)
	}

	r := wire.NewReader(resp.Payload)
	r.U8()
	r.U8()
	r.U16()
	r.U16()
	r.U32()
	written := r.U16()

	b.mu.Lock()
	b.slots[idx].writeCursor += uint32(written)
	b.mu.Unlock()

	return respond(req, bus.Ok, nil)
}

func (b *Bridge) handleClose(ctx context.Context, req bus.IORequest, idx int) bus.IOResponse {
	b.mu.Lock()
	sl := b.slots[idx]
	b.slots[idx] = slot{}
	b.mu.Unlock()
	if !sl.opened {
		return respond(req, bus.Ok, nil)
	}

	closePayload := wire.NewWriter().U8(wire.ProtocolVersion).U16(sl.handle).Build()
	b.net.Handle(ctx, bus.IORequest{Command: netdevice.OpClose, Payload: closePayload})
	return respond(req, bus.Ok, nil)
}

// handleStatus answers 'S': a 4-byte legacy status record
// [bytesWaiting:u16le, connected, error]. Before a session has been
// opened, or while still connecting, it reports the not-connected
// skeleton [0,0,0,136].
func (b *Bridge) handleStatus(ctx context.Context, req bus.IORequest, idx int) bus.IOResponse {
	b.mu.Lock()
	sl := b.slots[idx]
	b.mu.Unlock()
	if !sl.opened {
		return respond(req, bus.Ok, []byte{0, 0, 0, errEOF})
	}

	if st := b.commitIfAwaiting(ctx, idx); st != bus.Ok {
		return respond(req, bus.Ok, []byte{0, 0, 0, errEOF})
	}

	infoPayload := wire.NewWriter().U8(wire.ProtocolVersion).U16(sl.handle).U16(0).Build()
	resp := b.net.Handle(ctx, bus.IORequest{Command: netdevice.OpInfo, Payload: infoPayload})
	if resp.Status == bus.NotReady {
		return respond(req, bus.Ok, []byte{0, 0, 0, errEOF})
	}
	if resp.Status != bus.Ok {
		return respond(req, bus.Ok, []byte{0, 0, 0, errEOF})
	}

	r := wire.NewReader(resp.Payload)
	r.U8()
	flags := r.U8()
	r.U16()
	r.U16() // handle, echoed
	httpStatus := r.U16()
	contentLength := r.U64()

	hasStatus := flags&(1<<2) != 0
	hasLength := flags&(1<<1) != 0

	var bytesWaiting uint16
	if hasLength {
		remaining := contentLength - uint64(sl.readCursor)
		if remaining > 0xFFFF {
			remaining = 0xFFFF
		}
		bytesWaiting = uint16(remaining)
	}

	errByte := errEOF
	connected := uint8(1)
	if hasStatus {
		errByte = httpStatusToLegacyError(int(httpStatus), bytesWaiting)
	}

	return respond(req, bus.Ok, []byte{byte(bytesWaiting), byte(bytesWaiting >> 8), connected, errByte})
}

// httpStatusToLegacyError maps an HTTP status code to the legacy
// error-byte taxonomy, per the historic protocol's 'S' status record.
func httpStatusToLegacyError(status int, bytesWaiting uint16) uint8 {
	switch {
	case status >= 200 && status < 300:
		if bytesWaiting > 0 {
			return errOK
		}
		return errEOF
	case status == 401 || status == 403:
		return errForbidden
	case status == 404 || status == 410:
		return errNotFound
	case status >= 400 && status < 500:
		return errClient
	case status >= 500 && status < 600:
		return errServer
	default:
		return errEOF
	}
}
