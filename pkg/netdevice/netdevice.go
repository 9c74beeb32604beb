// Package netdevice implements NetworkDevice: a handle-oriented,
// session-multiplexed network abstraction over pluggable protocol
// backends chosen by URL scheme.
package netdevice

import (
	"context"
	"strings"
	"sync"

	"github.com/fujinet-nio/fujinet-nio/internal/logger"
	"github.com/fujinet-nio/fujinet-nio/pkg/bus"
	"github.com/fujinet-nio/fujinet-nio/pkg/metrics"
	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend"
	"github.com/fujinet-nio/fujinet-nio/pkg/wire"
)

// Opcodes, per §4.2's one-byte request command field.
const (
	OpOpen  uint16 = 0x01
	OpRead  uint16 = 0x02
	OpWrite uint16 = 0x03
	OpClose uint16 = 0x04
	OpInfo  uint16 = 0x05
)

// Device is the bus.Device implementation backing NetworkDevice.
type Device struct {
	mu       sync.Mutex
	sessions [MaxSessions]session
	registry *Registry
	tick     uint64
	metrics  metrics.NetworkMetrics
}

var _ bus.Device = (*Device)(nil)

// New builds a NetworkDevice dispatching Open calls through registry.
func New(registry *Registry) *Device {
	return &Device{registry: registry}
}

// SetMetrics installs a NetworkMetrics collector. Passing nil disables
// collection again (the zero-overhead default).
func (d *Device) SetMetrics(nm metrics.NetworkMetrics) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.metrics = nm
}

// ActiveSessions returns the current count of active sessions. Safe to
// call concurrently with Handle.
func (d *Device) ActiveSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeSessionCount()
}

// activeSessionCount returns the current count of active sessions.
// Caller holds d.mu.
func (d *Device) activeSessionCount() int {
	n := 0
	for i := range d.sessions {
		if d.sessions[i].active {
			n++
		}
	}
	return n
}

// Handle implements bus.Device.
func (d *Device) Handle(ctx context.Context, req bus.IORequest) bus.IOResponse {
	switch req.Command {
	case OpOpen:
		return d.handleOpen(ctx, req)
	case OpRead:
		return d.handleRead(ctx, req)
	case OpWrite:
		return d.handleWrite(ctx, req)
	case OpInfo:
		return d.handleInfo(ctx, req)
	case OpClose:
		return d.handleClose(ctx, req)
	default:
		return bus.IOResponse{ID: req.ID, Device: req.Device, Command: req.Command, Status: bus.InvalidRequest}
	}
}

// Poll advances every active session's backend.
func (d *Device) Poll(ctx context.Context) {
	d.mu.Lock()
	d.tick++
	active := make([]backend.Backend, 0, MaxSessions)
	for i := range d.sessions {
		if d.sessions[i].active {
			active = append(active, d.sessions[i].backend)
		}
	}
	d.mu.Unlock()

	for _, b := range active {
		b.Poll(ctx)
	}
}

func respond(req bus.IORequest, status bus.StatusCode, payload []byte) bus.IOResponse {
	return bus.IOResponse{ID: req.ID, Device: req.Device, Command: req.Command, Status: status, Payload: payload}
}

func methodFromByte(b uint8) Method {
	switch b {
	case 1:
		return MethodGet
	case 2:
		return MethodPost
	case 3:
		return MethodPut
	case 4:
		return MethodDelete
	case 5:
		return MethodHead
	default:
		return MethodNone
	}
}

func (m Method) httpVerb() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	case MethodHead:
		return "HEAD"
	default:
		return "GET"
	}
}

// handleOpen allocates a free slot, resolves a backend by the url's
// scheme, and opens it synchronously; a failed backend open frees the
// slot again.
func (d *Device) handleOpen(ctx context.Context, req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8() // version
	method := methodFromByte(r.U8())
	flags := r.U8()
	url := r.LPString()

	headerCount := int(r.U16())
	headers := make(map[string]string, headerCount)
	for i := 0; i < headerCount; i++ {
		name := r.LPString()
		value := r.LPString()
		headers[name] = value
	}

	bodyLenHint := r.U32()

	allowCount := int(r.U16())
	allowlist := make([]string, 0, allowCount)
	for i := 0; i < allowCount; i++ {
		allowlist = append(allowlist, strings.ToLower(r.LPString()))
	}

	if r.Err() != nil {
		return respond(req, bus.InvalidRequest, nil)
	}

	scheme, err := schemeOf(url)
	if err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	factory, ok := d.registry.Lookup(scheme)
	if !ok {
		return respond(req, bus.Unsupported, nil)
	}

	d.mu.Lock()
	idx := -1
	for i := range d.sessions {
		if !d.sessions[i].active {
			idx = i
			break
		}
	}
	if idx < 0 {
		d.mu.Unlock()
		return respond(req, bus.DeviceBusy, nil)
	}

	sl := &d.sessions[idx]
	sl.generation++
	if sl.generation == 0 {
		sl.generation = 1
	}
	sl.active = true
	sl.method = method
	sl.flags = flags
	sl.url = url
	sl.backend = factory()
	sl.phase = PhaseOpened
	sl.createdTick = d.tick
	sl.lastTick = d.tick
	sl.expectedLen = bodyLenHint
	sl.receivedLen = 0
	deferBody := (method == MethodPost || method == MethodPut) &&
		(bodyLenHint > 0 || flags&FlagStreamedNoLen != 0)
	sl.awaitingCommit = deferBody
	generation := sl.generation
	backendImpl := sl.backend
	d.mu.Unlock()

	streamedFlag := flags&FlagStreamedNoLen != 0 || bodyLenHint > 0
	openOpts := backend.OpenOptions{
		Method:                  method.httpVerb(),
		FollowRedirect:          flags&FlagFollowRedirect != 0,
		StreamedBody:            streamedFlag && (method == MethodPost || method == MethodPut),
		URL:                     url,
		RawQuery:                queryOf(url),
		RequestHeaders:          headers,
		BodyLenHint:             bodyLenHint,
		ResponseHeaderAllowlist: allowlist,
	}

	if err := backendImpl.Open(ctx, openOpts); err != nil {
		logger.DebugCtx(ctx, "netdevice: backend open failed", "error", err.Error())
		d.mu.Lock()
		d.sessions[idx] = session{}
		d.mu.Unlock()
		return respond(req, bus.IOError, nil)
	}

	h := handle(generation, uint8(idx))
	var respFlags uint8 = 1 // bit0 accepted
	if deferBody {
		respFlags |= 1 << 1 // bit1 needs-body-write
	}

	d.mu.Lock()
	nm := d.metrics
	active := d.activeSessionCount()
	d.mu.Unlock()
	metrics.RecordSessionOpened(nm, scheme)
	metrics.SetActiveSessions(nm, active)

	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(respFlags).U16(0).U16(h)
	return respond(req, bus.Ok, w.Build())
}

// queryOf returns the "?..." portion of url (without the leading "?"),
// or "" if there is none.
func queryOf(url string) string {
	idx := strings.IndexByte(url, '?')
	if idx < 0 {
		return ""
	}
	return url[idx+1:]
}

// lookupSession validates a wire handle against the current generation
// at that index, returning the slot or an error status.
func (d *Device) lookupSession(h uint16) (*session, bus.StatusCode) {
	generation, index := decodeHandle(h)
	if int(index) >= MaxSessions {
		return nil, bus.InvalidRequest
	}
	sl := &d.sessions[index]
	if !sl.active || sl.generation != generation {
		return nil, bus.InvalidRequest
	}
	return sl, bus.Ok
}

func (d *Device) handleRead(ctx context.Context, req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	h := r.U16()
	offset := r.U32()
	maxBytes := r.U16()
	if r.Err() != nil {
		return respond(req, bus.InvalidRequest, nil)
	}

	d.mu.Lock()
	sl, st := d.lookupSession(h)
	if st != bus.Ok {
		d.mu.Unlock()
		return respond(req, st, nil)
	}
	b := sl.backend
	url := sl.url
	nm := d.metrics
	d.mu.Unlock()

	dst := make([]byte, maxBytes)
	n, eof, err := b.ReadBody(ctx, offset, dst)
	switch err {
	case nil:
	case backend.ErrNotReady:
		return respond(req, bus.NotReady, nil)
	case backend.ErrSequence:
		return respond(req, bus.InvalidRequest, nil)
	default:
		return respond(req, bus.IOError, nil)
	}

	if scheme, serr := schemeOf(url); serr == nil && n > 0 {
		metrics.RecordBytesTransferred(nm, scheme, "read", n)
	}

	var flags uint8
	if eof {
		flags |= 1 << 0
	}
	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(flags).U16(0).U16(h).U32(offset).U16(uint16(n)).Bytes(dst[:n])
	return respond(req, bus.Ok, w.Build())
}

func (d *Device) handleWrite(ctx context.Context, req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	h := r.U16()
	offset := r.U32()
	dataLen := r.U16()
	data := r.Bytes(int(dataLen))
	if r.Err() != nil {
		return respond(req, bus.InvalidRequest, nil)
	}

	d.mu.Lock()
	sl, st := d.lookupSession(h)
	if st != bus.Ok {
		d.mu.Unlock()
		return respond(req, st, nil)
	}
	b := sl.backend
	url := sl.url
	nm := d.metrics
	d.mu.Unlock()

	n, err := b.WriteBody(ctx, offset, data)
	switch err {
	case nil:
	case backend.ErrNotReady:
		return respond(req, bus.NotReady, nil)
	case backend.ErrBusy:
		return respond(req, bus.DeviceBusy, nil)
	case backend.ErrSequence:
		return respond(req, bus.InvalidRequest, nil)
	default:
		return respond(req, bus.IOError, nil)
	}

	if scheme, serr := schemeOf(url); serr == nil && n > 0 {
		metrics.RecordBytesTransferred(nm, scheme, "write", n)
	}

	d.mu.Lock()
	if sl.active {
		sl.receivedLen += uint32(n)
		if sl.awaitingCommit && dataLen == 0 {
			sl.awaitingCommit = false
			sl.phase = PhaseStreaming
		}
	}
	d.mu.Unlock()

	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(0).U16(0).U16(h).U32(offset).U16(uint16(n))
	return respond(req, bus.Ok, w.Build())
}

func (d *Device) handleInfo(ctx context.Context, req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	h := r.U16()
	maxHeaderBytes := r.U16()
	if r.Err() != nil {
		return respond(req, bus.InvalidRequest, nil)
	}

	d.mu.Lock()
	sl, st := d.lookupSession(h)
	if st != bus.Ok {
		d.mu.Unlock()
		return respond(req, st, nil)
	}
	b := sl.backend
	d.mu.Unlock()

	info, err := b.Info(ctx, maxHeaderBytes)
	if err != nil {
		return respond(req, bus.IOError, nil)
	}
	if info.State == backend.Error {
		return respond(req, bus.IOError, nil)
	}

	var flags uint8
	headerBlock := encodeHeaderBlock(info.Headers, info.Diagnostics, maxHeaderBytes)
	if len(headerBlock) > 0 {
		flags |= 1 << 0
	}
	if info.HasLength {
		flags |= 1 << 1
	}
	if info.HasStatus {
		flags |= 1 << 2
	}

	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(flags).U16(0).U16(h).
		U16(info.HTTPStatus).U64(info.Length).U16(uint16(len(headerBlock))).Bytes(headerBlock)
	return respond(req, bus.Ok, w.Build())
}

// encodeHeaderBlock renders headers (or backend diagnostics, when there
// are no real HTTP headers) as a "Key: Value\r\n" block truncated to max.
func encodeHeaderBlock(headers, diagnostics map[string]string, max uint16) []byte {
	src := headers
	if len(src) == 0 {
		src = diagnostics
	}
	var out []byte
	for k, v := range src {
		line := k + ": " + v + "\r\n"
		if uint16(len(out)+len(line)) > max {
			break
		}
		out = append(out, line...)
	}
	return out
}

func (d *Device) handleClose(ctx context.Context, req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	h := r.U16()
	if r.Err() != nil {
		return respond(req, bus.InvalidRequest, nil)
	}

	d.mu.Lock()
	sl, st := d.lookupSession(h)
	if st != bus.Ok {
		d.mu.Unlock()
		return respond(req, st, nil)
	}
	b := sl.backend
	url := sl.url
	_, index := decodeHandle(h)
	d.sessions[index].active = false
	d.sessions[index].phase = PhaseClosed
	nm := d.metrics
	active := d.activeSessionCount()
	d.mu.Unlock()

	if scheme, err := schemeOf(url); err == nil {
		metrics.RecordSessionClosed(nm, scheme)
	}
	metrics.SetActiveSessions(nm, active)

	b.Close()

	w := wire.NewWriter().U8(wire.ProtocolVersion)
	return respond(req, bus.Ok, w.Build())
}
