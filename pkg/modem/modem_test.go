package modem

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/fujinet-nio/fujinet-nio/pkg/bus"
	"github.com/fujinet-nio/fujinet-nio/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeReq(data []byte) bus.IORequest {
	return bus.IORequest{Command: OpWrite, Payload: wire.NewWriter().U8(wire.ProtocolVersion).U32(0).U16(uint16(len(data))).Bytes(data).Build()}
}

func readAll(t *testing.T, d *Device) string {
	t.Helper()
	resp := d.Handle(context.Background(), bus.IORequest{Command: OpRead, Payload: wire.NewWriter().U8(wire.ProtocolVersion).U32(0).U16(256).Build()})
	require.Equal(t, bus.Ok, resp.Status)
	r := wire.NewReader(resp.Payload)
	r.U8()
	n := r.U16()
	return string(r.Bytes(int(n)))
}

func TestATCommandBasics(t *testing.T) {
	d := New()

	resp := d.Handle(context.Background(), writeReq([]byte("AT\r")))
	require.Equal(t, bus.Ok, resp.Status)
	assert.Equal(t, "OK\r\n", readAll(t, d))

	d.Handle(context.Background(), writeReq([]byte("ATE0\r")))
	assert.Equal(t, "OK\r\n", readAll(t, d))
	assert.False(t, d.echo)

	d.Handle(context.Background(), writeReq([]byte("AT+BAUDLOCK=1\r")))
	assert.Equal(t, "OK\r\n", readAll(t, d))
	assert.True(t, d.baudLock)

	d.Handle(context.Background(), writeReq([]byte("ATB300\r")))
	readAll(t, d)
	assert.Equal(t, uint32(9600), d.baud, "baud change must be refused while locked")
}

func TestDialAndConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Write([]byte("hello"))
		}
	}()

	d := New()
	ctx := context.Background()
	resp := d.Handle(ctx, writeReq([]byte("ATD"+ln.Addr().String()+"\r")))
	require.Equal(t, bus.Ok, resp.Status)
	assert.False(t, d.commandMode)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		d.Poll(ctx)
		if d.connected {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, d.connected, "expected CONNECT within timeout")
}

func TestEscapeSequenceReturnsToCommandMode(t *testing.T) {
	d := New()
	ctx := context.Background()
	d.mu.Lock()
	d.commandMode = false
	d.mu.Unlock()

	d.Handle(ctx, writeReq([]byte("+++")))
	for i := 0; i < EscapeGuardTicks+1; i++ {
		d.Poll(ctx)
	}
	d.mu.Lock()
	inCommandMode := d.commandMode
	d.mu.Unlock()
	assert.True(t, inCommandMode)
}

func TestTelnetEscapesOutgoingIAC(t *testing.T) {
	out := escapeTelnetIAC([]byte{0x41, iac, 0x42})
	assert.Equal(t, []byte{0x41, iac, iac, 0x42}, out)
}

func TestTelnetStateNegotiatesTTYPE(t *testing.T) {
	var ts telnetState
	in := []byte{0x41, iac, do, optTType, 0x42}
	out := ts.process(in)
	assert.Equal(t, []byte{0x41, 0x42}, out)
	assert.Equal(t, []byte{iac, will, optTType}, ts.TakeReply())
}

func TestTelnetStateAcceptsRemoteEcho(t *testing.T) {
	var ts telnetState

	out := ts.process([]byte{iac, will, optEcho})
	assert.Empty(t, out)
	assert.True(t, ts.remoteEcho)
	assert.Equal(t, []byte{iac, do, optEcho}, ts.TakeReply())

	ts.process([]byte{iac, wont, optEcho})
	assert.False(t, ts.remoteEcho)
}

func TestTelnetRemoteEchoDrivesDeviceEchoFlag(t *testing.T) {
	d := New()
	d.telnet = true
	d.echo = true

	d.telnetState.process([]byte{iac, will, optEcho})
	d.echo = !d.telnetState.remoteEcho
	assert.False(t, d.echo)

	d.telnetState.process([]byte{iac, wont, optEcho})
	d.echo = !d.telnetState.remoteEcho
	assert.True(t, d.echo)
}
