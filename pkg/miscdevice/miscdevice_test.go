package miscdevice

import (
	"context"
	"testing"
	"time"

	"github.com/fujinet-nio/fujinet-nio/pkg/bus"
	"github.com/fujinet-nio/fujinet-nio/pkg/fs"
	"github.com/fujinet-nio/fujinet-nio/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileDevice(t *testing.T) (*FileDevice, fs.FileSystem) {
	t.Helper()
	storage := fs.NewStorageManager()
	mem := fs.NewMemFS("flash")
	require.NoError(t, storage.Register(mem))
	return NewFileDevice(storage), mem
}

func TestFileDeviceWriteReadStat(t *testing.T) {
	d, _ := newTestFileDevice(t)
	ctx := context.Background()

	writeReq := wire.NewWriter().U8(wire.ProtocolVersion).LPString("flash").LPString("/hello.txt").
		U64(0).U8(WriteFlagCreate).U16(5).Bytes([]byte("hello"))
	resp := d.Handle(ctx, bus.IORequest{Command: OpWriteFile, Payload: writeReq.Build()})
	require.Equal(t, bus.Ok, resp.Status)

	statReq := wire.NewWriter().U8(wire.ProtocolVersion).LPString("flash").LPString("/hello.txt")
	resp = d.Handle(ctx, bus.IORequest{Command: OpStat, Payload: statReq.Build()})
	require.Equal(t, bus.Ok, resp.Status)
	r := wire.NewReader(resp.Payload)
	r.U8()
	flags := r.U8()
	size := r.U64()
	assert.NotZero(t, flags&EntryFlagExists)
	assert.Equal(t, uint64(5), size)

	readReq := wire.NewWriter().U8(wire.ProtocolVersion).LPString("flash").LPString("/hello.txt").U64(0).U32(128)
	resp = d.Handle(ctx, bus.IORequest{Command: OpReadFile, Payload: readReq.Build()})
	require.Equal(t, bus.Ok, resp.Status)
	r = wire.NewReader(resp.Payload)
	r.U8()
	r.U8()
	n := r.U32()
	assert.Equal(t, "hello", string(r.Bytes(int(n))))
}

func TestFileDeviceListDirectory(t *testing.T) {
	d, mem := newTestFileDevice(t)
	require.NoError(t, mem.CreateDirectory("/docs"))

	req := wire.NewWriter().U8(wire.ProtocolVersion).LPString("flash").LPString("/")
	resp := d.Handle(context.Background(), bus.IORequest{Command: OpListDirectory, Payload: req.Build()})
	require.Equal(t, bus.Ok, resp.Status)

	r := wire.NewReader(resp.Payload)
	r.U8()
	r.U8()
	count := r.U16()
	assert.Equal(t, uint16(1), count)
}

func TestFileDeviceUnknownFilesystemIsInvalid(t *testing.T) {
	d, _ := newTestFileDevice(t)
	req := wire.NewWriter().U8(wire.ProtocolVersion).LPString("nope").LPString("/x")
	resp := d.Handle(context.Background(), bus.IORequest{Command: OpStat, Payload: req.Build()})
	assert.Equal(t, bus.InvalidRequest, resp.Status)
}

func TestClockDeviceGetSetTime(t *testing.T) {
	d := NewClockDevice()
	ctx := context.Background()

	target := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	setReq := wire.NewWriter().U8(wire.ProtocolVersion).U64(uint64(target.Unix()))
	resp := d.Handle(ctx, bus.IORequest{Command: OpSetTime, Payload: setReq.Build()})
	require.Equal(t, bus.Ok, resp.Status)

	resp = d.Handle(ctx, bus.IORequest{Command: OpGetTime, Payload: wire.NewWriter().U8(wire.ProtocolVersion).Build()})
	require.Equal(t, bus.Ok, resp.Status)
	r := wire.NewReader(resp.Payload)
	r.U8()
	got := r.U64()
	assert.InDelta(t, target.Unix(), int64(got), 1)
}

func TestClockDeviceTimeFormats(t *testing.T) {
	d := NewClockDevice()
	ctx := context.Background()

	for _, format := range []TimeFormat{FormatSimpleBinary, FormatProDOSBinary, FormatApeTimeBinary, FormatTzIsoString, FormatUtcIsoString, FormatApple3Sos} {
		req := wire.NewWriter().U8(wire.ProtocolVersion).U8(uint8(format))
		resp := d.Handle(ctx, bus.IORequest{Command: OpGetTimeFormat, Payload: req.Build()})
		require.Equal(t, bus.Ok, resp.Status, "format %d", format)
	}
}

func TestClockDeviceSetTimezoneRejectsUnknown(t *testing.T) {
	d := NewClockDevice()
	req := wire.NewWriter().U8(wire.ProtocolVersion).LPString("Not/AZone")
	resp := d.Handle(context.Background(), bus.IORequest{Command: OpSetTimezone, Payload: req.Build()})
	assert.Equal(t, bus.InvalidRequest, resp.Status)
}

func TestClockDeviceSetTimezoneSavePersists(t *testing.T) {
	var saved string
	d := NewClockDevice().WithPersist(func(tz string) error {
		saved = tz
		return nil
	})
	req := wire.NewWriter().U8(wire.ProtocolVersion).LPString("UTC")
	resp := d.Handle(context.Background(), bus.IORequest{Command: OpSetTimezoneSave, Payload: req.Build()})
	require.Equal(t, bus.Ok, resp.Status)
	assert.Equal(t, "UTC", saved)
}

func TestFujiDeviceReset(t *testing.T) {
	called := false
	d := NewFujiDevice(func(ctx context.Context) { called = true }, func() string { return "myssid" })

	resp := d.Handle(context.Background(), bus.IORequest{Command: OpReset})
	assert.Equal(t, bus.Ok, resp.Status)
	assert.True(t, called)

	resp = d.Handle(context.Background(), bus.IORequest{Command: OpGetSsid})
	require.Equal(t, bus.Ok, resp.Status)
	r := wire.NewReader(resp.Payload)
	r.U8()
	assert.Equal(t, "myssid", r.LPString())
}

func TestFujiDeviceUnwiredOpIsUnsupported(t *testing.T) {
	d := NewFujiDevice(nil, nil)
	resp := d.Handle(context.Background(), bus.IORequest{Command: OpReset})
	assert.Equal(t, bus.Unsupported, resp.Status)
}
