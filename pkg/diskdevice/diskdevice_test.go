package diskdevice

import (
	"context"
	"testing"

	"github.com/fujinet-nio/fujinet-nio/pkg/bus"
	"github.com/fujinet-nio/fujinet-nio/pkg/disk"
	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image"
	"github.com/fujinet-nio/fujinet-nio/pkg/fs"
	"github.com/fujinet-nio/fujinet-nio/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	storage := fs.NewStorageManager()
	require.NoError(t, storage.Register(fs.NewMemFS("flash")))
	return New(disk.NewService(storage))
}

func mountReq(slot uint8, fsName, path string, sectorSizeHint uint16) bus.IORequest {
	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(slot).U8(0).U8(uint8(image.Auto)).U16(sectorSizeHint).LPString(fsName).LPString(path)
	return bus.IORequest{Command: OpMount, Payload: w.Build()}
}

func TestMountRoundTrip(t *testing.T) {
	d := newTestDevice(t)
	ctx := context.Background()

	createReq := wire.NewWriter().U8(wire.ProtocolVersion).U8(uint8(image.Raw)).U16(256).U32(4).U8(0).LPString("flash").LPString("/disk.img")
	resp := d.Handle(ctx, bus.IORequest{Command: OpCreate, Payload: createReq.Build()})
	require.Equal(t, bus.Ok, resp.Status)

	resp = d.Handle(ctx, mountReq(1, "flash", "/disk.img", 256))
	require.Equal(t, bus.Ok, resp.Status)

	r := wire.NewReader(resp.Payload)
	r.U8()
	flags := r.U8()
	slotWire := r.U8()
	assert.NotZero(t, flags&InfoFlagInserted)
	assert.NotZero(t, flags&InfoFlagChanged)
	assert.Equal(t, uint8(1), slotWire)
}

func TestMountSlotOutOfRangeIsInvalid(t *testing.T) {
	d := newTestDevice(t)
	resp := d.Handle(context.Background(), mountReq(0, "flash", "/disk.img", 256))
	assert.Equal(t, bus.InvalidRequest, resp.Status)

	resp = d.Handle(context.Background(), mountReq(9, "flash", "/disk.img", 256))
	assert.Equal(t, bus.InvalidRequest, resp.Status)
}

func TestReadWriteSectorAndClearChanged(t *testing.T) {
	d := newTestDevice(t)
	ctx := context.Background()

	createReq := wire.NewWriter().U8(wire.ProtocolVersion).U8(uint8(image.Raw)).U16(128).U32(4).U8(0).LPString("flash").LPString("/d2.img")
	require.Equal(t, bus.Ok, d.Handle(ctx, bus.IORequest{Command: OpCreate, Payload: createReq.Build()}).Status)
	require.Equal(t, bus.Ok, d.Handle(ctx, mountReq(2, "flash", "/d2.img", 128)).Status)

	payload := make([]byte, 128)
	for i := range payload {
		payload[i] = byte(i)
	}
	writeReq := wire.NewWriter().U8(wire.ProtocolVersion).U8(2).U32(0).U16(uint16(len(payload))).Bytes(payload)
	resp := d.Handle(ctx, bus.IORequest{Command: OpWriteSector, Payload: writeReq.Build()})
	require.Equal(t, bus.Ok, resp.Status)

	readReq := wire.NewWriter().U8(wire.ProtocolVersion).U8(2).U32(0).U16(128)
	resp = d.Handle(ctx, bus.IORequest{Command: OpReadSector, Payload: readReq.Build()})
	require.Equal(t, bus.Ok, resp.Status)
	r := wire.NewReader(resp.Payload)
	r.U8()
	r.U8()
	r.U8()
	r.U32()
	n := r.U16()
	assert.Equal(t, payload, r.Bytes(int(n)))

	infoReq := wire.NewWriter().U8(wire.ProtocolVersion).U8(2)
	resp = d.Handle(ctx, bus.IORequest{Command: OpInfo, Payload: infoReq.Build()})
	require.Equal(t, bus.Ok, resp.Status)
	r = wire.NewReader(resp.Payload)
	r.U8()
	flags := r.U8()
	assert.NotZero(t, flags&InfoFlagDirty)

	clearReq := wire.NewWriter().U8(wire.ProtocolVersion).U8(2)
	resp = d.Handle(ctx, bus.IORequest{Command: OpClearChanged, Payload: clearReq.Build()})
	require.Equal(t, bus.Ok, resp.Status)

	resp = d.Handle(ctx, bus.IORequest{Command: OpInfo, Payload: infoReq.Build()})
	r = wire.NewReader(resp.Payload)
	r.U8()
	flags = r.U8()
	assert.Zero(t, flags&InfoFlagChanged)
}

func TestReadSectorNotMountedIsNotReady(t *testing.T) {
	d := newTestDevice(t)
	readReq := wire.NewWriter().U8(wire.ProtocolVersion).U8(3).U32(0).U16(128)
	resp := d.Handle(context.Background(), bus.IORequest{Command: OpReadSector, Payload: readReq.Build()})
	assert.Equal(t, bus.NotReady, resp.Status)
}
