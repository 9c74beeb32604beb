// Package diskdevice wraps pkg/disk.Service in the bus.Device binary
// protocol: a version-1 wire format with seven commands (Mount, Unmount,
// ReadSector, WriteSector, Info, ClearChanged, Create) addressing disk
// slots 1-based on the wire, DiskService's own 0-based indices internal
// to the package.
package diskdevice

import (
	"context"

	"github.com/fujinet-nio/fujinet-nio/pkg/bus"
	"github.com/fujinet-nio/fujinet-nio/pkg/disk"
	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image"
	"github.com/fujinet-nio/fujinet-nio/pkg/wire"
)

// Opcodes, per spec: versioned at 1, six original DiskService commands
// plus Create.
const (
	OpMount        = 0x01
	OpUnmount      = 0x02
	OpReadSector   = 0x03
	OpWriteSector  = 0x04
	OpInfo         = 0x05
	OpClearChanged = 0x06
	OpCreate       = 0x07
)

// Mount request flag bits.
const (
	MountFlagReadOnly uint8 = 1 << 0
)

// Info response flag bits.
const (
	InfoFlagInserted uint8 = 1 << iota
	InfoFlagReadOnly
	InfoFlagDirty
	InfoFlagChanged
	InfoFlagVariableSectorSize
)

// Device adapts a disk.Service to bus.Device. It holds no state of its
// own beyond the underlying service: slot lifetime, geometry, and
// dirty/changed bookkeeping all live in disk.Service.
type Device struct {
	svc *disk.Service
}

var _ bus.Device = (*Device)(nil)

// New builds a DiskDevice wrapping svc.
func New(svc *disk.Service) *Device {
	return &Device{svc: svc}
}

// Poll is a no-op: DiskService's operations are all synchronous file I/O,
// there is nothing to advance in the background.
func (d *Device) Poll(ctx context.Context) {}

func respond(req bus.IORequest, status bus.StatusCode, payload []byte) bus.IOResponse {
	return bus.IOResponse{ID: req.ID, Device: req.Device, Command: req.Command, Status: status, Payload: payload}
}

// Handle dispatches a single DiskDevice request by opcode.
func (d *Device) Handle(ctx context.Context, req bus.IORequest) bus.IOResponse {
	switch req.Command {
	case OpMount:
		return d.handleMount(req)
	case OpUnmount:
		return d.handleUnmount(req)
	case OpReadSector:
		return d.handleReadSector(req)
	case OpWriteSector:
		return d.handleWriteSector(req)
	case OpInfo:
		return d.handleInfo(req)
	case OpClearChanged:
		return d.handleClearChanged(req)
	case OpCreate:
		return d.handleCreate(req)
	default:
		return respond(req, bus.InvalidRequest, nil)
	}
}

// wireSlot converts a 1-based wire slot number to disk.Service's 0-based
// index. Returns false if out of [1, disk.NumSlots].
func wireSlot(n uint8) (int, bool) {
	if n < 1 || int(n) > disk.NumSlots {
		return 0, false
	}
	return int(n) - 1, true
}

func classifyErr(err error) bus.StatusCode {
	switch err {
	case nil:
		return bus.Ok
	case disk.ErrNotMounted:
		return bus.NotReady
	case image.ErrOutOfRange, image.ErrReadOnly, image.ErrUnsupportedImageType, image.ErrInvalidGeometry:
		return bus.InvalidRequest
	default:
		return bus.IOError
	}
}

func encodeInfo(w *wire.Writer, slotWire uint8, info disk.SlotInfo) *wire.Writer {
	var flags uint8
	if info.Inserted {
		flags |= InfoFlagInserted
	}
	if info.ReadOnly {
		flags |= InfoFlagReadOnly
	}
	if info.Dirty {
		flags |= InfoFlagDirty
	}
	if info.Changed {
		flags |= InfoFlagChanged
	}
	if info.Geometry.VariableSectorSize {
		flags |= InfoFlagVariableSectorSize
	}
	return w.U8(wire.ProtocolVersion).U8(flags).U8(slotWire).
		U8(uint8(info.ImageType)).
		U16(uint16(info.Geometry.SectorSize)).
		U32(info.Geometry.SectorCount).
		U8(uint8(info.LastError)).
		LPString(info.FSName).
		LPString(info.Path)
}

func (d *Device) handleMount(req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8() // version
	slotWire := r.U8()
	flags := r.U8()
	typeOverride := r.U8()
	sectorSizeHint := r.U16()
	fsName := r.LPString()
	path := r.LPString()
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}

	idx, ok := wireSlot(slotWire)
	if !ok {
		return respond(req, bus.InvalidRequest, nil)
	}

	opts := disk.MountOptions{
		ReadOnlyRequested: flags&MountFlagReadOnly != 0,
		TypeOverride:      image.Type(typeOverride),
		SectorSizeHint:    int(sectorSizeHint),
	}

	info, err := d.svc.Mount(idx, fsName, path, opts)
	status := classifyErr(err)
	if err != nil && status == bus.Ok {
		status = bus.IOError
	}
	return respond(req, status, encodeInfo(wire.NewWriter(), slotWire, info).Build())
}

func (d *Device) handleUnmount(req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	slotWire := r.U8()
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	idx, ok := wireSlot(slotWire)
	if !ok {
		return respond(req, bus.InvalidRequest, nil)
	}

	info, err := d.svc.Unmount(idx)
	if err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	return respond(req, bus.Ok, encodeInfo(wire.NewWriter(), slotWire, info).Build())
}

func (d *Device) handleReadSector(req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	slotWire := r.U8()
	lba := r.U32()
	maxBytes := r.U16()
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	idx, ok := wireSlot(slotWire)
	if !ok {
		return respond(req, bus.InvalidRequest, nil)
	}

	dst := make([]byte, maxBytes)
	n, err := d.svc.ReadSector(idx, lba, dst)
	status := classifyErr(err)

	var flags uint8
	if status == bus.Ok {
		flags |= 1
	}
	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(flags).U8(slotWire).U32(lba).U16(uint16(n)).Bytes(dst[:n])
	return respond(req, status, w.Build())
}

func (d *Device) handleWriteSector(req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	slotWire := r.U8()
	lba := r.U32()
	dataLen := r.U16()
	data := r.Bytes(int(dataLen))
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	idx, ok := wireSlot(slotWire)
	if !ok {
		return respond(req, bus.InvalidRequest, nil)
	}

	n, err := d.svc.WriteSector(idx, lba, data)
	status := classifyErr(err)

	var flags uint8
	if status == bus.Ok {
		flags |= 1
	}
	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(flags).U8(slotWire).U32(lba).U16(uint16(n))
	return respond(req, status, w.Build())
}

func (d *Device) handleInfo(req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	slotWire := r.U8()
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	idx, ok := wireSlot(slotWire)
	if !ok {
		return respond(req, bus.InvalidRequest, nil)
	}

	info, err := d.svc.Info(idx)
	if err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	return respond(req, bus.Ok, encodeInfo(wire.NewWriter(), slotWire, info).Build())
}

func (d *Device) handleClearChanged(req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	slotWire := r.U8()
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	idx, ok := wireSlot(slotWire)
	if !ok {
		return respond(req, bus.InvalidRequest, nil)
	}

	if err := d.svc.ClearChanged(idx); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(1).U8(slotWire)
	return respond(req, bus.Ok, w.Build())
}

func (d *Device) handleCreate(req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	typ := r.U8()
	sectorSize := r.U16()
	sectorCount := r.U32()
	overwriteByte := r.U8()
	fsName := r.LPString()
	path := r.LPString()
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}

	err := d.svc.CreateImage(fsName, path, image.Type(typ), int(sectorSize), sectorCount, overwriteByte != 0)
	status := classifyErr(err)
	if err != nil && status == bus.Ok {
		status = bus.IOError
	}

	var flags uint8
	if status == bus.Ok {
		flags |= 1
	}
	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(flags).U16(0)
	return respond(req, status, w.Build())
}
