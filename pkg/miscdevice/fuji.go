package miscdevice

import (
	"context"

	"github.com/fujinet-nio/fujinet-nio/pkg/bus"
	"github.com/fujinet-nio/fujinet-nio/pkg/wire"
)

// FujiDevice opcodes. Values match the legacy client library's reserved
// command bytes (0xFE/0xFF), kept high and sparse deliberately since this
// device is the grab-bag for whole-unit operations a client may add to
// over time.
const (
	OpReset   = 0xFF
	OpGetSsid = 0xFE
)

// FujiDevice exposes whole-unit operations that don't belong to any single
// collaborator: resetting the host-visible state of the running firmware
// core, and reporting the currently associated Wi-Fi SSID. Both are
// delegated to callbacks the caller wires in at construction, since this
// package has no platform Wi-Fi/reset access of its own.
type FujiDevice struct {
	reset   func(ctx context.Context)
	getSsid func() string
}

var _ bus.Device = (*FujiDevice)(nil)

// NewFujiDevice builds a FujiDevice. reset is called synchronously for
// OpReset; getSsid is called synchronously for OpGetSsid. Either may be
// nil, in which case the corresponding opcode reports Unsupported.
func NewFujiDevice(reset func(ctx context.Context), getSsid func() string) *FujiDevice {
	return &FujiDevice{reset: reset, getSsid: getSsid}
}

func (d *FujiDevice) Poll(ctx context.Context) {}

func (d *FujiDevice) Handle(ctx context.Context, req bus.IORequest) bus.IOResponse {
	switch req.Command {
	case OpReset:
		if d.reset == nil {
			return respond(req, bus.Unsupported, nil)
		}
		d.reset(ctx)
		return respond(req, bus.Ok, wire.NewWriter().U8(wire.ProtocolVersion).Build())
	case OpGetSsid:
		if d.getSsid == nil {
			return respond(req, bus.Unsupported, nil)
		}
		ssid := d.getSsid()
		w := wire.NewWriter().U8(wire.ProtocolVersion).LPString(ssid)
		return respond(req, bus.Ok, w.Build())
	default:
		return respond(req, bus.InvalidRequest, nil)
	}
}
