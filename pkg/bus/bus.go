// Package bus implements the device bus: request/response routing between
// the physical transport loop and the pluggable virtual devices (network,
// disk, modem, clock, file, fuji) keyed by an 8-bit DeviceID.
package bus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fujinet-nio/fujinet-nio/internal/logger"
	"github.com/fujinet-nio/fujinet-nio/internal/telemetry"
	"github.com/fujinet-nio/fujinet-nio/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// RequestType distinguishes the three shapes of request a device may see.
type RequestType uint8

const (
	RequestCommand RequestType = iota
	RequestData
	RequestStatus
)

// StatusCode is the uniform result taxonomy returned by every device.
type StatusCode uint8

const (
	Ok StatusCode = iota
	InvalidRequest
	NotReady
	DeviceBusy
	IOError
	DeviceNotFound
	Unsupported
	InternalError
)

func (s StatusCode) String() string {
	switch s {
	case Ok:
		return "Ok"
	case InvalidRequest:
		return "InvalidRequest"
	case NotReady:
		return "NotReady"
	case DeviceBusy:
		return "DeviceBusy"
	case IOError:
		return "IOError"
	case DeviceNotFound:
		return "DeviceNotFound"
	case Unsupported:
		return "Unsupported"
	case InternalError:
		return "InternalError"
	default:
		return fmt.Sprintf("StatusCode(%d)", uint8(s))
	}
}

// IORequest is the value record a transport hands to the bus.
type IORequest struct {
	ID      uint32
	Device  uint8
	Type    RequestType
	Command uint16
	Params  []byte // legacy "aux" bytes
	Payload []byte
}

// IOResponse is the value record the bus (or a device) returns.
type IOResponse struct {
	ID      uint32
	Device  uint8
	Command uint16
	Status  StatusCode
	Payload []byte
}

// errorResponse builds a response carrying a status with no payload.
func errorResponse(req IORequest, status StatusCode) IOResponse {
	return IOResponse{ID: req.ID, Device: req.Device, Command: req.Command, Status: status}
}

// Device is the contract every virtual device implements. Handle must never
// panic across the device boundary; Poll drives background work and must
// not block the bus thread.
type Device interface {
	Handle(ctx context.Context, req IORequest) IOResponse
	Poll(ctx context.Context)
}

// DeviceManager owns the device registry and is the single entry point
// transports dispatch requests through.
type DeviceManager struct {
	mu      sync.RWMutex
	devices map[uint8]Device
	metrics metrics.BusMetrics
}

// NewDeviceManager returns an empty bus with metrics collection disabled.
func NewDeviceManager() *DeviceManager {
	return &DeviceManager{devices: make(map[uint8]Device)}
}

// SetMetrics installs a BusMetrics collector. Passing nil disables
// collection again (the zero-overhead default).
func (m *DeviceManager) SetMetrics(bm metrics.BusMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = bm
}

// Register adds a device under id. Fails if id is already taken.
func (m *DeviceManager) Register(id uint8, dev Device) error {
	if dev == nil {
		return fmt.Errorf("bus: cannot register nil device for id 0x%02x", id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[id]; exists {
		return fmt.Errorf("bus: device id 0x%02x already registered", id)
	}
	m.devices[id] = dev
	metrics.SetRegisteredDevices(m.metrics, len(m.devices))
	return nil
}

// Unregister removes a device, if present.
func (m *DeviceManager) Unregister(id uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.devices, id)
	metrics.SetRegisteredDevices(m.metrics, len(m.devices))
}

// Dispatch routes req to its owning device and returns the response. It
// never panics: a device.Handle panic is recovered and converted to
// InternalError, and an unknown DeviceID yields DeviceNotFound.
func (m *DeviceManager) Dispatch(ctx context.Context, req IORequest) (resp IOResponse) {
	ctx, span := telemetry.StartDispatchSpan(ctx, req.Device, req.Command, req.ID)
	defer span.End()

	lc := logger.NewLogContext(req.Device).WithCommand(req.Command)
	ctx = logger.WithContext(ctx, lc)

	m.mu.RLock()
	dev, exists := m.devices[req.Device]
	bm := m.metrics
	m.mu.RUnlock()

	start := time.Now()
	defer func() {
		metrics.RecordRequest(bm, req.Device, req.Command, resp.Status.String(), time.Since(start))
	}()

	if !exists {
		logger.DebugCtx(ctx, "dispatch: device not found")
		return errorResponse(req, DeviceNotFound)
	}

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCtx(ctx, "dispatch: device handler panicked", "recover", fmt.Sprintf("%v", r))
			resp = errorResponse(req, InternalError)
		}
	}()

	resp = dev.Handle(ctx, req)
	return resp
}

// PollAll calls Poll on every registered device, as a cooperative tick the
// transport loop invokes at least once per cycle. Devices are independent
// (each owns its own locking) so their Poll calls fan out concurrently via
// errgroup rather than running one after another; a panic in one device's
// Poll is recovered and logged without aborting the others or this call.
func (m *DeviceManager) PollAll(ctx context.Context) {
	m.mu.RLock()
	ids := make([]uint8, 0, len(m.devices))
	for id := range m.devices {
		ids = append(ids, id)
	}
	devices := make(map[uint8]Device, len(m.devices))
	for id, dev := range m.devices {
		devices[id] = dev
	}
	m.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id, dev := id, devices[id]
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("poll: device panicked", logger.DeviceID(id), "recover", fmt.Sprintf("%v", r))
				}
			}()
			dev.Poll(gctx)
			return nil
		})
	}
	_ = g.Wait() // every goroutine above recovers its own panic and always returns nil
}

// Devices returns the sorted list of currently registered device ids.
func (m *DeviceManager) Devices() []uint8 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uint8, 0, len(m.devices))
	for id := range m.devices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
