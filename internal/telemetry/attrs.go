package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for bus dispatch spans.
const (
	AttrDeviceID = "bus.device_id"
	AttrCommand  = "bus.command"
	AttrRequest  = "bus.request_id"
	AttrStatus   = "bus.status"
	AttrHandle   = "net.handle"
	AttrSlot     = "disk.slot"
)

// DeviceID returns an attribute for the target device id.
func DeviceID(id uint8) attribute.KeyValue {
	return attribute.Int(AttrDeviceID, int(id))
}

// Command returns an attribute for the dispatched command code.
func Command(cmd uint16) attribute.KeyValue {
	return attribute.Int(AttrCommand, int(cmd))
}

// RequestID returns an attribute for the bus request id.
func RequestID(id uint32) attribute.KeyValue {
	return attribute.Int64(AttrRequest, int64(id))
}

// Status returns an attribute for a dispatch result status code.
func Status(code int) attribute.KeyValue {
	return attribute.Int(AttrStatus, code)
}

// Handle returns an attribute for a network session handle.
func Handle(h uint16) attribute.KeyValue {
	return attribute.Int(AttrHandle, int(h))
}

// Slot returns an attribute for a disk slot index.
func Slot(slot int) attribute.KeyValue {
	return attribute.Int(AttrSlot, slot)
}

// StartDispatchSpan starts a span for a single bus dispatch.
func StartDispatchSpan(ctx context.Context, deviceID uint8, command uint16, requestID uint32) (context.Context, trace.Span) {
	return StartSpan(ctx, "bus.dispatch", trace.WithAttributes(
		DeviceID(deviceID),
		Command(command),
		RequestID(requestID),
	))
}
