package bus

import "fmt"

// DeviceError pairs an internal failure with the StatusCode it maps to on
// the wire. Device implementations return *DeviceError from their internal
// helpers and translate it to an IOResponse at the Handle boundary; internal
// code never returns a bare StatusCode from deep call stacks.
type DeviceError struct {
	Status  StatusCode
	Message string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

// NewDeviceError wraps a status code with a human-readable message.
func NewDeviceError(status StatusCode, format string, args ...any) *DeviceError {
	return &DeviceError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// StatusOf extracts the StatusCode from err, defaulting to InternalError for
// any error that did not originate as a *DeviceError.
func StatusOf(err error) StatusCode {
	if err == nil {
		return Ok
	}
	if de, ok := err.(*DeviceError); ok {
		return de.Status
	}
	return InternalError
}
