package miscdevice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fujinet-nio/fujinet-nio/pkg/bus"
	"github.com/fujinet-nio/fujinet-nio/pkg/wire"
)

// ClockDevice opcodes.
const (
	OpGetTime         = 0x01
	OpSetTime         = 0x02
	OpGetTimeFormat   = 0x03
	OpGetTimezone     = 0x04
	OpSetTimezone     = 0x05
	OpSetTimezoneSave = 0x06
)

// TimeFormat selects GetTimeFormat's response encoding. Values match the
// legacy client library's FnTimeFormat enum so existing host-side clients
// decode the response without change.
type TimeFormat uint8

const (
	FormatSimpleBinary  TimeFormat = 0x00 // 7 bytes: century,year,month,day,hour,min,sec
	FormatProDOSBinary  TimeFormat = 0x01 // 4 bytes
	FormatApeTimeBinary TimeFormat = 0x02 // 6 bytes: day,month,year,hour,min,sec
	FormatTzIsoString   TimeFormat = 0x03
	FormatUtcIsoString  TimeFormat = 0x04
	FormatApple3Sos     TimeFormat = 0x05 // 16 bytes: "YYYYMMDD0HHMMSS0"
)

// Clock abstracts the platform wall clock so ClockDevice can be tested
// without depending on real time. Now returns the current instant (the
// device applies its configured location); SetNow lets the host push
// a reference time (e.g. post-SNTP-sync correction from a legacy client
// that predates the platform's own sync).
type Clock interface {
	Now() time.Time
	SetNow(t time.Time)
}

// systemClock is the default Clock: the process wall clock, offset by a
// settable delta so SetTime can nudge it without touching the OS clock.
type systemClock struct {
	mu     sync.Mutex
	offset time.Duration
}

func (c *systemClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().Add(c.offset)
}

func (c *systemClock) SetNow(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = t.Sub(time.Now())
}

// ClockDevice answers GetTime/SetTime/GetTimeFormat/GetTimezone/
// SetTimezone requests. Wall-clock accuracy is best-effort: this device
// reports whatever Clock and *time.Location it's configured with, it does
// not itself discipline a clock against SNTP.
type ClockDevice struct {
	mu       sync.Mutex
	clock    Clock
	loc      *time.Location
	tzName   string
	persist  func(tz string) error // non-nil to support SetTimezoneSave
}

var _ bus.Device = (*ClockDevice)(nil)

// NewClockDevice builds a ClockDevice using the system wall clock in UTC.
func NewClockDevice() *ClockDevice {
	return &ClockDevice{clock: &systemClock{}, loc: time.UTC, tzName: "UTC"}
}

// WithPersist attaches a callback SetTimezoneSave invokes after updating
// the in-memory timezone, so a config layer can persist it.
func (d *ClockDevice) WithPersist(persist func(tz string) error) *ClockDevice {
	d.persist = persist
	return d
}

func (d *ClockDevice) Poll(ctx context.Context) {}

func (d *ClockDevice) Handle(ctx context.Context, req bus.IORequest) bus.IOResponse {
	switch req.Command {
	case OpGetTime:
		return d.handleGetTime(req)
	case OpSetTime:
		return d.handleSetTime(req)
	case OpGetTimeFormat:
		return d.handleGetTimeFormat(req)
	case OpGetTimezone:
		return d.handleGetTimezone(req)
	case OpSetTimezone:
		return d.handleSetTimezone(req, false)
	case OpSetTimezoneSave:
		return d.handleSetTimezone(req, true)
	default:
		return respond(req, bus.InvalidRequest, nil)
	}
}

func (d *ClockDevice) handleGetTime(req bus.IORequest) bus.IOResponse {
	now := d.clock.Now()
	w := wire.NewWriter().U8(wire.ProtocolVersion).U64(uint64(now.Unix()))
	return respond(req, bus.Ok, w.Build())
}

func (d *ClockDevice) handleSetTime(req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	unixSec := r.U64()
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	d.clock.SetNow(time.Unix(int64(unixSec), 0))
	return respond(req, bus.Ok, wire.NewWriter().U8(wire.ProtocolVersion).Build())
}

func (d *ClockDevice) handleGetTimezone(req bus.IORequest) bus.IOResponse {
	d.mu.Lock()
	tz := d.tzName
	d.mu.Unlock()
	w := wire.NewWriter().U8(wire.ProtocolVersion).LPString(tz)
	return respond(req, bus.Ok, w.Build())
}

func (d *ClockDevice) handleSetTimezone(req bus.IORequest, save bool) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	tz := r.LPString()
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}

	d.mu.Lock()
	d.loc = loc
	d.tzName = tz
	d.mu.Unlock()

	if save && d.persist != nil {
		if err := d.persist(tz); err != nil {
			return respond(req, bus.IOError, nil)
		}
	}
	return respond(req, bus.Ok, wire.NewWriter().U8(wire.ProtocolVersion).Build())
}

func (d *ClockDevice) handleGetTimeFormat(req bus.IORequest) bus.IOResponse {
	r := wire.NewReader(req.Payload)
	r.U8()
	formatByte := r.U8()
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}

	d.mu.Lock()
	loc := d.loc
	d.mu.Unlock()
	now := d.clock.Now().In(loc)

	body, err := encodeTimeFormat(TimeFormat(formatByte), now, loc)
	if err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	w := wire.NewWriter().U8(wire.ProtocolVersion).U16(uint16(len(body))).Bytes(body)
	return respond(req, bus.Ok, w.Build())
}

func encodeTimeFormat(f TimeFormat, t time.Time, loc *time.Location) ([]byte, error) {
	switch f {
	case FormatSimpleBinary:
		year := t.Year()
		return []byte{
			byte(year / 100), byte(year % 100), byte(t.Month()), byte(t.Day()),
			byte(t.Hour()), byte(t.Minute()), byte(t.Second()),
		}, nil
	case FormatProDOSBinary:
		// ProDOS date/time: 2 bytes date (yyyyyyymmmmddddd), 2 bytes time
		// (000hhhhh00mmmmmm), year relative to 1900.
		y := uint16(t.Year()-1900) << 9
		m := uint16(t.Month()) << 5
		dByte := uint16(t.Day())
		date := y | m | dByte
		tm := uint16(t.Hour())<<8 | uint16(t.Minute())
		return []byte{byte(date), byte(date >> 8), byte(tm), byte(tm >> 8)}, nil
	case FormatApeTimeBinary:
		return []byte{
			byte(t.Day()), byte(t.Month()), byte(t.Year() % 100),
			byte(t.Hour()), byte(t.Minute()), byte(t.Second()),
		}, nil
	case FormatTzIsoString:
		_, offset := t.Zone()
		sign := byte('+')
		if offset < 0 {
			sign = '-'
			offset = -offset
		}
		s := fmt.Sprintf("%s%c%02d%02d", t.Format("2006-01-02T15:04:05"), sign, offset/3600, (offset/60)%60)
		return append([]byte(s), 0), nil
	case FormatUtcIsoString:
		s := t.UTC().Format("2006-01-02T15:04:05") + "+0000"
		return append([]byte(s), 0), nil
	case FormatApple3Sos:
		s := fmt.Sprintf("%04d%02d%02d0%02d%02d%02d00", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
		return []byte(s), nil
	default:
		return nil, fmt.Errorf("miscdevice: unsupported time format %d", f)
	}
}
