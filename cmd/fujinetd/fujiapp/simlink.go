package fujiapp

import "github.com/fujinet-nio/fujinet-nio/pkg/event"

// simulatedLink stands in for the platform HAL's real Wi-Fi/Ethernet link
// when no such hardware is present: a demo binary still needs something
// for the events command to tail. It advances Disconnected -> Connecting
// -> Connected over its first few polls and then holds steady, mirroring
// a real link's boot-up sequence closely enough to exercise
// event.NetworkLinkMonitor end to end.
type simulatedLink struct {
	polls int
}

func (l *simulatedLink) State() event.LinkState {
	switch {
	case l.polls < 2:
		return event.Disconnected
	case l.polls < 4:
		return event.Connecting
	default:
		return event.Connected
	}
}

func (l *simulatedLink) IPAddress() string {
	if l.polls < 4 {
		return ""
	}
	return "192.168.4.2"
}

// tick advances the simulated link's internal poll counter. Callers poll
// the monitor immediately after so state transitions and IP changes are
// observed the same way a real link's would be.
func (l *simulatedLink) tick() {
	l.polls++
}
