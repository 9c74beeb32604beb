package event

// LinkState is the state of the underlying network link (Wi-Fi, Ethernet,
// whatever the platform HAL exposes).
type LinkState uint8

const (
	Disconnected LinkState = iota
	Connecting
	Connected
	Failed
)

func (s LinkState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (s LinkState) isDown() bool { return s == Disconnected || s == Failed }
func (s LinkState) isUp() bool   { return s == Connecting || s == Connected }

// Event types published by NetworkLinkMonitor.
const (
	LinkUp   Type = "link.up"
	GotIP    Type = "link.got_ip"
	LinkDown Type = "link.down"
)

// INetworkLink is the platform collaborator NetworkLinkMonitor polls. It is
// owned and implemented elsewhere (the platform HAL); FujiNet-NIO only
// observes it.
type INetworkLink interface {
	State() LinkState
	IPAddress() string
}

// NetworkLinkMonitor translates INetworkLink's raw state into LinkUp/GotIP/
// LinkDown events on a Stream. It publishes nothing on a steady-state poll:
// only transitions (and, while Connected, IP changes) produce events.
type NetworkLinkMonitor struct {
	link   INetworkLink
	stream *Stream

	lastState LinkState
	gotIP     bool
	lastIP    string
}

// NewNetworkLinkMonitor builds a monitor publishing to stream. The monitor
// assumes the link starts Disconnected; if link is already up when polling
// begins, the first Poll call will correctly emit LinkUp (and GotIP, if
// already Connected).
func NewNetworkLinkMonitor(link INetworkLink, stream *Stream) *NetworkLinkMonitor {
	return &NetworkLinkMonitor{link: link, stream: stream, lastState: Disconnected}
}

// Poll reads the link's current state and publishes whatever transition
// events that implies. Safe to call from the bus's cooperative poll loop;
// it never blocks.
func (m *NetworkLinkMonitor) Poll() {
	cur := m.link.State()

	if m.lastState.isDown() && cur.isUp() {
		m.stream.Publish(Event{Type: LinkUp})
	}

	if cur == Connected {
		ip := m.link.IPAddress()
		if !m.gotIP || ip != m.lastIP {
			m.stream.Publish(Event{Type: GotIP, Data: ip})
			m.gotIP = true
			m.lastIP = ip
		}
	}

	if m.lastState.isUp() && cur.isDown() {
		m.stream.Publish(Event{Type: LinkDown})
		m.gotIP = false
		m.lastIP = ""
	}

	m.lastState = cur
}
