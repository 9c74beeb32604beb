package netdevice

import "github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend"

// MaxSessions is the fixed number of concurrently open NetworkDevice
// sessions. Reached capacity yields DeviceBusy on Open.
const MaxSessions = 16

// Method is the HTTP-ish verb a session was opened with.
type Method uint8

const (
	MethodNone Method = iota
	MethodGet
	MethodPost
	MethodPut
	MethodDelete
	MethodHead
)

// Open flag bits, per the wire format.
const (
	FlagTLS            uint8 = 1 << 0
	FlagFollowRedirect  uint8 = 1 << 1
	FlagStreamedNoLen   uint8 = 1 << 2
)

// Phase is a session's place in the Idle → Opened → (Streaming |
// Uploading → Completed) → Closed state machine.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseOpened
	PhaseStreaming
	PhaseUploading
	PhaseCompleted
	PhaseClosed
)

// session is one MAX_SESSIONS slot. Index in the owning Device's array is
// implicit; handle() combines it with generation.
type session struct {
	active      bool
	generation  uint8
	method      Method
	flags       uint8
	url         string
	backend     backend.Backend
	phase       Phase
	createdTick uint64
	lastTick    uint64
	expectedLen uint32
	receivedLen uint32
	awaitingCommit bool
}

func handle(generation, index uint8) uint16 {
	return uint16(generation)<<8 | uint16(index)
}

func decodeHandle(h uint16) (generation, index uint8) {
	return uint8(h >> 8), uint8(h & 0xFF)
}
