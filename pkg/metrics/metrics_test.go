package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryLifecycle(t *testing.T) {
	ResetRegistry()
	assert.False(t, IsEnabled())
	assert.Nil(t, GetRegistry())

	reg := InitRegistry()
	assert.True(t, IsEnabled())
	assert.Same(t, reg, GetRegistry())

	ResetRegistry()
	assert.False(t, IsEnabled())
}

func TestNilRecordersAreNoOps(t *testing.T) {
	ResetRegistry()
	assert.NotPanics(t, func() {
		RecordRequest(nil, 0x71, 0x01, "Ok", 0)
		SetRegisteredDevices(nil, 3)
		SetSlotMounted(nil, 0, true)
		SetSlotDirty(nil, 0, false)
		RecordSectorRead(nil, 0, 256)
		RecordSectorWrite(nil, 0, 256)
		SetActiveSessions(nil, 1)
		RecordSessionOpened(nil, "tcp")
		RecordSessionClosed(nil, "tcp")
		RecordBytesTransferred(nil, "tcp", "read", 128)
	})
}
