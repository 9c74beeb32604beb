package prometheus

import (
	"testing"
	"time"

	"github.com/fujinet-nio/fujinet-nio/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsReturnNilWhenDisabled(t *testing.T) {
	metrics.ResetRegistry()
	assert.Nil(t, NewBusMetrics())
	assert.Nil(t, NewDiskMetrics())
	assert.Nil(t, NewNetworkMetrics())
}

func TestBusMetricsRecordsAgainstRegistry(t *testing.T) {
	metrics.InitRegistry()
	defer metrics.ResetRegistry()

	m := NewBusMetrics()
	require.NotNil(t, m)

	assert.NotPanics(t, func() {
		m.RecordRequest(0x71, 0x01, "Ok", 2*time.Millisecond)
		m.SetRegisteredDevices(5)
	})

	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestDiskMetricsRecordsAgainstRegistry(t *testing.T) {
	metrics.InitRegistry()
	defer metrics.ResetRegistry()

	m := NewDiskMetrics()
	require.NotNil(t, m)

	assert.NotPanics(t, func() {
		m.SetSlotMounted(0, true)
		m.SetSlotDirty(0, false)
		m.RecordSectorRead(0, 256)
		m.RecordSectorWrite(0, 256)
	})
}

func TestNetworkMetricsRecordsAgainstRegistry(t *testing.T) {
	metrics.InitRegistry()
	defer metrics.ResetRegistry()

	m := NewNetworkMetrics()
	require.NotNil(t, m)

	assert.NotPanics(t, func() {
		m.SetActiveSessions(2)
		m.RecordSessionOpened("tcp")
		m.RecordSessionClosed("tcp")
		m.RecordBytesTransferred("tcp", "read", 128)
	})
}
