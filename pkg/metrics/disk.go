package metrics

// DiskMetrics observes DiskService slot state: mount/dirty status and
// sector I/O volume. Pass nil to disable.
type DiskMetrics interface {
	// SetSlotMounted records whether slot currently has an image mounted.
	SetSlotMounted(slot int, mounted bool)

	// SetSlotDirty records slot's write-since-mount flag.
	SetSlotDirty(slot int, dirty bool)

	// RecordSectorRead records a completed sector read on slot.
	RecordSectorRead(slot int, bytes int)

	// RecordSectorWrite records a completed sector write on slot.
	RecordSectorWrite(slot int, bytes int)
}

func SetSlotMounted(m DiskMetrics, slot int, mounted bool) {
	if m != nil {
		m.SetSlotMounted(slot, mounted)
	}
}

func SetSlotDirty(m DiskMetrics, slot int, dirty bool) {
	if m != nil {
		m.SetSlotDirty(slot, dirty)
	}
}

func RecordSectorRead(m DiskMetrics, slot int, bytes int) {
	if m != nil {
		m.RecordSectorRead(slot, bytes)
	}
}

func RecordSectorWrite(m DiskMetrics, slot int, bytes int) {
	if m != nil {
		m.RecordSectorWrite(slot, bytes)
	}
}
