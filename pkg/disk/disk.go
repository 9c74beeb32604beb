// Package disk implements DiskService: eight fixed disk slots, each
// optionally mounted with an ATR, SSD, or raw image, read/written a
// sector at a time through the pkg/disk/image format handlers.
package disk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image"
	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image/atr"
	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image/dsd"
	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image/raw"
	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image/ssd"
	"github.com/fujinet-nio/fujinet-nio/pkg/fs"
	"github.com/fujinet-nio/fujinet-nio/pkg/metrics"
)

// NumSlots is the fixed number of disk slots DiskService manages.
const NumSlots = 8

// ErrNotMounted is returned by ReadSector/WriteSector against a slot with
// nothing mounted.
var ErrNotMounted = errors.New("disk: slot not mounted")

// ErrorCode is the per-slot last-error taxonomy surfaced through SlotInfo,
// finer-grained than bus.StatusCode alone: a slot remembers WHY the last
// operation against it failed, not just that it did.
type ErrorCode uint8

const (
	ErrorNone ErrorCode = iota
	ErrorNotMounted
	ErrorOutOfRange
	ErrorReadOnly
	ErrorUnsupportedType
	ErrorIO
)

func (e ErrorCode) String() string {
	switch e {
	case ErrorNone:
		return "None"
	case ErrorNotMounted:
		return "NotMounted"
	case ErrorOutOfRange:
		return "OutOfRange"
	case ErrorReadOnly:
		return "ReadOnly"
	case ErrorUnsupportedType:
		return "UnsupportedType"
	case ErrorIO:
		return "IO"
	default:
		return "Unknown"
	}
}

// MountOptions parametrize Mount.
type MountOptions struct {
	ReadOnlyRequested bool
	TypeOverride      image.Type
	SectorSizeHint    int
}

// SlotInfo is a point-in-time snapshot of a slot, returned by Info.
type SlotInfo struct {
	Inserted    bool
	ReadOnly    bool
	Dirty       bool
	Changed     bool
	ImageType   image.Type
	Geometry    image.Geometry
	LastError   ErrorCode
	FSName      string
	Path        string
}

// slot is DiskService's internal bookkeeping for one of the 8 slots.
type slot struct {
	inserted  bool
	readOnly  bool
	dirty     bool
	changed   bool
	fsName    string
	path      string
	handler   image.Handler
	lastError ErrorCode
}

func (s *slot) info() SlotInfo {
	info := SlotInfo{
		Inserted:  s.inserted,
		ReadOnly:  s.readOnly,
		Dirty:     s.dirty,
		Changed:   s.changed,
		LastError: s.lastError,
		FSName:    s.fsName,
		Path:      s.path,
	}
	if s.handler != nil {
		info.ImageType = s.handler.Type()
		info.Geometry = s.handler.Geometry()
	}
	return info
}

// Service manages the 8 fixed disk slots and dispatches I/O to the
// appropriate image format handler per slot.
type Service struct {
	mu      sync.Mutex
	slots   [NumSlots]slot
	storage *fs.StorageManager
	metrics metrics.DiskMetrics
}

// NewService builds a DiskService resolving fsName mount parameters
// against storage.
func NewService(storage *fs.StorageManager) *Service {
	return &Service{storage: storage}
}

// SetMetrics installs a DiskMetrics collector. Passing nil disables
// collection again (the zero-overhead default).
func (s *Service) SetMetrics(dm metrics.DiskMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = dm
}

func (s *Service) checkSlot(slotIndex int) error {
	if slotIndex < 0 || slotIndex >= NumSlots {
		return fmt.Errorf("disk: slot index %d out of range", slotIndex)
	}
	return nil
}

// Mount opens path on fsName's filesystem as an image and installs it in
// slotIndex, flushing and replacing whatever was previously mounted there.
// A writable open that fails is retried read-only before giving up.
func (s *Service) Mount(slotIndex int, fsName, path string, opts MountOptions) (SlotInfo, error) {
	if err := s.checkSlot(slotIndex); err != nil {
		return SlotInfo{}, err
	}

	fsys, ok := s.storage.Get(fsName)
	if !ok {
		return SlotInfo{}, fmt.Errorf("disk: unknown filesystem %q", fsName)
	}

	typ := opts.TypeOverride
	if typ == image.Auto {
		typ = image.DetectType(path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sl := &s.slots[slotIndex]
	s.unmountLocked(sl)

	wantWritable := !opts.ReadOnlyRequested
	handler, err := openHandler(fsys, path, typ, opts.SectorSizeHint, wantWritable)
	if err != nil && wantWritable {
		handler, err = openHandler(fsys, path, typ, opts.SectorSizeHint, false)
	}
	if err != nil {
		sl.lastError = classifyMountError(err)
		return sl.info(), err
	}

	sl.inserted = true
	sl.readOnly = handler.ReadOnly()
	sl.dirty = false
	sl.changed = true
	sl.fsName = fsName
	sl.path = path
	sl.handler = handler
	sl.lastError = ErrorNone

	metrics.SetSlotMounted(s.metrics, slotIndex, true)
	metrics.SetSlotDirty(s.metrics, slotIndex, false)

	return sl.info(), nil
}

func openHandler(fsys fs.FileSystem, path string, typ image.Type, sectorSizeHint int, writable bool) (image.Handler, error) {
	switch typ {
	case image.ATR:
		return atr.Open(fsys, path, writable)
	case image.SSD:
		return ssd.Open(fsys, path, writable)
	case image.Raw:
		return raw.Open(fsys, path, sectorSizeHint, writable)
	case image.DSD:
		return dsd.Open(fsys, path, writable)
	default:
		return nil, image.ErrUnsupportedImageType
	}
}

func classifyMountError(err error) ErrorCode {
	switch err {
	case image.ErrUnsupportedImageType:
		return ErrorUnsupportedType
	case image.ErrInvalidImage, image.ErrInvalidGeometry:
		return ErrorIO
	default:
		return ErrorIO
	}
}

// Unmount flushes and tears down whatever is mounted at slotIndex. It is
// not an error to unmount an empty slot.
func (s *Service) Unmount(slotIndex int) (SlotInfo, error) {
	if err := s.checkSlot(slotIndex); err != nil {
		return SlotInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sl := &s.slots[slotIndex]
	s.unmountLocked(sl)
	sl.changed = true
	metrics.SetSlotMounted(s.metrics, slotIndex, false)
	metrics.SetSlotDirty(s.metrics, slotIndex, false)
	return sl.info(), nil
}

// unmountLocked flushes and clears sl. Caller holds s.mu.
func (s *Service) unmountLocked(sl *slot) {
	if sl.handler != nil {
		sl.handler.Flush()
		sl.handler.Close()
	}
	*sl = slot{}
}

// ReadSector reads the sector at lba in slotIndex into dst, returning the
// number of bytes actually transferred.
func (s *Service) ReadSector(slotIndex int, lba uint32, dst []byte) (int, error) {
	if err := s.checkSlot(slotIndex); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sl := &s.slots[slotIndex]
	if sl.handler == nil {
		sl.lastError = ErrorNotMounted
		return 0, ErrNotMounted
	}

	n, err := sl.handler.ReadSector(lba, dst)
	sl.lastError = classifyIOError(err)
	if err == nil {
		metrics.RecordSectorRead(s.metrics, slotIndex, n)
	}
	return n, err
}

// WriteSector writes src to the sector at lba in slotIndex, returning the
// number of bytes actually transferred. Sets dirty=true on success.
func (s *Service) WriteSector(slotIndex int, lba uint32, src []byte) (int, error) {
	if err := s.checkSlot(slotIndex); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sl := &s.slots[slotIndex]
	if sl.handler == nil {
		sl.lastError = ErrorNotMounted
		return 0, ErrNotMounted
	}

	n, err := sl.handler.WriteSector(lba, src)
	sl.lastError = classifyIOError(err)
	if err == nil {
		sl.dirty = true
		metrics.RecordSectorWrite(s.metrics, slotIndex, n)
		metrics.SetSlotDirty(s.metrics, slotIndex, true)
	}
	return n, err
}

func classifyIOError(err error) ErrorCode {
	switch err {
	case nil:
		return ErrorNone
	case image.ErrOutOfRange:
		return ErrorOutOfRange
	case image.ErrReadOnly:
		return ErrorReadOnly
	case image.ErrSizeMismatch:
		return ErrorIO
	default:
		return ErrorIO
	}
}

// CreateImage writes a new image file of the given format/geometry to
// fsName:path, then flushes it. It refuses to overwrite an existing file
// unless overwrite is set.
func (s *Service) CreateImage(fsName, path string, typ image.Type, sectorSize int, sectorCount uint32, overwrite bool) error {
	if sectorSize <= 0 || sectorCount == 0 {
		return image.ErrInvalidGeometry
	}

	fsys, ok := s.storage.Get(fsName)
	if !ok {
		return fmt.Errorf("disk: unknown filesystem %q", fsName)
	}

	switch typ {
	case image.ATR:
		return atr.Create(fsys, path, sectorSize, sectorCount, overwrite)
	case image.SSD:
		return ssd.Create(fsys, path, sectorCount, overwrite)
	case image.Raw:
		return raw.Create(fsys, path, sectorSize, sectorCount, overwrite)
	case image.DSD:
		return dsd.Create(fsys, path, sectorSize, sectorCount, overwrite)
	default:
		return image.ErrUnsupportedImageType
	}
}

// Info returns a snapshot of slotIndex's current state.
func (s *Service) Info(slotIndex int) (SlotInfo, error) {
	if err := s.checkSlot(slotIndex); err != nil {
		return SlotInfo{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slots[slotIndex].info(), nil
}

// ClearChanged resets slotIndex's host-visible change flag.
func (s *Service) ClearChanged(slotIndex int) error {
	if err := s.checkSlot(slotIndex); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slotIndex].changed = false
	return nil
}
