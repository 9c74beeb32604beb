// Package atr implements the ATR disk image format used by Atari 8-bit
// disk drives: a 16-byte header followed by sector data, with the odd
// convention that a 256-byte-sector image still stores its first three
// sectors as 128 bytes each.
package atr

import (
	"encoding/binary"
	"io"

	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image"
	"github.com/fujinet-nio/fujinet-nio/pkg/fs"
)

const (
	headerSize  = 16
	atrMagic    = 0x0296
	paragraphSz = 16 // bytes per "paragraph" in the ATR size field
)

// Handler is an open ATR image.
type Handler struct {
	file     fs.File
	readOnly bool

	base        int    // base sector size: 128, 256, or 512
	sectorCount uint32 // total addressable sectors
}

var _ image.Handler = (*Handler)(nil)

// Open reads and validates path's ATR header and returns a ready Handler.
// writable requests read-write access; the caller degrades to read-only
// and retries on failure, per DiskService's mount policy.
func Open(fsys fs.FileSystem, path string, writable bool) (*Handler, error) {
	mode := fs.ModeRead
	if writable {
		mode |= fs.ModeWrite
	}
	f, err := fsys.Open(path, mode)
	if err != nil {
		return nil, err
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(f, header); err != nil {
		f.Close()
		return nil, image.ErrInvalidImage
	}

	magic := binary.LittleEndian.Uint16(header[0:2])
	if magic != atrMagic {
		f.Close()
		return nil, image.ErrInvalidImage
	}

	low16 := uint32(binary.LittleEndian.Uint16(header[2:4]))
	base := int(binary.LittleEndian.Uint16(header[4:6]))
	high8 := uint32(header[6])
	paragraphs := low16 | (high8 << 16)

	switch base {
	case 128, 256, 512:
	default:
		f.Close()
		return nil, image.ErrInvalidImage
	}

	sectorCount := paragraphs * paragraphSz / uint32(base)
	if base == 256 {
		sectorCount += 2
	}

	return &Handler{file: f, readOnly: !writable, base: base, sectorCount: sectorCount}, nil
}

// Create writes a minimal valid ATR image of the given geometry to path.
// sectorSize must be 128, 256, or 512; sectorCount is the logical count
// DiskService asked for (i.e. what Geometry().SectorCount should report).
func Create(fsys fs.FileSystem, path string, sectorSize int, sectorCount uint32, overwrite bool) error {
	switch sectorSize {
	case 128, 256, 512:
	default:
		return image.ErrInvalidGeometry
	}
	if sectorCount == 0 {
		return image.ErrInvalidGeometry
	}

	if !overwrite && fsys.Exists(path) {
		return image.ErrAlreadyExists
	}

	// The on-disk paragraph count follows the format's own (lossy, for
	// base==256) convention rather than the literal file size: see the
	// sectorCount computation in Open for the matching read-side formula.
	var paragraphs uint32
	var dataBytes int64
	if sectorSize == 256 {
		if sectorCount < 2 {
			return image.ErrInvalidGeometry
		}
		paragraphs = (sectorCount*uint32(sectorSize) - 3*128) / paragraphSz
		dataBytes = 3*128 + int64(sectorCount-2)*int64(sectorSize)
	} else {
		paragraphs = sectorCount * uint32(sectorSize) / paragraphSz
		dataBytes = int64(sectorCount) * int64(sectorSize)
	}

	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint16(header[0:2], atrMagic)
	binary.LittleEndian.PutUint16(header[2:4], uint16(paragraphs&0xFFFF))
	binary.LittleEndian.PutUint16(header[4:6], uint16(sectorSize))
	header[6] = byte(paragraphs >> 16)

	f, err := fsys.Open(path, fs.ModeWrite|fs.ModeCreate|fs.ModeTruncate)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(header); err != nil {
		return err
	}
	if err := writeZeros(f, dataBytes); err != nil {
		return err
	}
	return f.Flush()
}

func (h *Handler) Type() image.Type { return image.ATR }

func (h *Handler) Geometry() image.Geometry {
	return image.Geometry{
		SectorSize:         h.base,
		SectorCount:        h.sectorCount,
		VariableSectorSize: h.base == 256,
	}
}

func (h *Handler) ReadOnly() bool { return h.readOnly }

func (h *Handler) SectorSizeFor(lba uint32) int {
	_, size := h.offsetAndSize(lba)
	return size
}

// offsetAndSize implements the ATR sector→byte-offset law. lba is
// zero-based; internally ATR numbers sectors starting at 1.
func (h *Handler) offsetAndSize(lba uint32) (offset int64, size int) {
	sector := lba + 1

	if h.base == 256 {
		switch sector {
		case 1:
			return headerSize, 128
		case 2:
			return headerSize + 128, 128
		case 3:
			return headerSize + 256, 128
		default:
			return headerSize + 3*128 + int64(sector-4)*256, 256
		}
	}

	if sector == 1 {
		return headerSize, h.base
	}
	return headerSize + int64(sector-1)*int64(h.base), h.base
}

func (h *Handler) ReadSector(lba uint32, dst []byte) (int, error) {
	if lba >= h.sectorCount {
		return 0, image.ErrOutOfRange
	}
	offset, size := h.offsetAndSize(lba)

	for i := range dst {
		dst[i] = 0
	}

	n := size
	if n > len(dst) {
		n = len(dst)
	}
	if _, err := h.file.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := io.ReadFull(h.file, dst[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

func (h *Handler) WriteSector(lba uint32, src []byte) (int, error) {
	if lba >= h.sectorCount {
		return 0, image.ErrOutOfRange
	}
	if h.readOnly {
		return 0, image.ErrReadOnly
	}
	offset, size := h.offsetAndSize(lba)
	if len(src) != size {
		return 0, image.ErrSizeMismatch
	}
	if _, err := h.file.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := h.file.Write(src); err != nil {
		return 0, err
	}
	return size, nil
}

func (h *Handler) Flush() error { return h.file.Flush() }
func (h *Handler) Close() error { return h.file.Close() }

func writeZeros(f fs.File, n int64) error {
	const chunkSize = 64 * 1024
	chunk := make([]byte, chunkSize)
	for n > 0 {
		w := int64(chunkSize)
		if w > n {
			w = n
		}
		if _, err := f.Write(chunk[:w]); err != nil {
			return err
		}
		n -= w
	}
	return nil
}
