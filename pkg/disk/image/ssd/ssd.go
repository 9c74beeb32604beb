// Package ssd implements the BBC Micro DFS "SSD" disk image format: flat
// 256-byte sectors with a two-sector catalogue at the front, no per-image
// header. Only the two disc sizes DFS actually shipped (400 and 800
// sectors, i.e. 40- and 80-track single-sided discs) are accepted.
package ssd

import (
	"io"

	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image"
	"github.com/fujinet-nio/fujinet-nio/pkg/fs"
)

const sectorSize = 256

var validSectorCounts = map[uint32]bool{400: true, 800: true}

// Handler is an open SSD image.
type Handler struct {
	file        fs.File
	readOnly    bool
	sectorCount uint32
}

var _ image.Handler = (*Handler)(nil)

// Open validates path's size against the two accepted DFS geometries and
// returns a ready Handler. writable requests read-write access; the
// caller degrades to read-only and retries on failure.
func Open(fsys fs.FileSystem, path string, writable bool) (*Handler, error) {
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, image.ErrInvalidImage
	}
	if info.Size%sectorSize != 0 {
		return nil, image.ErrInvalidImage
	}
	sectorCount := uint32(info.Size / sectorSize)
	if !validSectorCounts[sectorCount] {
		return nil, image.ErrInvalidImage
	}

	mode := fs.ModeRead
	if writable {
		mode |= fs.ModeWrite
	}
	f, err := fsys.Open(path, mode)
	if err != nil {
		return nil, err
	}

	return &Handler{file: f, readOnly: !writable, sectorCount: sectorCount}, nil
}

// Create writes a minimal DFS 0.90 catalogue (disc title left blank, zero
// files, sector count recorded in the sector-1 geometry bytes) to sectors
// 0-1 and sparse-extends the file to sectorCount total sectors.
func Create(fsys fs.FileSystem, path string, sectorCount uint32, overwrite bool) error {
	if !validSectorCounts[sectorCount] {
		return image.ErrInvalidGeometry
	}
	if !overwrite && fsys.Exists(path) {
		return image.ErrAlreadyExists
	}

	f, err := fsys.Open(path, fs.ModeWrite|fs.ModeCreate|fs.ModeTruncate)
	if err != nil {
		return err
	}
	defer f.Close()

	sector0 := make([]byte, sectorSize)
	sector1 := make([]byte, sectorSize)
	for i := 0; i < 8; i++ {
		sector0[i] = ' '
		sector1[i] = ' '
	}
	sector1[5] = 0 // file count * 8 (no catalogue entries)
	sector1[6] = byte((sectorCount >> 8) & 0x03)
	sector1[7] = byte(sectorCount & 0xFF)

	if _, err := f.Write(sector0); err != nil {
		return err
	}
	if _, err := f.Write(sector1); err != nil {
		return err
	}
	if err := writeZeros(f, int64(sectorCount-2)*sectorSize); err != nil {
		return err
	}
	return f.Flush()
}

func (h *Handler) Type() image.Type { return image.SSD }

func (h *Handler) Geometry() image.Geometry {
	return image.Geometry{SectorSize: sectorSize, SectorCount: h.sectorCount, VariableSectorSize: false}
}

func (h *Handler) ReadOnly() bool           { return h.readOnly }
func (h *Handler) SectorSizeFor(uint32) int { return sectorSize }

func (h *Handler) ReadSector(lba uint32, dst []byte) (int, error) {
	if lba >= h.sectorCount {
		return 0, image.ErrOutOfRange
	}
	if _, err := h.file.Seek(int64(lba)*sectorSize, io.SeekStart); err != nil {
		return 0, err
	}
	n := sectorSize
	if n > len(dst) {
		n = len(dst)
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
	if len(src) != sectorSize {
		return 0, image.ErrSizeMismatch
	}
	if _, err := h.file.Seek(int64(lba)*sectorSize, io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := h.file.Write(src); err != nil {
		return 0, err
	}
	return sectorSize, nil
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
