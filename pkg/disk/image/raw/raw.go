// Package raw implements the flat raw sector image format: no header, no
// catalogue, just sectorCount*sectorSize bytes. The caller must supply the
// sector size as a hint since nothing in the file declares it.
package raw

import (
	"io"

	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image"
	"github.com/fujinet-nio/fujinet-nio/pkg/fs"
)

// Handler is an open raw image.
type Handler struct {
	file        fs.File
	readOnly    bool
	sectorSize  int
	sectorCount uint32
}

var _ image.Handler = (*Handler)(nil)

// Open validates path's size against sectorSizeHint (size must divide it
// evenly) and returns a ready Handler.
func Open(fsys fs.FileSystem, path string, sectorSizeHint int, writable bool) (*Handler, error) {
	if sectorSizeHint <= 0 {
		return nil, image.ErrInvalidGeometry
	}
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, image.ErrInvalidImage
	}
	if info.Size%int64(sectorSizeHint) != 0 {
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

	return &Handler{
		file:        f,
		readOnly:    !writable,
		sectorSize:  sectorSizeHint,
		sectorCount: uint32(info.Size / int64(sectorSizeHint)),
	}, nil
}

// Create writes sectorCount*sectorSize zero bytes to path.
func Create(fsys fs.FileSystem, path string, sectorSize int, sectorCount uint32, overwrite bool) error {
	if sectorSize <= 0 || sectorCount == 0 {
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

	if err := writeZeros(f, int64(sectorCount)*int64(sectorSize)); err != nil {
		return err
	}
	return f.Flush()
}

func (h *Handler) Type() image.Type { return image.Raw }

func (h *Handler) Geometry() image.Geometry {
	return image.Geometry{SectorSize: h.sectorSize, SectorCount: h.sectorCount, VariableSectorSize: false}
}

func (h *Handler) ReadOnly() bool           { return h.readOnly }
func (h *Handler) SectorSizeFor(uint32) int { return h.sectorSize }

func (h *Handler) ReadSector(lba uint32, dst []byte) (int, error) {
	if lba >= h.sectorCount {
		return 0, image.ErrOutOfRange
	}
	if _, err := h.file.Seek(int64(lba)*int64(h.sectorSize), io.SeekStart); err != nil {
		return 0, err
	}
	n := h.sectorSize
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
	if len(src) != h.sectorSize {
		return 0, image.ErrSizeMismatch
	}
	if _, err := h.file.Seek(int64(lba)*int64(h.sectorSize), io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := h.file.Write(src); err != nil {
		return 0, err
	}
	return h.sectorSize, nil
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
