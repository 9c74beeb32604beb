// Package miscdevice collects the small, mostly-stateless bus devices that
// wrap a single collaborator each: FileDevice over pkg/fs, ClockDevice over
// the platform wall clock, and FujiDevice over process-level reset/identity.
// None of the three needs a session table or background Poll work, unlike
// NetworkDevice or ModemDevice.
package miscdevice

import (
	"context"

	"github.com/fujinet-nio/fujinet-nio/pkg/bus"
	"github.com/fujinet-nio/fujinet-nio/pkg/fs"
	"github.com/fujinet-nio/fujinet-nio/pkg/wire"
)

// FileDevice opcodes.
const (
	OpStat          = 0x01
	OpListDirectory = 0x02
	OpReadFile      = 0x03
	OpWriteFile     = 0x04
	OpMakeDirectory = 0x05
)

// Stat/ListDirectory entry flag bits.
const (
	EntryFlagExists uint8 = 1 << iota
	EntryFlagIsDir
)

// WriteFile request flag bits.
const (
	WriteFlagCreate uint8 = 1 << iota
	WriteFlagTruncate
	WriteFlagAppend
)

// FileDevice answers Stat/ListDirectory/ReadFile/WriteFile/MakeDirectory
// requests against a named filesystem registered with storage. Reads and
// writes are one-shot: each request opens, seeks, transfers, and closes —
// there is no open-file handle table, since the wire protocol addresses
// files by (fsName, path, offset) on every call rather than an opaque
// session like NetworkDevice's.
type FileDevice struct {
	storage *fs.StorageManager
}

var _ bus.Device = (*FileDevice)(nil)

// NewFileDevice builds a FileDevice resolving fsName against storage.
func NewFileDevice(storage *fs.StorageManager) *FileDevice {
	return &FileDevice{storage: storage}
}

func (d *FileDevice) Poll(ctx context.Context) {}

func (d *FileDevice) Handle(ctx context.Context, req bus.IORequest) bus.IOResponse {
	switch req.Command {
	case OpStat:
		return d.handleStat(req)
	case OpListDirectory:
		return d.handleListDirectory(req)
	case OpReadFile:
		return d.handleReadFile(req)
	case OpWriteFile:
		return d.handleWriteFile(req)
	case OpMakeDirectory:
		return d.handleMakeDirectory(req)
	default:
		return respond(req, bus.InvalidRequest, nil)
	}
}

func respond(req bus.IORequest, status bus.StatusCode, payload []byte) bus.IOResponse {
	return bus.IOResponse{ID: req.ID, Device: req.Device, Command: req.Command, Status: status, Payload: payload}
}

func (d *FileDevice) resolve(fsName string) (fs.FileSystem, bool) {
	return d.storage.Get(fsName)
}

func readFsPathReq(payload []byte) (fsName, path string, r *wire.Reader) {
	r = wire.NewReader(payload)
	r.U8() // version
	fsName = r.LPString()
	path = r.LPString()
	return
}

func (d *FileDevice) handleStat(req bus.IORequest) bus.IOResponse {
	fsName, path, r := readFsPathReq(req.Payload)
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	fsys, ok := d.resolve(fsName)
	if !ok {
		return respond(req, bus.InvalidRequest, nil)
	}

	info, err := fsys.Stat(path)
	if err != nil {
		return respond(req, bus.IOError, nil)
	}
	var flags uint8
	var size int64
	var modTime int64
	if info != nil {
		flags |= EntryFlagExists
		if info.IsDir {
			flags |= EntryFlagIsDir
		}
		size = info.Size
		modTime = info.ModTime.Unix()
	}
	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(flags).U64(uint64(size)).U64(uint64(modTime))
	return respond(req, bus.Ok, w.Build())
}

func (d *FileDevice) handleListDirectory(req bus.IORequest) bus.IOResponse {
	fsName, path, r := readFsPathReq(req.Payload)
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	fsys, ok := d.resolve(fsName)
	if !ok {
		return respond(req, bus.InvalidRequest, nil)
	}

	entries, err := fsys.ListDirectory(path)
	if err != nil {
		return respond(req, bus.IOError, nil)
	}

	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(1).U16(uint16(len(entries)))
	for _, e := range entries {
		var flags uint8
		flags |= EntryFlagExists
		if e.IsDir {
			flags |= EntryFlagIsDir
		}
		w.U8(flags).U64(uint64(e.Size)).LPString(e.Name)
	}
	return respond(req, bus.Ok, w.Build())
}

func (d *FileDevice) handleReadFile(req bus.IORequest) bus.IOResponse {
	fsName, path, r := readFsPathReq(req.Payload)
	offset := r.U64()
	maxBytes := r.U32()
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	fsys, ok := d.resolve(fsName)
	if !ok {
		return respond(req, bus.InvalidRequest, nil)
	}

	f, err := fsys.Open(path, fs.ModeRead)
	if err != nil {
		return respond(req, bus.IOError, nil)
	}
	defer f.Close()

	if _, err := f.Seek(int64(offset), 0); err != nil {
		return respond(req, bus.IOError, nil)
	}

	dst := make([]byte, maxBytes)
	n, readErr := f.Read(dst)
	eof := readErr != nil

	var flags uint8
	if eof {
		flags |= 1
	}
	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(flags).U32(uint32(n)).Bytes(dst[:n])
	return respond(req, bus.Ok, w.Build())
}

func (d *FileDevice) handleWriteFile(req bus.IORequest) bus.IOResponse {
	fsName, path, r := readFsPathReq(req.Payload)
	offset := r.U64()
	flags := r.U8()
	dataLen := r.U16()
	data := r.Bytes(int(dataLen))
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	fsys, ok := d.resolve(fsName)
	if !ok {
		return respond(req, bus.InvalidRequest, nil)
	}

	mode := fs.ModeWrite
	if flags&WriteFlagCreate != 0 {
		mode |= fs.ModeCreate
	}
	if flags&WriteFlagTruncate != 0 {
		mode |= fs.ModeTruncate
	}
	if flags&WriteFlagAppend != 0 {
		mode |= fs.ModeAppend
	}

	f, err := fsys.Open(path, mode)
	if err != nil {
		return respond(req, bus.IOError, nil)
	}
	defer f.Close()

	if flags&WriteFlagAppend == 0 {
		if _, err := f.Seek(int64(offset), 0); err != nil {
			return respond(req, bus.IOError, nil)
		}
	}

	n, err := f.Write(data)
	if err != nil {
		return respond(req, bus.IOError, nil)
	}
	f.Flush()

	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(1).U32(uint32(n))
	return respond(req, bus.Ok, w.Build())
}

func (d *FileDevice) handleMakeDirectory(req bus.IORequest) bus.IOResponse {
	fsName, path, r := readFsPathReq(req.Payload)
	if err := r.Err(); err != nil {
		return respond(req, bus.InvalidRequest, nil)
	}
	fsys, ok := d.resolve(fsName)
	if !ok {
		return respond(req, bus.InvalidRequest, nil)
	}

	if err := fsys.CreateDirectory(path); err != nil {
		return respond(req, bus.IOError, nil)
	}
	w := wire.NewWriter().U8(wire.ProtocolVersion).U8(1)
	return respond(req, bus.Ok, w.Build())
}
