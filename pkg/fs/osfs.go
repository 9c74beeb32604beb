package fs

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// OSFS is a FileSystem rooted at a real directory on the host. It's the
// "host" backend the console mounts for loading images and configuration
// off whatever filesystem the firmware is running on top of.
type OSFS struct {
	name string
	root string
}

// NewOSFS roots an OSFS at root, which must already exist. All paths
// handed to its methods are resolved relative to root and clamped to stay
// inside it.
func NewOSFS(name, root string) (*OSFS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("fs: resolving root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("fs: root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fs: root %q is not a directory", root)
	}
	return &OSFS{name: name, root: abs}, nil
}

func (o *OSFS) Name() string { return o.name }

// resolve maps a POSIX-style virtual path to a real path under o.root,
// the same way clean() contains MemFS paths: Clean never lets ".." climb
// above the synthetic root.
func (o *OSFS) resolve(p string) string {
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	clean := path.Clean(p)
	return filepath.Join(o.root, filepath.FromSlash(clean))
}

func (o *OSFS) Exists(p string) bool {
	_, err := os.Stat(o.resolve(p))
	return err == nil
}

func (o *OSFS) IsDirectory(p string) bool {
	info, err := os.Stat(o.resolve(p))
	return err == nil && info.IsDir()
}

func (o *OSFS) CreateDirectory(p string) error {
	return os.MkdirAll(o.resolve(p), 0o755)
}

func (o *OSFS) RemoveFile(p string) error {
	real := o.resolve(p)
	info, err := os.Stat(real)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("fs: %s is a directory", p)
	}
	return os.Remove(real)
}

func (o *OSFS) RemoveDirectory(p string) error {
	real := o.resolve(p)
	info, err := os.Stat(real)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("fs: %s is not a directory", p)
	}
	return os.Remove(real) // fails on non-empty, same contract as MemFS
}

func (o *OSFS) Rename(oldPath, newPath string) error {
	return os.Rename(o.resolve(oldPath), o.resolve(newPath))
}

func (o *OSFS) Stat(p string) (*FileInfo, error) {
	info, err := os.Stat(o.resolve(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return &FileInfo{
		Name:    info.Name(),
		Size:    info.Size(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	}, nil
}

func (o *OSFS) ListDirectory(p string) ([]FileInfo, error) {
	entries, err := os.ReadDir(o.resolve(p))
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{Name: e.Name(), Size: info.Size(), IsDir: e.IsDir(), ModTime: info.ModTime()})
	}
	return out, nil
}

func (o *OSFS) Open(p string, mode OpenMode) (File, error) {
	var flag int
	switch {
	case mode.Has(ModeRead) && mode.Has(ModeWrite):
		flag = os.O_RDWR
	case mode.Has(ModeWrite):
		flag = os.O_WRONLY
	default:
		flag = os.O_RDONLY
	}
	if mode.Has(ModeCreate) {
		flag |= os.O_CREATE
	}
	if mode.Has(ModeTruncate) {
		flag |= os.O_TRUNC
	}
	if mode.Has(ModeAppend) {
		flag |= os.O_APPEND
	}

	f, err := os.OpenFile(o.resolve(p), flag, 0o644)
	if err != nil {
		return nil, err
	}
	return &osFile{f: f}, nil
}

type osFile struct {
	f *os.File
}

func (o *osFile) Read(p []byte) (int, error)  { return o.f.Read(p) }
func (o *osFile) Write(p []byte) (int, error) { return o.f.Write(p) }
func (o *osFile) Seek(offset int64, whence int) (int64, error) {
	return o.f.Seek(offset, whence)
}
func (o *osFile) Tell() (int64, error) { return o.f.Seek(0, io.SeekCurrent) }
func (o *osFile) Flush() error         { return o.f.Sync() }
func (o *osFile) Close() error         { return o.f.Close() }
