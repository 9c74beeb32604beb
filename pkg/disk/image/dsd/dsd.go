// Package dsd is a placeholder for the BBC Micro double-sided DFS disk
// image format. No implementation exists yet; Open and Create always
// report UnsupportedImageType so the rest of DiskService's mount path can
// treat DSD uniformly with the formats it does support.
package dsd

import (
	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image"
	"github.com/fujinet-nio/fujinet-nio/pkg/fs"
)

// Open always fails: DSD support is not implemented.
func Open(_ fs.FileSystem, _ string, _ bool) (image.Handler, error) {
	return nil, image.ErrUnsupportedImageType
}

// Create always fails: DSD support is not implemented.
func Create(_ fs.FileSystem, _ string, _ int, _ uint32, _ bool) error {
	return image.ErrUnsupportedImageType
}
