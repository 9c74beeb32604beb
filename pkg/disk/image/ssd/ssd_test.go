package ssd

import (
	"testing"

	"github.com/fujinet-nio/fujinet-nio/pkg/disk/image"
	"github.com/fujinet-nio/fujinet-nio/pkg/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndMount(t *testing.T) {
	t.Run("Accepts400Sectors", func(t *testing.T) {
		memfs := fs.NewMemFS("flash")
		require.NoError(t, Create(memfs, "/a.ssd", 400, false))

		h, err := Open(memfs, "/a.ssd", true)
		require.NoError(t, err)
		defer h.Close()
		assert.Equal(t, uint32(400), h.Geometry().SectorCount)
		assert.Equal(t, 256, h.Geometry().SectorSize)
	})

	t.Run("Accepts800Sectors", func(t *testing.T) {
		memfs := fs.NewMemFS("flash")
		require.NoError(t, Create(memfs, "/a.ssd", 800, false))
		h, err := Open(memfs, "/a.ssd", true)
		require.NoError(t, err)
		defer h.Close()
		assert.Equal(t, uint32(800), h.Geometry().SectorCount)
	})

	t.Run("RejectsOtherSectorCounts", func(t *testing.T) {
		memfs := fs.NewMemFS("flash")
		assert.ErrorIs(t, Create(memfs, "/a.ssd", 500, false), image.ErrInvalidGeometry)
	})

	t.Run("RoundTripReadWrite", func(t *testing.T) {
		memfs := fs.NewMemFS("flash")
		require.NoError(t, Create(memfs, "/a.ssd", 400, false))
		h, err := Open(memfs, "/a.ssd", true)
		require.NoError(t, err)
		defer h.Close()

		pattern := make([]byte, 256)
		for i := range pattern {
			pattern[i] = byte(i)
		}
		n, err := h.WriteSector(10, pattern)
		require.NoError(t, err)
		assert.Equal(t, 256, n)

		dst := make([]byte, 256)
		n, err = h.ReadSector(10, dst)
		require.NoError(t, err)
		assert.Equal(t, 256, n)
		assert.Equal(t, pattern, dst)

		other := make([]byte, 256)
		h.ReadSector(11, other)
		for _, b := range other {
			assert.Equal(t, byte(0), b)
		}
	})
}
