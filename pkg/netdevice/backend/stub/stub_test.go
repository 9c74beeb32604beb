package stub

import (
	"context"
	"testing"

	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubBackend(t *testing.T) {
	t.Run("ReadBodyEnforcesSequentialOffset", func(t *testing.T) {
		b := New()
		b.ResponseBody = []byte("hello world")
		require.NoError(t, b.Open(context.Background(), backend.OpenOptions{}))

		dst := make([]byte, 5)
		n, eof, err := b.ReadBody(context.Background(), 0, dst)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.False(t, eof)
		assert.Equal(t, "hello", string(dst))

		_, _, err = b.ReadBody(context.Background(), 0, dst)
		assert.ErrorIs(t, err, backend.ErrSequence)

		n, eof, err = b.ReadBody(context.Background(), 5, dst)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.False(t, eof)

		n, eof, err = b.ReadBody(context.Background(), 10, dst)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.False(t, eof)

		n, eof, err = b.ReadBody(context.Background(), 11, dst)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.True(t, eof)
	})

	t.Run("WriteBodyAccumulates", func(t *testing.T) {
		b := New()
		n, err := b.WriteBody(context.Background(), 0, []byte("abc"))
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		_, err = b.WriteBody(context.Background(), 3, []byte("def"))
		require.NoError(t, err)
		assert.Equal(t, "abcdef", string(b.WrittenBody))
	})

	t.Run("CloseMarksClosed", func(t *testing.T) {
		b := New()
		require.NoError(t, b.Close())
		assert.True(t, b.Closed)
	})
}
