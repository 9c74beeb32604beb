package events

import (
	"bytes"
	"testing"
	"time"

	"github.com/fujinet-nio/fujinet-nio/cmd/fujinetd/fujiapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTailStopsAfterCount(t *testing.T) {
	app, err := fujiapp.Bootstrap("")
	require.NoError(t, err)

	cmd := New(func() *fujiapp.App { return app })
	cmd.SetArgs([]string{"tail", "--count=1", "--interval=1ms"})
	var out bytes.Buffer
	cmd.SetOut(&out)

	done := make(chan error, 1)
	go func() { done <- cmd.Execute() }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("tail did not stop after reaching --count")
	}
}
