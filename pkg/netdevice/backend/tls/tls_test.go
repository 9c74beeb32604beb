package tls

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// selfSignedListener returns a TLS listener on 127.0.0.1 backed by a
// freshly generated, self-signed certificate for "127.0.0.1".
func selfSignedListener(t *testing.T) net.Listener {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	require.NoError(t, err)
	return ln
}

func pollUntil(t *testing.T, b *Backend, want backend.State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b.Poll(context.Background())
		b.mu.Lock()
		state := b.state
		b.mu.Unlock()
		if state == want || state == backend.Error {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for state", want)
}

func TestOpenHandshakesAsynchronouslyWithInsecureSkipVerify(t *testing.T) {
	ln := selfSignedListener(t)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	b := New()
	err := b.Open(context.Background(), backend.OpenOptions{
		URL:      "tls://" + ln.Addr().String(),
		RawQuery: "insecure=1",
	})
	require.NoError(t, err)

	b.mu.Lock()
	state := b.state
	b.mu.Unlock()
	assert.Equal(t, backend.Connecting, state, "Open must return before the handshake completes")

	pollUntil(t, b, backend.Connected)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, backend.Connected, b.state)
}

func TestOpenFailsHandshakeWithoutInsecureSkipVerify(t *testing.T) {
	ln := selfSignedListener(t)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	b := New()
	err := b.Open(context.Background(), backend.OpenOptions{URL: "tls://" + ln.Addr().String()})
	require.NoError(t, err)

	pollUntil(t, b, backend.Error)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, backend.Error, b.state)
	require.Error(t, b.lastErr)
}

func TestReadWriteBodyNotReadyWhileConnecting(t *testing.T) {
	b := New()
	b.state = backend.Connecting

	_, _, err := b.ReadBody(context.Background(), 0, make([]byte, 4))
	assert.ErrorIs(t, err, backend.ErrNotReady)

	_, err = b.WriteBody(context.Background(), 0, []byte("x"))
	assert.ErrorIs(t, err, backend.ErrNotReady)
}

func TestCloseCancelsInProgressConnect(t *testing.T) {
	b := New()
	// 10.255.255.1 is expected to be unreachable/non-routed in this
	// sandbox, so the connect goroutine stays blocked in DialContext
	// until Close cancels it.
	err := b.Open(context.Background(), backend.OpenOptions{
		URL:      "tls://10.255.255.1:1",
		RawQuery: "connect_timeout_ms=60000",
	})
	require.NoError(t, err)

	require.NoError(t, b.Close())

	select {
	case <-b.connectDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not unblock the connect goroutine")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, backend.Idle, b.state)
}

func TestDecodeQueryOptionsViaMapstructure(t *testing.T) {
	opts := defaultOptions()
	require.NoError(t, backend.DecodeQuery("insecure=true&connect_timeout_ms=750", &opts))
	assert.True(t, opts.Insecure)
	assert.Equal(t, 750, opts.ConnectTimeoutMS)
}
