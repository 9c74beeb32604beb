// Package httpb implements backend.Backend over net/http. A GET's response
// body streams into a bounded ring as a background worker goroutine reads
// it; a POST/PUT body is buffered from WriteBody calls and the request
// isn't dispatched until a zero-length write commits it (the wire protocol's
// "deferred body" convention for streamed uploads of unknown length).
package httpb

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend"
	"github.com/fujinet-nio/fujinet-nio/pkg/ring"
)

const streamBufSize = 8 * 1024

// Options are the http(s):// query-string parameters understood here.
type Options struct {
	TimeoutMS int `mapstructure:"timeout_ms"`
}

// Backend is a single HTTP(S) request/response session.
type Backend struct {
	client *http.Client
	opts   OpenState

	mu       sync.Mutex
	uploaded bytes.Buffer
	cursor   uint32

	workerDone chan struct{} // closed exactly once, when the worker exits
	started    bool
	stopped    bool               // set by Close; Poll finishes cleanup once workerDone fires
	cancel     context.CancelFunc // stops the in-flight request when Close is called

	status        int
	hasLength     bool
	contentLength int64
	headers       map[string]string
	stream        *ring.Buffer
	eof           bool
	workErr       error

	state backend.State
}

// OpenState pins the request shape decided at Open time.
type OpenState struct {
	Method         string
	URL            string
	RequestHeaders map[string]string
	StreamedBody   bool
	BodyLenHint    uint32
	Allowlist      []string
}

var _ backend.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{
		client:     &http.Client{},
		state:      backend.Idle,
		workerDone: make(chan struct{}),
	}
}

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{
		IsStreaming:             true,
		RequiresSequentialRead:  true,
		RequiresSequentialWrite: false,
	}
}

// Open records the request shape. A GET/HEAD/DELETE with no body is
// dispatched to the worker immediately; a method that carries a body
// waits for WriteBody to commit it first.
func (b *Backend) Open(ctx context.Context, opts backend.OpenOptions) error {
	queryOpts := Options{TimeoutMS: 30000}
	_ = backend.DecodeQuery(opts.RawQuery, &queryOpts)
	b.client.Timeout = time.Duration(queryOpts.TimeoutMS) * time.Millisecond
	b.stream = ring.New(streamBufSize)

	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = "GET"
	}
	b.opts = OpenState{
		Method:         method,
		URL:            opts.URL,
		RequestHeaders: opts.RequestHeaders,
		StreamedBody:   opts.StreamedBody,
		BodyLenHint:    opts.BodyLenHint,
		Allowlist:      opts.ResponseHeaderAllowlist,
	}

	if method == "GET" || method == "HEAD" || method == "DELETE" {
		b.dispatch(ctx, nil)
	} else {
		b.state = backend.Idle // waiting for WriteBody to commit the body
	}
	return nil
}

// dispatch launches the background worker that performs the actual HTTP
// round trip and streams the response into b.stream. The worker's
// request is bound to a cancellable context so Close can stop it without
// waiting for the round trip to finish on its own.
func (b *Backend) dispatch(outerCtx context.Context, body []byte) {
	b.state = backend.Connecting
	b.started = true
	b.workerDone = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	go func() {
		defer close(b.workerDone)

		var reqBody io.Reader
		if body != nil {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, b.opts.Method, b.opts.URL, reqBody)
		if err != nil {
			b.mu.Lock()
			b.workErr = err
			b.mu.Unlock()
			return
		}
		for k, v := range b.opts.RequestHeaders {
			req.Header.Set(k, v)
		}

		resp, err := b.client.Do(req)
		if err != nil {
			b.mu.Lock()
			b.workErr = err
			b.mu.Unlock()
			return
		}
		defer resp.Body.Close()

		b.mu.Lock()
		b.status = resp.StatusCode
		b.hasLength = resp.ContentLength >= 0
		if b.hasLength {
			b.contentLength = resp.ContentLength
		}
		b.headers = allowlistedHeaders(resp.Header, b.opts.Allowlist)
		b.mu.Unlock()

		buf := make([]byte, 4096)
		for {
			n, rerr := resp.Body.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				for len(chunk) > 0 {
					b.mu.Lock()
					written := b.stream.Write(chunk)
					b.mu.Unlock()
					chunk = chunk[written:]
					if written == 0 {
						time.Sleep(time.Millisecond)
					}
				}
			}
			if rerr != nil {
				break
			}
		}
		b.mu.Lock()
		b.eof = true
		b.mu.Unlock()
	}()
}

// Poll observes worker completion; the worker itself needs no pumping
// since it runs to completion on its own goroutine. If Close was called
// while the worker was still running, the actual state cleanup happens
// here once workerDone fires rather than inline in Close.
func (b *Backend) Poll(ctx context.Context) {
	if !b.started {
		return
	}
	select {
	case <-b.workerDone:
		b.mu.Lock()
		switch {
		case b.stopped:
			b.state = backend.Idle
		case b.workErr != nil:
			b.state = backend.Error
		case b.state != backend.PeerClosed:
			b.state = backend.Connected
		}
		b.mu.Unlock()
	default:
	}
}

func (b *Backend) ReadBody(ctx context.Context, offset uint32, dst []byte) (int, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset != b.cursor {
		return 0, false, backend.ErrSequence
	}
	if b.workErr != nil {
		return 0, false, b.workErr
	}
	n := b.stream.Read(dst)
	if n > 0 {
		b.cursor += uint32(n)
		return n, false, nil
	}
	if b.eof {
		return 0, true, nil
	}
	return 0, false, backend.ErrNotReady
}

// WriteBody buffers request-body bytes. A zero-length write at the
// expected offset commits the body and dispatches the request — the only
// way a POST/PUT with an unknown (streamed) length is ever sent.
func (b *Backend) WriteBody(ctx context.Context, offset uint32, data []byte) (int, error) {
	b.mu.Lock()
	if offset != b.cursor {
		b.mu.Unlock()
		return 0, backend.ErrSequence
	}
	if len(data) == 0 {
		body := append([]byte(nil), b.uploaded.Bytes()...)
		b.mu.Unlock()
		if !b.started {
			b.dispatch(ctx, body)
		}
		return 0, nil
	}
	n, _ := b.uploaded.Write(data)
	b.cursor += uint32(n)
	b.mu.Unlock()
	return n, nil
}

func (b *Backend) Info(ctx context.Context, maxHeaderBytes uint16) (backend.Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	info := backend.Info{State: b.state, Headers: b.headers}
	if b.status != 0 {
		info.HasStatus = true
		info.HTTPStatus = uint16(b.status)
	}
	if b.hasLength {
		info.HasLength = true
		info.Length = uint64(b.contentLength)
	}
	if b.workErr != nil {
		info.LastErr = b.workErr.Error()
	}
	return info, nil
}

// Close stops the request if the worker is still running. Poll performs
// the actual state cleanup once workerDone is observed, so Close doesn't
// need to wait for the round trip to unwind.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.stopped = true
	cancel := b.cancel
	running := b.started
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !running {
		b.state = backend.Idle
	}
	return nil
}

func allowlistedHeaders(h http.Header, allow []string) map[string]string {
	if len(allow) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(allow))
	for _, name := range allow {
		if v := h.Get(name); v != "" {
			out[strings.ToLower(name)] = v
		}
	}
	return out
}
