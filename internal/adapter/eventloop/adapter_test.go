package eventloop

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"httpcore/internal/core"
	"httpcore/internal/replay"
	"httpcore/internal/replay/memory"
	"httpcore/internal/wire"
	"httpcore/pkg/errors"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	return cfg
}

type streamRelease chan struct{}

func testHandler(release streamRelease) core.Handler {
	return func(ctx context.Context, req *wire.Request, st core.Streamer) (*wire.Response, error) {
		switch req.Path {
		case "/hello":
			return wire.TextResponse(200, "hello\n"), nil
		case "/fail":
			return nil, errors.NewError(errors.ErrorTypeInternal, "boom")
		case "/stream":
			w, err := st.StartStream()
			if err != nil {
				return nil, err
			}
			go func() {
				w.SendEvent(&core.SSEEvent{ID: "1", Type: "tick", Data: "first"})
				w.SendEvent(&core.SSEEvent{ID: "2", Data: "second"})
				if release != nil {
					<-release
				}
				w.Close()
			}()
			return nil, nil
		default:
			return wire.TextResponse(404, "not found\n"), nil
		}
	}
}

func startAdapter(t *testing.T, cfg *Config, release streamRelease) (*Adapter, string) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	a := New(cfg, testHandler(release), slog.Default())
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Stop(ctx)
	})
	return a, a.Addr().String()
}

func readResponse(t *testing.T, r *bufio.Reader) (status string, headers map[string]string, body string) {
	t.Helper()

	status, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading status line: %v", err)
	}
	status = strings.TrimRight(status, "\r\n")

	headers = make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading header line: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			t.Fatalf("malformed header line %q", line)
		}
		headers[strings.ToLower(name)] = strings.TrimSpace(value)
	}

	n, _ := strconv.Atoi(headers["content-length"])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return status, headers, string(buf)
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { nc.Close() })
	nc.SetDeadline(time.Now().Add(5 * time.Second))
	return nc
}

func TestRequestResponse(t *testing.T) {
	_, addr := startAdapter(t, nil, nil)
	nc := dial(t, addr)
	r := bufio.NewReader(nc)

	fmt.Fprintf(nc, "GET /hello HTTP/1.1\r\nHost: test\r\n\r\n")
	status, headers, body := readResponse(t, r)

	if status != "HTTP/1.1 200 OK" {
		t.Errorf("status = %q", status)
	}
	if body != "hello\n" {
		t.Errorf("body = %q", body)
	}
	if headers["connection"] != "keep-alive" {
		t.Errorf("expected keep-alive, got %q", headers["connection"])
	}
}

func TestKeepAliveReuse(t *testing.T) {
	_, addr := startAdapter(t, nil, nil)
	nc := dial(t, addr)
	r := bufio.NewReader(nc)

	for i := 0; i < 3; i++ {
		fmt.Fprintf(nc, "GET /hello HTTP/1.1\r\nHost: test\r\n\r\n")
		status, _, body := readResponse(t, r)
		if status != "HTTP/1.1 200 OK" || body != "hello\n" {
			t.Fatalf("request %d: status %q body %q", i, status, body)
		}
	}
}

func TestConnectionClose(t *testing.T) {
	_, addr := startAdapter(t, nil, nil)
	nc := dial(t, addr)
	r := bufio.NewReader(nc)

	fmt.Fprintf(nc, "GET /hello HTTP/1.1\r\nHost: test\r\nConnection: close\r\n\r\n")
	_, headers, _ := readResponse(t, r)
	if headers["connection"] != "close" {
		t.Errorf("expected close, got %q", headers["connection"])
	}
	if _, err := r.ReadByte(); err != io.EOF {
		t.Errorf("expected EOF after close, got %v", err)
	}
}

func TestHandlerError(t *testing.T) {
	_, addr := startAdapter(t, nil, nil)
	nc := dial(t, addr)
	r := bufio.NewReader(nc)

	fmt.Fprintf(nc, "GET /fail HTTP/1.1\r\nHost: test\r\n\r\n")
	status, headers, _ := readResponse(t, r)
	if status != "HTTP/1.1 500 Internal Server Error" {
		t.Errorf("status = %q", status)
	}
	if headers["connection"] != "close" {
		t.Errorf("expected close after error, got %q", headers["connection"])
	}
}

func TestMalformedRequest(t *testing.T) {
	_, addr := startAdapter(t, nil, nil)
	nc := dial(t, addr)
	r := bufio.NewReader(nc)

	fmt.Fprintf(nc, "garbage\r\n\r\n")
	status, headers, _ := readResponse(t, r)
	if status != "HTTP/1.1 400 Bad Request" {
		t.Errorf("status = %q", status)
	}
	if headers["connection"] != "close" {
		t.Errorf("expected close after protocol error, got %q", headers["connection"])
	}
	if _, err := r.ReadByte(); err != io.EOF {
		t.Errorf("expected EOF after protocol error, got %v", err)
	}
}

func TestSSEStream(t *testing.T) {
	release := make(streamRelease)
	_, addr := startAdapter(t, nil, release)
	nc := dial(t, addr)
	r := bufio.NewReader(nc)

	fmt.Fprintf(nc, "GET /stream HTTP/1.1\r\nHost: test\r\n\r\n")

	status, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading status line: %v", err)
	}
	if strings.TrimRight(status, "\r\n") != "HTTP/1.1 200 OK" {
		t.Fatalf("status = %q", status)
	}

	var contentType string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading head: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Content-Type: "); ok {
			contentType = v
		}
	}
	if contentType != "text/event-stream" {
		t.Errorf("content type = %q", contentType)
	}

	want := "event: tick\nid: 1\ndata: first\n\nid: 2\ndata: second\n\n"
	got := make([]byte, len(want))
	if _, err := io.ReadFull(r, got); err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if string(got) != want {
		t.Errorf("events = %q, want %q", got, want)
	}

	close(release)
	if _, err := r.ReadByte(); err != io.EOF {
		t.Errorf("expected EOF after stream close, got %v", err)
	}
}

// A reconnecting client with Last-Event-ID is caught up from the store
// before the handler's new events, all through the real socket. The
// window is deliberately large: catching up must not stall the reactor
// or any other connection on its loop.
func TestSSEReplayOnReconnect(t *testing.T) {
	store := memory.NewStore(&replay.Config{Capacity: 256})
	var want bytes.Buffer
	for i := 1; i <= 200; i++ {
		ev := &core.SSEEvent{ID: strconv.Itoa(i), Data: fmt.Sprintf("evt %d", i)}
		if err := store.Append(context.Background(), "/stream", ev); err != nil {
			t.Fatalf("seeding store: %v", err)
		}
		if i > 42 {
			fmt.Fprintf(&want, "id: %d\ndata: evt %d\n\n", i, i)
		}
	}
	want.WriteString("event: tick\nid: 1\ndata: first\n\nid: 2\ndata: second\n\n")

	release := make(streamRelease)
	a := New(testConfig(), testHandler(release), slog.Default()).WithReplay(store)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Stop(ctx)
	})

	nc := dial(t, a.Addr().String())
	r := bufio.NewReader(nc)
	fmt.Fprintf(nc, "GET /stream HTTP/1.1\r\nHost: test\r\nLast-Event-ID: 42\r\n\r\n")

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream head: %v", err)
		}
		if strings.TrimRight(line, "\r\n") == "" {
			break
		}
	}

	got := make([]byte, want.Len())
	if _, err := io.ReadFull(r, got); err != nil {
		t.Fatalf("reading replayed events: %v", err)
	}
	if !bytes.Equal(got, want.Bytes()) {
		t.Errorf("stream = %q\nwant %q", got, want.Bytes())
	}
	close(release)
}

func TestMultipleLoops(t *testing.T) {
	cfg := testConfig()
	cfg.Loops = 4
	_, addr := startAdapter(t, cfg, nil)

	// Concurrent connections land on different reactors and must not
	// interfere.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nc, err := net.Dial("tcp", addr)
			if err != nil {
				t.Errorf("dial failed: %v", err)
				return
			}
			defer nc.Close()
			nc.SetDeadline(time.Now().Add(5 * time.Second))
			r := bufio.NewReader(nc)

			fmt.Fprintf(nc, "GET /hello HTTP/1.1\r\nHost: test\r\n\r\n")
			status, err := r.ReadString('\n')
			if err != nil {
				t.Errorf("reading status: %v", err)
				return
			}
			if strings.TrimRight(status, "\r\n") != "HTTP/1.1 200 OK" {
				t.Errorf("status = %q", status)
			}
		}()
	}
	wg.Wait()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// A handler error returned after the stream started cannot change the
// response anymore, but it must still reach the log.
func TestStreamHandlerErrorLogged(t *testing.T) {
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))

	handler := func(ctx context.Context, req *wire.Request, st core.Streamer) (*wire.Response, error) {
		if _, err := st.StartStream(); err != nil {
			return nil, err
		}
		return nil, errors.NewError(errors.ErrorTypeInternal, "post-stream failure")
	}

	a := New(testConfig(), handler, logger)
	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Stop(ctx)
	})

	nc := dial(t, a.Addr().String())
	fmt.Fprintf(nc, "GET /stream HTTP/1.1\r\nHost: test\r\n\r\n")
	if _, err := bufio.NewReader(nc).ReadString('\n'); err != nil {
		t.Fatalf("reading stream head: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(logs.String(), "post-stream failure") {
		if time.Now().After(deadline) {
			t.Fatal("handler error was not logged")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestActiveConnsAndStop(t *testing.T) {
	a, addr := startAdapter(t, nil, nil)

	nc := dial(t, addr)
	fmt.Fprintf(nc, "GET /hello HTTP/1.1\r\nHost: test\r\n\r\n")
	readResponse(t, bufio.NewReader(nc))

	if got := a.ActiveConns(); got != 1 {
		t.Errorf("expected 1 active connection, got %d", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := a.ActiveConns(); got != 0 {
		t.Errorf("expected 0 active connections after stop, got %d", got)
	}
}
