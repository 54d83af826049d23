package transport_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/http"
	"github.com/ValentinKolb/rKV/rpc/transport/jsonrpc"
	"github.com/ValentinKolb/rKV/rpc/transport/tcp"
	"github.com/ValentinKolb/rKV/rpc/transport/unix"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// echoHandler answers with the shard id followed by the request
func echoHandler(_ context.Context, shardId uint64, req []byte) []byte {
	return append([]byte(fmt.Sprintf("%d:", shardId)), req...)
}

type pair struct {
	name   string
	server func(l net.Listener) transport.IRPCServerTransport
	client func() transport.IRPCClientTransport
	net    string
}

var pairs = []pair{
	{"tcp", tcp.NewTCPServerTransportFromListener, tcp.NewTCPClientTransport, "tcp"},
	{"http", http.NewHttpServerTransportFromListener, http.NewHttpClientTransport, "tcp"},
	{"jsonrpc", jsonrpc.NewJSONRPCServerTransportFromListener, jsonrpc.NewJSONRPCClientTransport, "tcp"},
}

// startServer serves handler on a fresh loopback port and returns the endpoint
func startServer(t *testing.T, p pair, handler transport.ServerHandleFunc) string {
	t.Helper()
	l, err := net.Listen(p.net, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := p.server(l)
	srv.RegisterHandler(handler)

	done := make(chan error, 1)
	go func() { done <- srv.Listen(common.DefaultServerConfig()) }()

	t.Cleanup(func() {
		if err := srv.Close(); err != nil {
			t.Logf("close: %v", err)
		}
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("listen returned %v after close", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("listen did not return after close")
		}
	})
	return l.Addr().String()
}

func connect(t *testing.T, p pair, endpoint string, timeoutSecond int) transport.IRPCClientTransport {
	t.Helper()
	cfg := common.DefaultClientConfig(endpoint)
	cfg.TimeoutSecond = timeoutSecond
	c := p.client()
	if err := c.Connect(cfg); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestEcho(t *testing.T) {
	for _, p := range pairs {
		t.Run(p.name, func(t *testing.T) {
			c := connect(t, p, startServer(t, p, echoHandler), 5)

			resp, err := c.Send(context.Background(), 7, []byte("hello"))
			if err != nil {
				t.Fatalf("send: %v", err)
			}
			if string(resp) != "7:hello" {
				t.Errorf("got %q, want %q", resp, "7:hello")
			}

			// empty payloads are valid frames
			resp, err = c.Send(context.Background(), 1, nil)
			if err != nil {
				t.Fatalf("send empty: %v", err)
			}
			if string(resp) != "1:" {
				t.Errorf("got %q, want %q", resp, "1:")
			}
		})
	}
}

func TestConcurrentRequests(t *testing.T) {
	for _, p := range pairs {
		t.Run(p.name, func(t *testing.T) {
			c := connect(t, p, startServer(t, p, echoHandler), 5)

			var wg sync.WaitGroup
			errs := make(chan error, 50)
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					payload := bytes.Repeat([]byte{byte(i)}, 1000+i)
					resp, err := c.Send(context.Background(), uint64(i), payload)
					if err != nil {
						errs <- err
						return
					}
					want := append([]byte(fmt.Sprintf("%d:", i)), payload...)
					if !bytes.Equal(resp, want) {
						errs <- fmt.Errorf("request %d got a foreign response", i)
					}
				}(i)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				t.Error(err)
			}
		})
	}
}

func TestLargePayload(t *testing.T) {
	p := pairs[0]
	c := connect(t, p, startServer(t, p, func(_ context.Context, _ uint64, req []byte) []byte {
		return bytes.Clone(req)
	}), 10)

	// larger than the pooled server buffer
	payload := bytes.Repeat([]byte("x"), 2*1024*1024)
	resp, err := c.Send(context.Background(), 0, payload)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !bytes.Equal(resp, payload) {
		t.Errorf("payload corrupted (len %d)", len(resp))
	}
}

func TestTimeout(t *testing.T) {
	slow := func(ctx context.Context, _ uint64, req []byte) []byte {
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
		}
		return req
	}

	for _, p := range pairs {
		t.Run(p.name, func(t *testing.T) {
			c := connect(t, p, startServer(t, p, slow), 0)

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			start := time.Now()
			_, err := c.Send(ctx, 0, []byte("x"))
			if !errors.Is(err, transport.ErrTimeout) {
				t.Fatalf("expected ErrTimeout, got %v", err)
			}
			if time.Since(start) > time.Second {
				t.Errorf("send did not respect the deadline (took %s)", time.Since(start))
			}
		})
	}
}

func TestSendAfterClose(t *testing.T) {
	for _, p := range pairs {
		t.Run(p.name, func(t *testing.T) {
			c := connect(t, p, startServer(t, p, echoHandler), 5)
			if err := c.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}
			if _, err := c.Send(context.Background(), 0, []byte("x")); err == nil {
				t.Errorf("expected an error after close")
			}
		})
	}
}

func TestConnectNoEndpoints(t *testing.T) {
	for _, p := range pairs {
		if err := p.client().Connect(common.ClientConfig{}); err == nil {
			t.Errorf("%s: expected an error without endpoints", p.name)
		}
	}
}

func TestUnixEcho(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "rkv.sock")

	srv := unix.NewUnixServerTransport()
	srv.RegisterHandler(echoHandler)
	cfg := common.DefaultServerConfig()
	cfg.Endpoint = "unix://" + socket

	done := make(chan error, 1)
	go func() { done <- srv.Listen(cfg) }()
	defer func() {
		_ = srv.Close()
		<-done
	}()

	c := unix.NewUnixClientTransport()
	var err error
	for i := 0; i < 50; i++ {
		if err = c.Connect(common.DefaultClientConfig(socket)); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	resp, err := c.Send(context.Background(), 3, []byte("abc"))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if string(resp) != "3:abc" {
		t.Errorf("got %q", resp)
	}
}
