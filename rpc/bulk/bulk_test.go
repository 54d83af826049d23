package bulk

import (
	"bytes"
	"context"
	"errors"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

// enginePair returns two connected engines of the given flavour
func enginePair(t *testing.T, flavour string) (IEngine, IEngine) {
	t.Helper()
	switch flavour {
	case "local":
		a, b := NewLocalEngine(), NewLocalEngine()
		t.Cleanup(func() { _ = a.Close(); _ = b.Close() })
		return a, b
	case "tcp":
		a, err := NewTCPEngine("127.0.0.1:0", "")
		require.NoError(t, err)
		b, err := NewTCPEngine("127.0.0.1:0", "")
		require.NoError(t, err)
		t.Cleanup(func() { _ = a.Close(); _ = b.Close() })
		return a, b
	}
	t.Fatalf("unknown flavour %s", flavour)
	return nil, nil
}

var flavours = []string{"local", "tcp"}

func TestDescriptorToken(t *testing.T) {
	d := Descriptor{Addr: "tcp://10.0.0.1:9001", Region: 17, Length: 4096, Mode: WriteOnly}

	parsed, err := ParseDescriptor(d.Token())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	for _, bad := range []string{"", "%%%", "AAAA", Descriptor{Addr: "x"}.Token()} {
		_, err := ParseDescriptor(bad)
		assert.True(t, errors.Is(err, store.ErrMalformedEnvelope), "token %q: %v", bad, err)
	}
}

func TestPushPull(t *testing.T) {
	for _, flavour := range flavours {
		t.Run(flavour, func(t *testing.T) {
			client, server := enginePair(t, flavour)
			ctx := context.Background()

			// client exports a source buffer, server pulls it
			src := []byte("hello bulk transfer")
			srcRegion, err := client.Register(src, ReadOnly)
			require.NoError(t, err)

			dst := make([]byte, len(src))
			dstRegion, err := server.Register(dst, ReadWrite)
			require.NoError(t, err)

			require.NoError(t, server.Transfer(ctx, Pull, srcRegion.Descriptor(), 0, dstRegion, 0, uint64(len(src))))
			assert.Equal(t, src, dst)

			// client exports a sink buffer, server pushes into it at an offset
			sink := make([]byte, 10)
			sinkRegion, err := client.Register(sink, WriteOnly)
			require.NoError(t, err)

			require.NoError(t, server.Transfer(ctx, Push, sinkRegion.Descriptor(), 2, dstRegion, 0, 5))
			assert.Equal(t, []byte{0, 0, 'h', 'e', 'l', 'l', 'o', 0, 0, 0}, sink)
		})
	}
}

func TestTransferViaToken(t *testing.T) {
	client, server := enginePair(t, "tcp")

	payload := bytes.Repeat([]byte("0123456789"), 100_000)
	region, err := client.Register(payload, ReadOnly)
	require.NoError(t, err)

	desc, err := ParseDescriptor(region.Descriptor().Token())
	require.NoError(t, err)

	buf := make([]byte, len(payload))
	local, err := server.Register(buf, ReadWrite)
	require.NoError(t, err)
	defer server.Deregister(local)

	require.NoError(t, server.Transfer(context.Background(), Pull, desc, 0, local, 0, desc.Length))
	assert.True(t, bytes.Equal(payload, buf))
}

func TestTransferFailures(t *testing.T) {
	for _, flavour := range flavours {
		t.Run(flavour, func(t *testing.T) {
			client, server := enginePair(t, flavour)
			ctx := context.Background()

			ro, err := client.Register(make([]byte, 8), ReadOnly)
			require.NoError(t, err)
			wo, err := client.Register(make([]byte, 8), WriteOnly)
			require.NoError(t, err)
			local, err := server.Register(make([]byte, 16), ReadWrite)
			require.NoError(t, err)

			cases := map[string]func() error{
				"push into read only": func() error {
					return server.Transfer(ctx, Push, ro.Descriptor(), 0, local, 0, 8)
				},
				"pull from write only": func() error {
					return server.Transfer(ctx, Pull, wo.Descriptor(), 0, local, 0, 8)
				},
				"remote out of bounds": func() error {
					return server.Transfer(ctx, Pull, ro.Descriptor(), 4, local, 0, 8)
				},
				"local out of bounds": func() error {
					return server.Transfer(ctx, Pull, ro.Descriptor(), 0, local, 12, 8)
				},
				"lying descriptor": func() error {
					d := ro.Descriptor()
					d.Length = 1024
					return server.Transfer(ctx, Pull, d, 0, local, 0, 16)
				},
				"unknown peer": func() error {
					d := ro.Descriptor()
					d.Addr = "local://does-not-exist"
					return server.Transfer(ctx, Pull, d, 0, local, 0, 8)
				},
				"deregistered remote": func() error {
					r, err := client.Register(make([]byte, 8), ReadOnly)
					require.NoError(t, err)
					client.Deregister(r)
					return server.Transfer(ctx, Pull, r.Descriptor(), 0, local, 0, 8)
				},
			}

			for name, fn := range cases {
				err := fn()
				assert.True(t, errors.Is(err, store.ErrTransferFailed), "%s: %v", name, err)
			}
		})
	}
}

func TestTransferDeadline(t *testing.T) {
	client, server := enginePair(t, "local")
	src, err := client.Register(make([]byte, 8), ReadOnly)
	require.NoError(t, err)
	dst, err := server.Register(make([]byte, 8), ReadWrite)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	err = server.Transfer(ctx, Pull, src.Descriptor(), 0, dst, 0, 8)
	assert.True(t, errors.Is(err, store.ErrTimeout), "got %v", err)
}

func TestLoopback(t *testing.T) {
	e, err := NewTCPEngine("127.0.0.1:0", "")
	require.NoError(t, err)
	defer e.Close()

	src, err := e.Register([]byte("abc"), ReadOnly)
	require.NoError(t, err)
	dst, err := e.Register(make([]byte, 3), ReadWrite)
	require.NoError(t, err)

	require.NoError(t, e.Transfer(context.Background(), Pull, src.Descriptor(), 0, dst, 0, 3))
	assert.Equal(t, []byte("abc"), dst.Bytes())
}

func TestConcurrentTransfers(t *testing.T) {
	client, server := enginePair(t, "tcp")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte(i)}, 4096+i)
			src, err := client.Register(payload, ReadOnly)
			if !assert.NoError(t, err) {
				return
			}
			defer client.Deregister(src)

			buf := make([]byte, len(payload))
			dst, err := server.Register(buf, ReadWrite)
			if !assert.NoError(t, err) {
				return
			}
			defer server.Deregister(dst)

			if assert.NoError(t, server.Transfer(context.Background(), Pull, src.Descriptor(), 0, dst, 0, uint64(len(payload)))) {
				assert.Equal(t, payload, buf)
			}
		}(i)
	}
	wg.Wait()
}

func TestPushVisibleAfterDeregister(t *testing.T) {
	client, server := enginePair(t, "tcp")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buf := make([]byte, 8)
			dst, err := client.Register(buf, WriteOnly)
			if !assert.NoError(t, err) {
				return
			}
			payload := bytes.Repeat([]byte{byte(i)}, 8)
			src, err := server.Register(payload, ReadOnly)
			if !assert.NoError(t, err) {
				client.Deregister(dst)
				return
			}
			err = server.Transfer(context.Background(), Push, dst.Descriptor(), 0, src, 0, 8)
			server.Deregister(src)
			client.Deregister(dst)
			if assert.NoError(t, err) {
				assert.Equal(t, payload, buf)
			}
		}(i)
	}
	wg.Wait()
}

func TestClosedEngine(t *testing.T) {
	e := NewLocalEngine()
	require.NoError(t, e.Close())
	_, err := e.Register(make([]byte, 1), ReadOnly)
	assert.True(t, errors.Is(err, store.ErrTransferFailed))
	assert.NoError(t, e.Close())
}
