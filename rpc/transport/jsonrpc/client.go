package jsonrpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/gorilla/rpc/v2/json2"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

type jsonRPCClientTransport struct {
	urls          []string
	client        *http.Client
	counter       uint32
	retryCount    int
	timeoutSecond int
}

// NewJSONRPCClientTransport creates a client transport speaking JSON-RPC 2.0 over http
func NewJSONRPCClientTransport() transport.IRPCClientTransport {
	return &jsonRPCClientTransport{}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *jsonRPCClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	t.urls = make([]string, len(config.Endpoints))
	for i, endpoint := range config.Endpoints {
		if !strings.Contains(endpoint, "://") {
			endpoint = "http://" + endpoint
		}
		t.urls[i] = strings.TrimSuffix(endpoint, "/") + path
	}

	t.client = &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: max(10, config.ConnectionsPerEndpoint),
			IdleConnTimeout:     90 * time.Second,
		},
	}
	t.retryCount = max(1, config.RetryCount)
	t.timeoutSecond = config.TimeoutSecond
	return nil
}

func (t *jsonRPCClientTransport) Send(ctx context.Context, shardId uint64, req []byte) ([]byte, error) {
	if t.client == nil {
		return nil, transport.ErrClosed
	}

	ctx, cancel := transport.SendContext(ctx, t.timeoutSecond)
	defer cancel()

	body, err := json2.EncodeClientRequest(callMethod, &CallArgs{ShardID: shardId, Payload: req})
	if err != nil {
		return nil, fmt.Errorf("failed to encode json-rpc request: %w", err)
	}

	idx := atomic.AddUint32(&t.counter, 1) % uint32(len(t.urls))

	var resp []byte
	for i := 0; i < t.retryCount; i++ {
		resp, err = t.call(ctx, t.urls[idx], body)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, transport.CtxErr(ctx)
		}
	}
	return nil, err
}

func (t *jsonRPCClientTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	t.client = nil
	t.urls = nil
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (t *jsonRPCClientTransport) call(ctx context.Context, url string, body []byte) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := t.client.Do(request)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, transport.ErrTimeout
		}
		return nil, err
	}
	defer func() {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("json-rpc error: %s", response.Status)
	}

	var reply CallReply
	if err := json2.DecodeClientResponse(response.Body, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode json-rpc response: %w", err)
	}
	return reply.Payload, nil
}
