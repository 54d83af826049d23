package base

import (
	"errors"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"testing"
	"time"
)

// TestReaderSurvivesFilledResponseSlot checks that a response for a request
// whose result slot is already filled does not stall the reader goroutine.
func TestReaderSurvivesFilledResponseSlot(t *testing.T) {
	clientSide, serverSide := net.Pipe()
	defer serverSide.Close()

	c := &clientConnection{
		conn:         clientSide,
		endpoint:     "pipe",
		stopCh:       make(chan struct{}),
		requestChans: xsync.NewMapOf[uint64, chan responseResult](),
	}

	failed := make(chan responseResult, 1)
	c.requestChans.Store(1, failed)
	c.failPending(errors.New("connection lost"))

	waiting := make(chan responseResult, 1)
	c.requestChans.Store(2, waiting)

	done := make(chan struct{})
	go func() {
		c.readResponses()
		close(done)
	}()

	written := make(chan error, 1)
	go func() {
		if err := writeFrame(serverSide, 0, 1, []byte("late")); err != nil {
			written <- err
			return
		}
		written <- writeFrame(serverSide, 0, 2, []byte("pong"))
	}()

	select {
	case res := <-waiting:
		if string(res.data) != "pong" || res.err != nil {
			t.Fatalf("unexpected response %q, %v", res.data, res.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader blocked on a filled response slot")
	}
	if err := <-written; err != nil {
		t.Fatalf("write failed: %v", err)
	}

	res := <-failed
	if res.err == nil {
		t.Fatalf("expected the failure to stay in the slot, got %q", res.data)
	}

	close(c.stopCh)
	_ = clientSide.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not stop")
	}
}
