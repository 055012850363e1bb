package dispatch

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/csIPC/rpc/connection"
	"github.com/ValentinKolb/csIPC/rpc/proto"
	"github.com/ValentinKolb/csIPC/rpc/reactor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConnection returns a connection that is never established, handlers
// only use it for its name
func testConnection(t *testing.T) *connection.Connection {
	t.Helper()
	local, peer := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		peer.Close()
	})
	return connection.New("dispatch#1", reactor.NewLoop("unused"), local, connection.Options{}, connection.Callbacks{
		OnClose: func(*connection.Connection) {},
	})
}

func TestTypedHandler(t *testing.T) {
	r := NewRouter()
	c := testConnection(t)

	var got *proto.AuthViaIndexRequest
	Handle(r, func(_ *connection.Connection, msg *proto.AuthViaIndexRequest) {
		got = msg
	})

	assert.True(t, r.Handles(proto.Kind{Type: proto.TypeRequest, Code: proto.CodeAuthViaIndex}))
	r.Dispatch(c, &proto.AuthViaIndexRequest{Index: 4})
	require.NotNil(t, got)
	assert.Equal(t, uint32(4), got.Index)
}

func TestRequestAndResponseOfSameCodeAreDistinct(t *testing.T) {
	r := NewRouter()
	c := testConnection(t)

	var calls []string
	Handle(r, func(*connection.Connection, *proto.ConnectStatusRequest) { calls = append(calls, "request") })
	Handle(r, func(*connection.Connection, *proto.ConnectStatusResponse) { calls = append(calls, "response") })

	r.Dispatch(c, &proto.ConnectStatusResponse{})
	r.Dispatch(c, &proto.ConnectStatusRequest{})
	assert.Equal(t, []string{"response", "request"}, calls)
}

func TestFallback(t *testing.T) {
	r := NewRouter()
	c := testConnection(t)

	var unhandled []proto.Message
	r.Fallback(func(_ *connection.Connection, msg proto.Message) {
		unhandled = append(unhandled, msg)
	})
	Handle(r, func(*connection.Connection, *proto.DIASStatusNotify) {})

	r.Dispatch(c, &proto.DIASStatusNotify{})
	r.Dispatch(c, &proto.ServiceShutdownNotify{Reason: 1})
	assert.Equal(t, []proto.Message{&proto.ServiceShutdownNotify{Reason: 1}}, unhandled)

	// the default fallback only logs
	assert.NotPanics(t, func() { NewRouter().Dispatch(c, &proto.ClientListRequest{}) })
}

func TestDuplicateHandlerPanics(t *testing.T) {
	r := NewRouter()
	Handle(r, func(*connection.Connection, *proto.ClientListRequest) {})
	assert.Panics(t, func() {
		Handle(r, func(*connection.Connection, *proto.ClientListRequest) {})
	})
}

func TestPooledRouter(t *testing.T) {
	r := NewPooledRouter("dispatch-test", 4)
	c := testConnection(t)

	const n = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[uint32]bool{}
	Handle(r, func(_ *connection.Connection, msg *proto.AuthViaIndexRequest) {
		defer wg.Done()
		mu.Lock()
		seen[msg.Index] = true
		mu.Unlock()
	})

	wg.Add(n)
	for i := range n {
		r.Dispatch(c, &proto.AuthViaIndexRequest{Index: uint32(i)})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pooled handlers did not run")
	}
	assert.Len(t, seen, n)
}
