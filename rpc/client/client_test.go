//go:build !windows

package client

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/csIPC/rpc/common"
	"github.com/ValentinKolb/csIPC/rpc/connection"
	"github.com/ValentinKolb/csIPC/rpc/dispatch"
	"github.com/ValentinKolb/csIPC/rpc/proto"
	"github.com/ValentinKolb/csIPC/rpc/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func endpoint(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "csipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "main.sock")
}

// startServer runs a server that answers ConnectStatus and echoes AuthViaIndex
// indexes as results. ClientList requests are never answered.
func startServer(t *testing.T, ep string) *server.Server {
	t.Helper()
	router := dispatch.NewRouter()
	dispatch.Handle(router, func(c *connection.Connection, _ *proto.ConnectStatusRequest) {
		_ = c.Send(&proto.ConnectStatusResponse{Status: proto.StatusConnected})
	})
	dispatch.Handle(router, func(c *connection.Connection, req *proto.AuthViaIndexRequest) {
		_ = c.Send(&proto.AuthViaIndexResponse{AuthResult: uint8(req.Index)})
	})

	s, err := server.NewServer(common.ServerConfig{Name: "main", Endpoint: ep, IOLoops: 2}, server.Options{Router: router})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

func dial(t *testing.T, ep string, opts Options) *Client {
	t.Helper()
	c, err := Dial(context.Background(), common.ClientConfig{Endpoint: ep, TimeoutSecond: 2, RetryCount: 3}, opts)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCall(t *testing.T) {
	ep := endpoint(t)
	startServer(t, ep)
	c := dial(t, ep, Options{})

	resp, err := CallAs[*proto.ConnectStatusResponse](context.Background(), c, &proto.ConnectStatusRequest{})
	require.NoError(t, err)
	assert.Equal(t, proto.StatusConnected, resp.Status)
}

func TestCallAsRejectsUnexpectedType(t *testing.T) {
	ep := endpoint(t)
	startServer(t, ep)
	c := dial(t, ep, Options{})

	_, err := CallAs[*proto.ClientListResponse](context.Background(), c, &proto.ConnectStatusRequest{})
	assert.ErrorContains(t, err, "unexpected response")
}

func TestConcurrentCallsOfOneCodeKeepOrder(t *testing.T) {
	ep := endpoint(t)
	startServer(t, ep)
	c := dial(t, ep, Options{})

	// sequential calls check the pairing, concurrent ones the bookkeeping
	for i := range 10 {
		resp, err := CallAs[*proto.AuthViaIndexResponse](context.Background(), c, &proto.AuthViaIndexRequest{Index: uint32(i)})
		require.NoError(t, err)
		assert.Equal(t, uint8(i), resp.AuthResult)
	}

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Call(context.Background(), &proto.AuthViaIndexRequest{Index: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestCallTimeout(t *testing.T) {
	ep := endpoint(t)
	startServer(t, ep)
	c := dial(t, ep, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Call(ctx, &proto.ClientListRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the connection is still usable
	_, err = c.Call(context.Background(), &proto.ConnectStatusRequest{})
	assert.NoError(t, err)
}

func TestCallRejectsNonRequests(t *testing.T) {
	ep := endpoint(t)
	startServer(t, ep)
	c := dial(t, ep, Options{})

	_, err := c.Call(context.Background(), &proto.DIASStatusNotify{})
	assert.Error(t, err)
}

func TestNotifiesReachRouter(t *testing.T) {
	ep := endpoint(t)
	s := startServer(t, ep)

	received := make(chan *proto.UpdateSystemInfoNotify, 1)
	router := dispatch.NewRouter()
	dispatch.Handle(router, func(_ *connection.Connection, msg *proto.UpdateSystemInfoNotify) {
		received <- msg
	})
	dial(t, ep, Options{Router: router})

	require.Eventually(t, func() bool {
		for _, name := range s.ConnectionNames() {
			if conn, ok := s.Connection(name); ok && conn.Connected() {
				return true
			}
		}
		return false
	}, waitFor, time.Millisecond)

	msg := &proto.UpdateSystemInfoNotify{IP: "127.0.0.1", Port: 7, ServiceVersion: "1.2.3"}
	require.NoError(t, s.Broadcast(msg))
	select {
	case got := <-received:
		assert.Equal(t, msg, got)
	case <-time.After(waitFor):
		t.Fatal("notify not routed")
	}
}

func TestServerStopClosesClient(t *testing.T) {
	ep := endpoint(t)
	s := startServer(t, ep)
	c := dial(t, ep, Options{})

	s.Stop()
	select {
	case <-c.Done():
	case <-time.After(waitFor):
		t.Fatal("client not closed")
	}

	_, err := c.Call(context.Background(), &proto.ConnectStatusRequest{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Send(&proto.ConnectStatusRequest{}), ErrClosed)
	assert.NoError(t, c.Close())
}

func TestCallAfterClose(t *testing.T) {
	ep := endpoint(t)
	startServer(t, ep)
	c := dial(t, ep, Options{})
	require.NoError(t, c.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := c.Call(ctx, &proto.ConnectStatusRequest{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Less(t, time.Since(start), 300*time.Millisecond)
	assert.ErrorIs(t, c.Send(&proto.ConnectStatusRequest{}), ErrClosed)
}

func TestDialWithoutServer(t *testing.T) {
	_, err := Dial(context.Background(), common.ClientConfig{Endpoint: endpoint(t), RetryCount: 2}, Options{})
	assert.Error(t, err)

	_, err = Dial(context.Background(), common.ClientConfig{}, Options{})
	assert.Error(t, err)
}
