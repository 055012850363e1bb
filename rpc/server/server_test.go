//go:build !windows

package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/csIPC/lib/buffer"
	"github.com/ValentinKolb/csIPC/rpc/common"
	"github.com/ValentinKolb/csIPC/rpc/connection"
	"github.com/ValentinKolb/csIPC/rpc/dispatch"
	"github.com/ValentinKolb/csIPC/rpc/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

func startServer(t *testing.T, ioLoops int, opts Options) *Server {
	t.Helper()
	dir, err := os.MkdirTemp("", "csipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := NewServer(common.ServerConfig{
		Name:     "main",
		Endpoint: filepath.Join(dir, "main.sock"),
		IOLoops:  ioLoops,
	}, opts)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

// peer is the raw client side of a server connection
type peer struct {
	conn  net.Conn
	buf   *buffer.ByteBuffer
	codec *proto.Codec
}

func dial(t *testing.T, s *Server) *peer {
	t.Helper()
	conn, err := net.Dial("unix", s.Endpoint())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &peer{conn: conn, buf: buffer.New(), codec: proto.NewCodec(0)}
}

func (p *peer) send(t *testing.T, msg proto.Message) {
	t.Helper()
	frame, err := p.codec.EncodeBytes(msg)
	require.NoError(t, err)
	_, err = p.conn.Write(frame)
	require.NoError(t, err)
}

func (p *peer) next(t *testing.T) proto.Message {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(waitFor)))
	chunk := make([]byte, 512)
	for {
		msg, frameLen, err := p.codec.Decode(p.buf)
		if err == nil {
			p.buf.Retrieve(frameLen)
			return msg
		}
		require.ErrorIs(t, err, proto.ErrNeedMoreData)
		n, err := p.conn.Read(chunk)
		require.NoError(t, err)
		p.buf.Append(chunk[:n])
	}
}

// expectEOF asserts that the server closed the peer's connection
func (p *peer) expectEOF(t *testing.T) {
	t.Helper()
	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, err := p.conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func waitLen(t *testing.T, s *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Len() == n }, waitFor, time.Millisecond,
		"expected %d connections, have %d", n, s.Len())
}

// waitConnected waits until n connections are registered and established.
// Broadcasts skip connections that are still connecting.
func waitConnected(t *testing.T, s *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		if s.Len() != n {
			return false
		}
		for _, name := range s.ConnectionNames() {
			if c, ok := s.Connection(name); !ok || !c.Connected() {
				return false
			}
		}
		return true
	}, waitFor, time.Millisecond)
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestAcceptRegistersConnections(t *testing.T) {
	for _, ioLoops := range []int{0, 1, 3} {
		t.Run(fmt.Sprintf("ioLoops=%d", ioLoops), func(t *testing.T) {
			s := startServer(t, ioLoops, Options{})
			dial(t, s)
			dial(t, s)
			waitLen(t, s, 2)

			names := s.ConnectionNames()
			require.Len(t, names, 2)
			for _, name := range names {
				assert.True(t, strings.HasPrefix(name, "main#"), name)
				c, ok := s.Connection(name)
				require.True(t, ok)
				assert.Eventually(t, c.Connected, waitFor, time.Millisecond)
			}
			assert.NotEqual(t, names[0], names[1])
			assert.Equal(t, uint64(2), s.Metrics().ConnectionsAccepted.Get())
		})
	}
}

func TestPeerDisconnectRemovesConnection(t *testing.T) {
	closed := make(chan string, 1)
	s := startServer(t, 2, Options{
		OnClose: func(c *connection.Connection) { closed <- c.Name() },
	})

	p := dial(t, s)
	waitLen(t, s, 1)
	name := s.ConnectionNames()[0]

	require.NoError(t, p.conn.Close())
	select {
	case got := <-closed:
		assert.Equal(t, name, got)
	case <-time.After(waitFor):
		t.Fatal("OnClose did not fire")
	}
	assert.Zero(t, s.Len())
	assert.Equal(t, uint64(1), s.Metrics().ConnectionsClosed.Get())
	assert.ErrorIs(t, s.Send(name, &proto.ConnectStatusRequest{}), ErrUnknownConnection)
}

func TestBroadcastFanOut(t *testing.T) {
	s := startServer(t, 2, Options{})

	peers := []*peer{dial(t, s), dial(t, s), dial(t, s)}
	waitConnected(t, s, 3)

	msg := &proto.UpdateSystemInfoNotify{IP: "127.0.0.1", Port: 1, ServiceVersion: "2.0"}
	require.NoError(t, s.Broadcast(msg))
	for _, p := range peers {
		assert.Equal(t, msg, p.next(t))
	}

	// a removed connection is not part of the next broadcast
	require.NoError(t, peers[0].conn.Close())
	waitLen(t, s, 2)

	second := &proto.DIASStatusNotify{Status: proto.StatusDisconnected}
	frame, err := s.Codec().EncodeBytes(second)
	require.NoError(t, err)
	s.BroadcastData(frame)
	for _, p := range peers[1:] {
		assert.Equal(t, second, p.next(t))
	}
}

func TestBroadcastKeepsOrderPerConnection(t *testing.T) {
	s := startServer(t, 3, Options{})

	peers := []*peer{dial(t, s), dial(t, s)}
	waitConnected(t, s, 2)

	const n = 25
	for i := range n {
		require.NoError(t, s.Broadcast(&proto.AuthViaIndexRequest{Index: uint32(i)}))
	}
	for _, p := range peers {
		for i := range n {
			assert.Equal(t, &proto.AuthViaIndexRequest{Index: uint32(i)}, p.next(t))
		}
	}
}

func TestBroadcastExcept(t *testing.T) {
	s := startServer(t, 1, Options{})

	a, b := dial(t, s), dial(t, s)
	waitConnected(t, s, 2)
	names := s.ConnectionNames()

	msg := &proto.NotifyMessage{Timestamp: 1, NotiCode: 2, Params: []string{"p"}}
	for _, except := range names {
		require.NoError(t, s.BroadcastExcept(except, msg))
	}
	// every peer is skipped exactly once out of two broadcasts
	assert.Equal(t, msg, a.next(t))
	assert.Equal(t, msg, b.next(t))
}

func TestSendByName(t *testing.T) {
	s := startServer(t, 2, Options{})

	p := dial(t, s)
	waitConnected(t, s, 1)
	name := s.ConnectionNames()[0]
	require.NoError(t, s.Send(name, &proto.ServiceShutdownNotify{Reason: proto.ShutdownRestart}))
	assert.Equal(t, &proto.ServiceShutdownNotify{Reason: proto.ShutdownRestart}, p.next(t))

	assert.ErrorIs(t, s.Send("main#missing", &proto.ConnectStatusRequest{}), ErrUnknownConnection)
}

func TestRouterHandlesRequests(t *testing.T) {
	router := dispatch.NewRouter()
	dispatch.Handle(router, func(c *connection.Connection, _ *proto.ConnectStatusRequest) {
		_ = c.Send(&proto.ConnectStatusResponse{Status: proto.StatusConnected})
	})
	s := startServer(t, 2, Options{Router: router})

	p := dial(t, s)
	p.send(t, &proto.ConnectStatusRequest{})
	assert.Equal(t, &proto.ConnectStatusResponse{Status: proto.StatusConnected}, p.next(t))
}

func TestMalformedStreamClosesOnlyThatPeer(t *testing.T) {
	s := startServer(t, 2, Options{})

	bad, good := dial(t, s), dial(t, s)
	waitConnected(t, s, 2)

	_, err := bad.conn.Write([]byte("NOT A FRAME"))
	require.NoError(t, err)
	bad.expectEOF(t)
	waitConnected(t, s, 1)

	require.NoError(t, s.Broadcast(&proto.DIASStatusNotify{Status: 1}))
	assert.Equal(t, &proto.DIASStatusNotify{Status: 1}, good.next(t))
}

func TestCloseAllConnectionKeepsAccepting(t *testing.T) {
	s := startServer(t, 2, Options{})

	peers := []*peer{dial(t, s), dial(t, s)}
	waitLen(t, s, 2)

	s.CloseAllConnection()
	for _, p := range peers {
		p.expectEOF(t)
	}
	waitLen(t, s, 0)

	late := dial(t, s)
	waitConnected(t, s, 1)
	require.NoError(t, s.Broadcast(&proto.DIASStatusNotify{}))
	assert.Equal(t, &proto.DIASStatusNotify{}, late.next(t))
}

func TestShutdownAllConnectionDeliversQueuedFrames(t *testing.T) {
	s := startServer(t, 2, Options{})

	peers := []*peer{dial(t, s), dial(t, s)}
	waitConnected(t, s, 2)

	require.NoError(t, s.Broadcast(&proto.ServiceShutdownNotify{Reason: proto.ShutdownRestart}))
	s.ShutdownAllConnection()
	for _, p := range peers {
		assert.Equal(t, &proto.ServiceShutdownNotify{Reason: proto.ShutdownRestart}, p.next(t))
		p.expectEOF(t)
	}
	waitLen(t, s, 0)
}

func TestStop(t *testing.T) {
	s := startServer(t, 2, Options{})

	p := dial(t, s)
	waitLen(t, s, 1)

	s.Stop()
	assert.Zero(t, s.Len())
	p.expectEOF(t)

	_, err := net.Dial("unix", s.Endpoint())
	assert.Error(t, err)
	assert.True(t, errors.Is(s.Start(), ErrServerStopped))

	// idempotent
	s.Stop()
}

func TestAcceptRateRejectsExcessPeers(t *testing.T) {
	dir, err := os.MkdirTemp("", "csipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := NewServer(common.ServerConfig{
		Name:       "main",
		Endpoint:   filepath.Join(dir, "main.sock"),
		AcceptRate: 0.01,
	}, Options{})
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)

	first := dial(t, s)
	waitConnected(t, s, 1)

	second := dial(t, s)
	second.expectEOF(t)
	assert.Equal(t, uint64(1), s.Metrics().ConnectionsRejected.Get())
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Broadcast(&proto.DIASStatusNotify{Status: 1}))
	assert.Equal(t, &proto.DIASStatusNotify{Status: 1}, first.next(t))
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewServer(common.ServerConfig{Name: "x"}, Options{})
	assert.Error(t, err)

	_, err = NewServer(common.ServerConfig{Name: "x", Endpoint: "/tmp/x.sock", DispatchMode: "threads"}, Options{})
	assert.Error(t, err)
}
