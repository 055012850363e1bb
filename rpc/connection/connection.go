package connection

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/ValentinKolb/csIPC/lib/buffer"
	"github.com/ValentinKolb/csIPC/rpc/common"
	"github.com/ValentinKolb/csIPC/rpc/proto"
	"github.com/ValentinKolb/csIPC/rpc/reactor"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("ipc/conn")

// ErrNotConnected is returned when sending on a connection that is not Connected
var ErrNotConnected = errors.New("connection: not connected")

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

// State is the lifecycle state of a Connection
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	case StateDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// --------------------------------------------------------------------------
// Callbacks and options
// --------------------------------------------------------------------------

// Callbacks are invoked on the connection's loop. OnClose is mandatory.
type Callbacks struct {
	// OnConnection fires once the connection is Connected
	OnConnection func(c *Connection)
	// OnMessage fires for every decoded message, in stream order
	OnMessage func(c *Connection, msg proto.Message)
	// OnWriteComplete fires whenever an outbound buffer was fully written
	OnWriteComplete func(c *Connection)
	// OnClose fires exactly once when the connection becomes Disconnected
	OnClose func(c *Connection)
}

// Options tune a Connection. Zero values select defaults.
type Options struct {
	Codec          *proto.Codec
	ReadBufferSize int
	Metrics        *common.Metrics
}

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// Connection is a framed, loop-driven peer connection
type Connection struct {
	name    string
	loop    *reactor.Loop
	conn    net.Conn
	codec   *proto.Codec
	cb      Callbacks
	metrics *common.Metrics
	readBuf []byte

	state atomic.Int32

	// owned by loop
	inbound  *buffer.ByteBuffer
	outbound []*buffer.ByteBuffer
	writing  bool

	readNext chan struct{} // token that lets the reader issue the next read
	writeReq chan []byte
	stop     chan struct{}
}

// New wraps conn. The connection starts in StateConnecting, ConnectEstablished
// must be run on loop to start I/O.
func New(name string, loop *reactor.Loop, conn net.Conn, opts Options, cb Callbacks) *Connection {
	if cb.OnClose == nil {
		panic("connection: OnClose callback is required")
	}
	if opts.Codec == nil {
		opts.Codec = proto.NewCodec(common.DefaultMaxContentLength)
	}
	if opts.ReadBufferSize <= 0 {
		opts.ReadBufferSize = common.DefaultReadBufferSize
	}
	if opts.Metrics == nil {
		opts.Metrics = common.NewStandaloneMetrics(name)
	}

	c := &Connection{
		name:     name,
		loop:     loop,
		conn:     conn,
		codec:    opts.Codec,
		cb:       cb,
		metrics:  opts.Metrics,
		readBuf:  make([]byte, opts.ReadBufferSize),
		inbound:  buffer.New(),
		readNext: make(chan struct{}, 1),
		writeReq: make(chan []byte, 1),
		stop:     make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// Name returns the unique name of the connection
func (c *Connection) Name() string { return c.name }

// Loop returns the loop that owns the connection
func (c *Connection) Loop() *reactor.Loop { return c.loop }

// State returns the current state
func (c *Connection) State() State { return State(c.state.Load()) }

// Connected reports whether the connection is in StateConnected
func (c *Connection) Connected() bool { return c.State() == StateConnected }

// RemoteAddr returns the peer address of the underlying transport
func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *Connection) String() string {
	return fmt.Sprintf("%s[%s]", c.name, c.State())
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// ConnectEstablished moves the connection to Connected and starts I/O.
// Must run on the connection's loop.
func (c *Connection) ConnectEstablished() {
	c.loop.AssertInLoopThread()
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected)) {
		log.Debugf("%s: not establishing, already %s", c.name, c.State())
		return
	}

	go c.readLoop()
	go c.writeLoop()

	log.Debugf("%s: established on %s", c.name, c.loop.Name())
	if c.cb.OnConnection != nil {
		c.cb.OnConnection(c)
	}
}

// ConnectDestroyed is the final teardown after the owner forgot the
// connection. Must run on the connection's loop.
func (c *Connection) ConnectDestroyed() {
	c.loop.AssertInLoopThread()
	if c.State() != StateDisconnected {
		// owner dropped a live connection, close without notifying it again
		c.state.Store(int32(StateDisconnected))
		c.teardown()
	}
	c.inbound = nil
	log.Debugf("%s: destroyed", c.name)
}

// Shutdown closes the connection once all queued buffers were written
func (c *Connection) Shutdown() {
	c.loop.RunInLoop(func() {
		if !c.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnecting)) {
			return
		}
		if !c.writing && len(c.outbound) == 0 {
			c.handleClose(nil)
		}
	})
}

// ForceClose closes the connection immediately, queued buffers are discarded
func (c *Connection) ForceClose() {
	if c.State() == StateDisconnected {
		return
	}
	c.loop.RunInLoop(func() { c.handleClose(nil) })
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// Send encodes msg and queues it. It may be called from any goroutine.
func (c *Connection) Send(msg proto.Message) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	buf, err := c.codec.Encode(msg)
	if err != nil {
		return err
	}
	return c.queueSend(buf)
}

// SendBytes queues a copy of data, which must hold complete frames. It may be
// called from any goroutine.
func (c *Connection) SendBytes(data []byte) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	return c.queueSend(buffer.FromBytes(data))
}

// queueSend hands buf to the loop. It fails when the loop already stopped and
// dropped the callback.
func (c *Connection) queueSend(buf *buffer.ByteBuffer) error {
	if c.loop.IsInLoopThread() {
		c.sendInLoop(buf)
		return nil
	}
	if !c.loop.QueueInLoop(func() { c.sendInLoop(buf) }) {
		return ErrNotConnected
	}
	return nil
}

func (c *Connection) sendInLoop(buf *buffer.ByteBuffer) {
	c.loop.AssertInLoopThread()
	if c.State() != StateConnected {
		log.Debugf("%s: dropping %d bytes, connection is %s", c.name, buf.ReadableBytes(), c.State())
		return
	}
	c.outbound = append(c.outbound, buf)
	if !c.writing {
		c.startWrite()
	}
}

func (c *Connection) startWrite() {
	c.writing = true
	c.writeReq <- c.outbound[0].Peek()
}

// handleWrite runs on the loop after the writer finished one write. writing
// stays set until it is known that no further write is started, so a Send from
// OnWriteComplete only queues its frame.
func (c *Connection) handleWrite(n int, err error) {
	if c.State() == StateDisconnected {
		c.writing = false
		return
	}
	if err != nil {
		c.writing = false
		c.handleClose(fmt.Errorf("write: %w", err))
		return
	}

	c.metrics.BytesOut.Add(n)
	front := c.outbound[0]
	front.Retrieve(n)
	if front.ReadableBytes() == 0 {
		c.outbound[0] = nil
		c.outbound = c.outbound[1:]
		c.metrics.FramesOut.Inc()
		if c.cb.OnWriteComplete != nil {
			c.cb.OnWriteComplete(c)
		}
		// a callback may have closed the connection
		if c.State() == StateDisconnected {
			c.writing = false
			return
		}
	}

	if len(c.outbound) == 0 {
		c.writing = false
		if c.State() == StateDisconnecting {
			c.handleClose(nil)
		}
		return
	}
	c.startWrite()
}

func (c *Connection) writeLoop() {
	for data := range c.writeReq {
		n, err := c.conn.Write(data)
		if !c.loop.QueueInLoop(func() { c.handleWrite(n, err) }) {
			c.conn.Close()
			return
		}
	}
}

// --------------------------------------------------------------------------
// Receiving
// --------------------------------------------------------------------------

func (c *Connection) readLoop() {
	for {
		n, err := c.conn.Read(c.readBuf)
		if n > 0 {
			if !c.loop.QueueInLoop(func() { c.handleRead(n) }) {
				c.conn.Close()
				return
			}
			// readBuf is reused, wait until the loop copied it
			select {
			case <-c.readNext:
			case <-c.stop:
				return
			}
		}
		if err != nil {
			c.loop.QueueInLoop(func() { c.handleClose(fmt.Errorf("read: %w", err)) })
			return
		}
	}
}

// handleRead runs on the loop after the reader received n bytes
func (c *Connection) handleRead(n int) {
	if c.State() == StateDisconnected {
		return
	}
	c.inbound.Append(c.readBuf[:n])
	c.metrics.BytesIn.Add(n)
	c.decodeInbound()
	if c.State() != StateDisconnected {
		c.readNext <- struct{}{}
	}
}

// decodeInbound hands every complete frame to OnMessage
func (c *Connection) decodeInbound() {
	for c.State() != StateDisconnected && c.inbound.ReadableBytes() > 0 {
		msg, frameLen, err := c.codec.Decode(c.inbound)
		switch {
		case err == nil:
			c.inbound.Retrieve(frameLen)
			c.metrics.FramesIn.Inc()
			if c.cb.OnMessage != nil {
				c.cb.OnMessage(c, msg)
			}
		case errors.Is(err, proto.ErrNeedMoreData):
			return
		case proto.IsFatal(err):
			c.metrics.DecodeErrors.Inc()
			c.handleClose(fmt.Errorf("decode: %w", err))
			return
		default:
			if errors.Is(err, proto.ErrUnknownMessage) {
				c.metrics.UnknownFrames.Inc()
			} else {
				c.metrics.DecodeErrors.Inc()
			}
			log.Warningf("%s: skipping frame of %d bytes: %v", c.name, frameLen, err)
			c.inbound.Retrieve(frameLen)
		}
	}
}

// --------------------------------------------------------------------------
// Closing
// --------------------------------------------------------------------------

// handleClose moves the connection to Disconnected and fires OnClose, once
func (c *Connection) handleClose(cause error) {
	c.loop.AssertInLoopThread()
	if State(c.state.Swap(int32(StateDisconnected))) == StateDisconnected {
		return
	}

	if cause != nil {
		log.Infof("%s: closed: %v", c.name, cause)
	} else {
		log.Debugf("%s: closed", c.name)
	}

	c.teardown()
	c.cb.OnClose(c)
}

// teardown closes the transport and stops the helper goroutines
func (c *Connection) teardown() {
	if err := c.conn.Close(); err != nil {
		log.Debugf("%s: close: %v", c.name, err)
	}
	close(c.stop)
	close(c.writeReq)
	if dropped := len(c.outbound); dropped > 0 {
		log.Debugf("%s: discarding %d queued buffers", c.name, dropped)
	}
	c.outbound = nil
}
