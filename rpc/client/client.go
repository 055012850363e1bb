package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/csIPC/rpc/common"
	"github.com/ValentinKolb/csIPC/rpc/connection"
	"github.com/ValentinKolb/csIPC/rpc/dispatch"
	"github.com/ValentinKolb/csIPC/rpc/proto"
	"github.com/ValentinKolb/csIPC/rpc/reactor"
	"github.com/ValentinKolb/csIPC/rpc/transport"
	"github.com/ValentinKolb/csIPC/rpc/transport/pipe"
	"github.com/google/uuid"
)

// ErrClosed is returned by calls on a client whose connection is gone
var ErrClosed = errors.New("client: closed")

// Options carries the collaborators of a Client. Zero values select defaults.
type Options struct {
	// Connector dials the endpoint, defaults to the platform pipe connector
	Connector transport.IClientConnector
	// Router receives every message that is not the answer to a Call
	Router *dispatch.Router
	// Metrics defaults to a private set
	Metrics *common.Metrics
}

// Client is a dialing peer. It drives its connection on a private loop.
type Client struct {
	config common.ClientConfig
	opts   Options
	loop   *reactor.Loop
	conn   *connection.Connection

	// owned by loop
	waiters map[proto.Code][]chan proto.Message

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the endpoint in config, retrying with backoff as
// configured, and returns once the connection is established.
func Dial(ctx context.Context, config common.ClientConfig, opts Options) (*Client, error) {
	config.ApplyDefaults()
	if config.Endpoint == "" {
		return nil, fmt.Errorf("no endpoint provided")
	}
	if opts.Connector == nil {
		opts.Connector = pipe.NewClientConnector()
	}
	if opts.Metrics == nil {
		opts.Metrics = common.NewStandaloneMetrics("client")
	}

	netConn, err := transport.DialWithRetry(ctx, opts.Connector, config.Endpoint, transport.RetryPolicy{
		Attempts:       config.RetryCount,
		InitialBackoff: transport.DefaultRetryPolicy.InitialBackoff,
		AttemptTimeout: time.Duration(config.TimeoutSecond) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		config:  config,
		opts:    opts,
		loop:    reactor.NewLoop("client"),
		waiters: make(map[proto.Code][]chan proto.Message),
		closed:  make(chan struct{}),
	}
	c.conn = connection.New("client#"+uuid.NewString(), c.loop, netConn, connection.Options{
		Codec:          proto.NewCodec(config.MaxContentLength),
		ReadBufferSize: config.ReadBufferSize,
		Metrics:        opts.Metrics,
	}, connection.Callbacks{
		OnMessage: c.onMessage,
		OnClose:   c.onClose,
	})

	c.loop.Start()
	established := make(chan struct{})
	c.loop.RunInLoop(func() {
		c.conn.ConnectEstablished()
		close(established)
	})
	<-established

	Logger.Infof("connected to %s as %s", config.Endpoint, c.conn.Name())
	return c, nil
}

// Name returns the name of the client's connection
func (c *Client) Name() string {
	return c.conn.Name()
}

// Done is closed once the connection is gone
func (c *Client) Done() <-chan struct{} {
	return c.closed
}

// Send sends msg without waiting for an answer
func (c *Client) Send(msg proto.Message) error {
	if err := c.conn.Send(msg); err != nil {
		if errors.Is(err, connection.ErrNotConnected) {
			return ErrClosed
		}
		return err
	}
	return nil
}

// Call sends the request req and waits for the next response with the same
// code. Concurrent calls of the same code are answered in the order they were
// sent. Without a deadline on ctx the configured timeout applies.
//
// Call blocks and must not be used from a handler running on the client's loop.
func (c *Client) Call(ctx context.Context, req proto.Message) (proto.Message, error) {
	if req.Kind().Type != proto.TypeRequest {
		return nil, fmt.Errorf("call with %s: only requests can be called", req.Kind())
	}
	if _, ok := ctx.Deadline(); !ok && c.config.TimeoutSecond > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.config.TimeoutSecond)*time.Second)
		defer cancel()
	}

	code := req.Kind().Code
	ch := make(chan proto.Message, 1)
	registered := make(chan bool, 1)
	if !c.queue(func() {
		if c.conn.State() == connection.StateDisconnected {
			registered <- false
			return
		}
		c.waiters[code] = append(c.waiters[code], ch)
		registered <- true
	}) {
		return nil, ErrClosed
	}
	select {
	case ok := <-registered:
		if !ok {
			return nil, ErrClosed
		}
	case <-c.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		c.queue(func() { c.removeWaiter(code, ch) })
		return nil, fmt.Errorf("call %s: %w", req.Kind(), ctx.Err())
	}

	// the waiter is queued before the request, so the answer can't overtake it
	if err := c.Send(req); err != nil {
		c.queue(func() { c.removeWaiter(code, ch) })
		return nil, err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		return resp, nil
	case <-c.closed:
		// an answer delivered right before the close still counts
		if resp, ok := <-ch; ok {
			return resp, nil
		}
		return nil, ErrClosed
	case <-ctx.Done():
		c.queue(func() { c.removeWaiter(code, ch) })
		return nil, fmt.Errorf("call %s: %w", req.Kind(), ctx.Err())
	}
}

// queue runs fn on the client's loop. It returns false if the client is closed
// or its loop no longer accepts work.
func (c *Client) queue(fn func()) bool {
	select {
	case <-c.closed:
		return false
	default:
	}
	if c.loop.IsInLoopThread() {
		fn()
		return true
	}
	return c.loop.QueueInLoop(fn)
}

// Close closes the connection and stops the client's loop
func (c *Client) Close() error {
	c.conn.ForceClose()
	<-c.closed
	c.loop.Stop()
	return nil
}

// --------------------------------------------------------------------------
// Loop callbacks
// --------------------------------------------------------------------------

func (c *Client) onMessage(conn *connection.Connection, msg proto.Message) {
	kind := msg.Kind()
	if kind.Type == proto.TypeResponse {
		if queue := c.waiters[kind.Code]; len(queue) > 0 {
			queue[0] <- msg
			c.waiters[kind.Code] = queue[1:]
			return
		}
	}
	if c.opts.Router != nil {
		c.opts.Router.Dispatch(conn, msg)
		return
	}
	Logger.Debugf("%s: unsolicited %s dropped", conn.Name(), kind)
}

func (c *Client) onClose(conn *connection.Connection) {
	for code, queue := range c.waiters {
		for _, ch := range queue {
			close(ch)
		}
		delete(c.waiters, code)
	}
	c.closeOnce.Do(func() { close(c.closed) })
	Logger.Infof("%s: disconnected from %s", conn.Name(), c.config.Endpoint)
}

func (c *Client) removeWaiter(code proto.Code, ch chan proto.Message) {
	queue := c.waiters[code]
	for i, waiter := range queue {
		if waiter == ch {
			c.waiters[code] = append(queue[:i:i], queue[i+1:]...)
			return
		}
	}
}
