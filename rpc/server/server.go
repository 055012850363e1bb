package server

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/csIPC/rpc/common"
	"github.com/ValentinKolb/csIPC/rpc/connection"
	"github.com/ValentinKolb/csIPC/rpc/dispatch"
	"github.com/ValentinKolb/csIPC/rpc/proto"
	"github.com/ValentinKolb/csIPC/rpc/reactor"
	"github.com/ValentinKolb/csIPC/rpc/transport"
	"github.com/ValentinKolb/csIPC/rpc/transport/pipe"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

var Logger = logger.GetLogger("ipc/server")

var (
	// ErrUnknownConnection is returned by Send for a name not in the registry
	ErrUnknownConnection = errors.New("server: unknown connection")
	// ErrServerStopped is returned when starting a stopped server
	ErrServerStopped = errors.New("server: stopped")
)

// Options carries the collaborators of a Server. Zero values select defaults.
type Options struct {
	// Connector creates the listener, defaults to the platform pipe connector
	Connector transport.IServerConnector
	// Router receives every decoded message, defaults to a router built from
	// the configured dispatch mode without handlers
	Router *dispatch.Router
	// Metrics defaults to a private set labeled with the server name
	Metrics *common.Metrics
	// OnConnection fires on the connection's loop once it is Connected
	OnConnection func(c *connection.Connection)
	// OnClose fires on the control loop after the connection left the registry
	OnClose func(c *connection.Connection)
}

// Server accepts peers on one well-known endpoint and keeps a registry of
// its live connections.
//
// The registry is only modified on the control loop. Lookups (Len,
// ConnectionNames, Send) are safe from any goroutine.
type Server struct {
	config  common.ServerConfig
	opts    Options
	codec   *proto.Codec
	metrics *common.Metrics

	control     *reactor.Loop
	pool        *reactor.LoopPool
	listener    net.Listener
	admission   *rate.Limiter
	connections *xsync.MapOf[string, *connection.Connection]

	started    atomic.Bool
	stopped    atomic.Bool
	acceptDone chan struct{}
	drained    chan struct{}
	drainOnce  sync.Once
}

// NewServer creates a server. It validates the configuration but does not
// listen yet.
func NewServer(config common.ServerConfig, opts Options) (*Server, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if opts.Connector == nil {
		opts.Connector = pipe.NewServerConnector()
	}
	if opts.Router == nil {
		if config.DispatchMode == common.DispatchPool {
			opts.Router = dispatch.NewPooledRouter(config.Name+"-dispatch", config.DispatchWorkers)
		} else {
			opts.Router = dispatch.NewRouter()
		}
	}
	if opts.Metrics == nil {
		opts.Metrics = common.NewStandaloneMetrics(config.Name)
	}

	admission := rate.NewLimiter(rate.Inf, 0)
	if config.AcceptRate > 0 {
		admission = rate.NewLimiter(rate.Limit(config.AcceptRate), max(1, int(config.AcceptRate)))
	}

	control := reactor.NewLoop(config.Name + "-control")
	return &Server{
		config:      config,
		opts:        opts,
		codec:       proto.NewCodec(config.MaxContentLength),
		metrics:     opts.Metrics,
		control:     control,
		pool:        reactor.NewLoopPool(control, config.Name, config.IOLoops),
		admission:   admission,
		connections: xsync.NewMapOf[string, *connection.Connection](),
		acceptDone:  make(chan struct{}),
		drained:     make(chan struct{}),
	}, nil
}

// Name returns the server role name
func (s *Server) Name() string { return s.config.Name }

// Endpoint returns the endpoint the server listens on
func (s *Server) Endpoint() string { return s.config.Endpoint }

// Codec returns the codec shared by all connections of the server
func (s *Server) Codec() *proto.Codec { return s.codec }

// Metrics returns the metrics of the server
func (s *Server) Metrics() *common.Metrics { return s.metrics }

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Start listens on the endpoint, starts the loops and the accept loop. It
// returns once the server accepts connections.
func (s *Server) Start() error {
	if s.stopped.Load() {
		return ErrServerStopped
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("server %s already started", s.config.Name)
	}

	listener, err := s.opts.Connector.Listen(s.config.Endpoint)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("failed to listen on %s: %w", s.config.Endpoint, err)
	}
	s.listener = listener

	s.control.Start()
	s.pool.Start()
	go s.acceptLoop()

	Logger.Infof("server %s listening on %s (%s transport, %d io loops)",
		s.config.Name, s.config.Endpoint, s.opts.Connector.GetName(), s.config.IOLoops)
	return nil
}

// Stop closes the listener, force-closes every connection and stops all
// loops. It blocks until the registry is empty.
func (s *Server) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	if !s.started.Load() {
		return
	}

	if err := s.listener.Close(); err != nil {
		Logger.Warningf("server %s: closing listener: %v", s.config.Name, err)
	}
	<-s.acceptDone

	s.control.RunInLoop(func() {
		s.forceCloseAll()
		s.signalIfDrained()
	})
	<-s.drained

	s.pool.Stop()
	s.control.Stop()
	Logger.Infof("server %s stopped", s.config.Name)
}

func (s *Server) acceptLoop() {
	defer close(s.acceptDone)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopped.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			Logger.Errorf("server %s: accept error: %v", s.config.Name, err)
			continue
		}
		if !s.admission.Allow() {
			Logger.Warningf("server %s: accept rate exceeded, rejecting peer", s.config.Name)
			s.metrics.ConnectionsRejected.Inc()
			conn.Close()
			continue
		}
		if !s.control.QueueInLoop(func() { s.newConnection(conn) }) {
			conn.Close()
		}
	}
}

// --------------------------------------------------------------------------
// Registry (control loop)
// --------------------------------------------------------------------------

// newConnection registers an accepted peer and hands it to an I/O loop
func (s *Server) newConnection(conn net.Conn) {
	s.control.AssertInLoopThread()
	if s.stopped.Load() {
		conn.Close()
		return
	}

	name := fmt.Sprintf("%s#%s", s.config.Name, uuid.NewString())
	var loop *reactor.Loop
	if s.config.LoopSelection == common.LoopSelectionHash {
		loop = s.pool.LoopForHash(name)
	} else {
		loop = s.pool.NextLoop()
	}

	c := connection.New(name, loop, conn, connection.Options{
		Codec:          s.codec,
		ReadBufferSize: s.config.ReadBufferSize,
		Metrics:        s.metrics,
	}, connection.Callbacks{
		OnConnection: s.opts.OnConnection,
		OnMessage:    s.opts.Router.Dispatch,
		OnClose:      s.removeConnection,
	})

	s.connections.Store(name, c)
	s.metrics.ConnectionsAccepted.Inc()
	s.metrics.ConnectionsActive.Inc()
	Logger.Infof("server %s: new connection %s on %s", s.config.Name, name, loop.Name())

	loop.RunInLoop(c.ConnectEstablished)
}

// removeConnection is the close callback of every connection. It runs on the
// connection's loop and moves the removal to the control loop.
func (s *Server) removeConnection(c *connection.Connection) {
	s.control.RunInLoop(func() {
		if _, ok := s.connections.LoadAndDelete(c.Name()); !ok {
			return
		}
		s.metrics.ConnectionsClosed.Inc()
		s.metrics.ConnectionsActive.Dec()
		Logger.Infof("server %s: connection %s removed", s.config.Name, c.Name())

		if s.opts.OnClose != nil {
			s.opts.OnClose(c)
		}
		c.Loop().QueueInLoop(c.ConnectDestroyed)
		s.signalIfDrained()
	})
}

func (s *Server) signalIfDrained() {
	if s.stopped.Load() && s.connections.Size() == 0 {
		s.drainOnce.Do(func() { close(s.drained) })
	}
}

func (s *Server) forceCloseAll() {
	s.connections.Range(func(_ string, c *connection.Connection) bool {
		c.ForceClose()
		return true
	})
}

// --------------------------------------------------------------------------
// Sending
// --------------------------------------------------------------------------

// Broadcast encodes msg once and sends it to every registered connection
func (s *Server) Broadcast(msg proto.Message) error {
	frame, err := s.codec.EncodeBytes(msg)
	if err != nil {
		return err
	}
	s.BroadcastData(frame)
	return nil
}

// BroadcastData sends a copy of data to every connection registered when the
// broadcast runs on the control loop. data must hold complete frames.
func (s *Server) BroadcastData(data []byte) {
	frame := append([]byte(nil), data...)
	s.control.RunInLoop(func() {
		s.connections.Range(func(name string, c *connection.Connection) bool {
			if err := c.SendBytes(frame); err != nil {
				Logger.Debugf("server %s: broadcast skipped %s: %v", s.config.Name, name, err)
			}
			return true
		})
	})
}

// BroadcastExcept is like Broadcast but skips the connection named except
func (s *Server) BroadcastExcept(except string, msg proto.Message) error {
	frame, err := s.codec.EncodeBytes(msg)
	if err != nil {
		return err
	}
	s.control.RunInLoop(func() {
		s.connections.Range(func(name string, c *connection.Connection) bool {
			if name != except {
				if err := c.SendBytes(frame); err != nil {
					Logger.Debugf("server %s: broadcast skipped %s: %v", s.config.Name, name, err)
				}
			}
			return true
		})
	})
	return nil
}

// Send sends msg to the connection with the given name
func (s *Server) Send(name string, msg proto.Message) error {
	c, ok := s.connections.Load(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnection, name)
	}
	return c.Send(msg)
}

// ShutdownAllConnection closes every connection once its queued frames were
// written. Frames broadcast before the call are delivered first. The server
// keeps accepting new peers.
func (s *Server) ShutdownAllConnection() {
	s.control.RunInLoop(func() {
		s.connections.Range(func(_ string, c *connection.Connection) bool {
			c.Shutdown()
			return true
		})
	})
}

// CloseAllConnection force-closes every connection. The server keeps
// accepting new peers.
func (s *Server) CloseAllConnection() {
	s.control.RunInLoop(s.forceCloseAll)
}

// --------------------------------------------------------------------------
// Lookups
// --------------------------------------------------------------------------

// Len returns the number of registered connections
func (s *Server) Len() int {
	return s.connections.Size()
}

// ConnectionNames returns the names of all registered connections, sorted
func (s *Server) ConnectionNames() []string {
	names := make([]string, 0, s.connections.Size())
	s.connections.Range(func(name string, _ *connection.Connection) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// Connection returns the registered connection with the given name
func (s *Server) Connection(name string) (*connection.Connection, bool) {
	return s.connections.Load(name)
}
