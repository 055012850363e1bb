package dispatch

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/csIPC/rpc/connection"
	"github.com/ValentinKolb/csIPC/rpc/proto"
	"github.com/bytedance/gopkg/util/gopool"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("ipc/dispatch")

// HandlerFunc handles one decoded message of a connection
type HandlerFunc func(c *connection.Connection, msg proto.Message)

// Router maps message kinds to handlers. Handlers must be registered before
// the router receives its first message.
type Router struct {
	handlers map[proto.Kind]HandlerFunc
	fallback HandlerFunc
	pool     gopool.Pool
}

// NewRouter creates a router that runs handlers inline on the connection's loop
func NewRouter() *Router {
	return &Router{
		handlers: make(map[proto.Kind]HandlerFunc),
		fallback: logUnhandled,
	}
}

// NewPooledRouter creates a router that runs handlers on a worker pool of the
// given size
func NewPooledRouter(name string, workers int) *Router {
	r := NewRouter()
	r.pool = gopool.NewPool(name, int32(max(workers, 1)), gopool.NewConfig())
	r.pool.SetPanicHandler(func(_ context.Context, v interface{}) {
		log.Errorf("handler panicked on pool %s: %v", name, v)
	})
	return r
}

// Handle registers handler for the record type T. It panics if a handler for
// the kind of T is already registered.
func Handle[T proto.Message](r *Router, handler func(c *connection.Connection, msg T)) {
	var zero T
	r.HandleFunc(zero.Kind(), func(c *connection.Connection, msg proto.Message) {
		typed, ok := msg.(T)
		if !ok {
			// a custom codec registered a different record for this kind
			log.Errorf("%s: %s carries %T, handler expects %T", c.Name(), msg.Kind(), msg, zero)
			return
		}
		handler(c, typed)
	})
}

// HandleFunc registers an untyped handler for kind
func (r *Router) HandleFunc(kind proto.Kind, handler HandlerFunc) {
	if _, ok := r.handlers[kind]; ok {
		panic(fmt.Sprintf("dispatch: handler for %s registered twice", kind))
	}
	r.handlers[kind] = handler
}

// Fallback replaces the handler for messages without a registered handler
func (r *Router) Fallback(handler HandlerFunc) {
	r.fallback = handler
}

// Handles reports whether a handler is registered for kind
func (r *Router) Handles(kind proto.Kind) bool {
	_, ok := r.handlers[kind]
	return ok
}

// Dispatch hands msg to its handler. It matches connection.Callbacks.OnMessage.
func (r *Router) Dispatch(c *connection.Connection, msg proto.Message) {
	handler, ok := r.handlers[msg.Kind()]
	if !ok {
		handler = r.fallback
	}
	if r.pool == nil {
		handler(c, msg)
		return
	}
	r.pool.Go(func() { handler(c, msg) })
}

func logUnhandled(c *connection.Connection, msg proto.Message) {
	log.Debugf("%s: no handler for %s", c.Name(), msg.Kind())
}
