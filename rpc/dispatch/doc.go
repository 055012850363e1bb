// Package dispatch routes decoded messages to typed business handlers.
//
// Handlers are registered per record type with the generic Handle function:
//
//	r := dispatch.NewRouter()
//	dispatch.Handle(r, func(c *connection.Connection, req *proto.ClientListRequest) {
//		...
//	})
//	cb := connection.Callbacks{OnMessage: r.Dispatch, ...}
//
// Messages without a handler go to the fallback, which logs them by default.
//
// A router created with NewPooledRouter runs handlers on a gopool worker pool
// instead of the connection's loop. Handlers then run concurrently and the
// order of messages of one connection is no longer guaranteed.
package dispatch
