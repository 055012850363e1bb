// Package server implements the csIPC pipe server.
//
// A Server listens on one well-known local endpoint. It runs three kinds of
// goroutines:
//
//   - the accept loop, blocking in Accept and posting every new peer to the
//     control loop
//   - the control loop, the only place where the connection registry changes
//   - a pool of I/O loops, each driving the connections assigned to it
//
// Lifecycle of a peer:
//
//	accept ──▶ control loop: pick I/O loop, name "<role>#<uuid>", register
//	       ──▶ I/O loop: ConnectEstablished
//	close  ──▶ control loop: remove from registry (exactly once)
//	       ──▶ I/O loop: ConnectDestroyed
//
// Broadcast, CloseAllConnection and ShutdownAllConnection run on the control
// loop as well, so a connection removed before a broadcast never receives it.
// Per connection, frames arrive in the order they were sent.
//
// With ServerConfig.AcceptRate set, peers above the rate are closed right
// after accept and never reach the registry.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Name:     "main",
//	  Endpoint: pipe.DefaultEndpoint("main"),
//	  IOLoops:  2,
//	}
//	router := dispatch.NewRouter()
//	dispatch.Handle(router, func(c *connection.Connection, _ *proto.ConnectStatusRequest) {
//	  c.Send(&proto.ConnectStatusResponse{Status: proto.StatusConnected})
//	})
//
//	s, err := server.NewServer(config, server.Options{Router: router})
//	if err != nil {
//	  panic(err)
//	}
//	if err := s.Start(); err != nil {
//	  panic(err)
//	}
//	defer s.Stop()
package server
