package transport

import (
	"context"
	"net"
)

// --------------------------------------------------------------------------
// Connector Interfaces
// --------------------------------------------------------------------------

// IServerConnector creates listeners for one kind of local endpoint
type IServerConnector interface {
	// GetName returns the name of the transport type (e.g. "unix", "npipe")
	GetName() string
	// Listen creates a listener on the endpoint. A stale endpoint left behind
	// by a crashed process is replaced.
	Listen(endpoint string) (net.Listener, error)
}

// IClientConnector dials one kind of local endpoint
type IClientConnector interface {
	// GetName returns the name of the transport type (e.g. "unix", "npipe")
	GetName() string
	// Connect establishes a single connection to the endpoint
	Connect(ctx context.Context, endpoint string) (net.Conn, error)
}
