//go:build windows

package pipe

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/Microsoft/go-winio"
)

const pipeRoot = `\\.\pipe\`

// DefaultEndpoint returns the named pipe path for a logical endpoint name
func DefaultEndpoint(name string) string {
	return pipeRoot + Prefix + name
}

// serverConnector implements the IServerConnector interface for named pipes
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "npipe"
}

func (c *serverConnector) Listen(endpoint string) (net.Listener, error) {
	if !strings.HasPrefix(endpoint, pipeRoot) {
		return nil, fmt.Errorf("invalid pipe name %q: must start with %s", endpoint, pipeRoot)
	}
	// named pipes vanish with their last handle, there is nothing stale to remove
	listener, err := winio.ListenPipe(endpoint, &winio.PipeConfig{
		InputBufferSize:  64 * 1024,
		OutputBufferSize: 64 * 1024,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create named pipe: %w", err)
	}
	return listener, nil
}

// clientConnector implements the IClientConnector interface for named pipes
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "npipe"
}

func (c *clientConnector) Connect(ctx context.Context, endpoint string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, endpoint)
}
