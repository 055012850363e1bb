package pipe

import "github.com/ValentinKolb/csIPC/rpc/transport"

// Prefix is prepended to logical endpoint names
const Prefix = "csipc-"

// NewServerConnector returns the server connector of the current platform
func NewServerConnector() transport.IServerConnector {
	return &serverConnector{}
}

// NewClientConnector returns the client connector of the current platform
func NewClientConnector() transport.IClientConnector {
	return &clientConnector{}
}
