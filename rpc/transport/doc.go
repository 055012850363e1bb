// Package transport defines how csIPC reaches its local endpoints.
//
// A transport is a pair of connectors: IServerConnector creates the listener a
// server accepts on, IClientConnector dials it. Both deal in plain net.Listener
// and net.Conn values, framing is done above them by the connection package.
//
// DialWithRetry wraps a client connector with exponential backoff so a client
// started before its server still connects once the server is up.
//
// The pipe subpackage implements the connectors for the current platform.
package transport
