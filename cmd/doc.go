// Package cmd implements the command-line interface of csIPC. It provides a
// hierarchical command structure for running the pipe servers and for
// talking to them as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts one pipe server per role (main, service, ...) with the default handlers
//   - client: Commands for probing the service, listing clients and sending notifications
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See csipc -help for a list of all commands.
package cmd
