// Package rpc provides the local inter-process communication core of csIPC.
// It carries typed binary messages between the GUI and the background
// service over named pipes (unix domain sockets on unix).
//
// The package is organized into several subpackages:
//
//   - proto: The wire format. Frames start with the "RTKCS" tag, a message
//     type, a message code and the payload length. Codec encodes and decodes
//     the typed records.
//
//   - reactor: Event loops owning one OS thread each, plus the pool of I/O
//     loops a server distributes its connections over.
//
//   - connection: One byte stream with its state machine and its input and
//     output buffers. All state is owned by the connection's loop.
//
//   - transport: Listener and dialer abstractions with the platform pipe
//     implementation and a dial retry policy.
//
//   - dispatch: Routes decoded messages to typed handlers, inline or on a
//     worker pool.
//
//   - server: Accept loop, connection registry, broadcast and close-all.
//
//   - client: A dialing peer with request/response pairing.
//
//   - common: Configuration structures, logging and metrics.
package rpc
