// Package connection implements one framed peer connection driven by a
// reactor loop.
//
// A Connection moves through four states:
//
//	Connecting ──▶ Connected ──▶ Disconnecting ──▶ Disconnected
//	                   │                                ▲
//	                   └────────────────────────────────┘
//
// Disconnected is terminal and reached exactly once. OnClose fires on that
// transition, whatever caused it: a transport error, end of stream, a
// desynchronized byte stream, Shutdown after the outbound queue drained, or
// ForceClose.
//
// All buffers of a connection are owned by its loop. Blocking I/O happens on
// two helper goroutines that post their completions back to the loop:
//
//   - the reader keeps exactly one read outstanding and waits until the loop
//     consumed the bytes before it issues the next one
//   - the writer writes the front of the outbound queue, one buffer at a time
//
// Inbound bytes are decoded with proto.Codec until it reports a partial
// frame. Unknown and malformed frames are skipped, a bad header closes the
// connection.
//
// The outbound queue is unbounded. A peer that stops reading makes it grow
// without limit.
package connection
