// Package proto implements the csIPC wire protocol: the fixed frame header and
// the typed message records exchanged between the GUI process and the
// background services.
//
// Frame layout (all integers big-endian):
//
//	┌───────────┬──────────┬──────────┬──────────────────┬─────────────────────┐
//	│ Tag       │ Type     │ Code     │ Content Length   │ Payload             │
//	│ "RTKCS"   │ (1 byte) │ (1 byte) │ (4 bytes)        │ (Content Length)    │
//	└───────────┴──────────┴──────────┴──────────────────┴─────────────────────┘
//
// Type is one of Request, Response or Notify. Code selects the payload schema.
// Together they form a Kind, and every Kind maps to exactly one Go record type
// implementing Message.
//
// Payload fields are written in a fixed order per Kind:
//
//   - integers are big-endian fixed width
//   - strings are UTF-16LE bytes preceded by their byte length; the prefix is
//     2 bytes for short identity strings (IP, display name, device type,
//     version) and 4 bytes for file names, paths, notify parameters and
//     error messages
//   - lists are preceded by an element count (width per field)
//   - the 46-byte client identifier is fixed width and has no prefix
//
// Decoding never consumes input: Codec.Decode peeks at a buffer and reports
// how many bytes the frame spans, the caller retrieves them once it has
// handled the message. A partial frame yields ErrNeedMoreData and leaves the
// buffer untouched, so decoding can simply be retried when more bytes arrived.
//
// Error classes:
//
//   - ErrNeedMoreData: not an error, the frame is incomplete
//   - ErrMalformedHeader, ErrFrameTooLarge: the stream is desynchronized,
//     the connection must be closed
//   - ErrUnknownMessage, ErrMalformedPayload: the frame boundaries are intact,
//     the frame can be skipped
package proto
