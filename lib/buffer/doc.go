// Package buffer provides ByteBuffer, the growable byte container every frame
// of the csIPC wire protocol is built in and parsed from.
//
// A ByteBuffer keeps two cursors over one owned slice:
//
//	+-------------------+------------------+------------------+
//	| prependable bytes |  readable bytes  |  writable bytes  |
//	|                   |     (CONTENT)    |                  |
//	+-------------------+------------------+------------------+
//	0      <=      readerIndex   <=   writerIndex    <=     len
//
// A fixed slack of CheapPrepend bytes is kept in front of the readable region
// so a frame header can be prepended to an already encoded payload without
// copying it.
//
// All fixed-width integers are encoded in network byte order (big-endian).
//
// Thread Safety:
//
//	ByteBuffer is not safe for concurrent use. In csIPC every buffer is owned
//	by exactly one reactor loop at a time.
package buffer
