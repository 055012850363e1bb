package buffer

import (
	"encoding/binary"
	"fmt"
)

const (
	// CheapPrepend is the slack reserved in front of the readable region.
	// It must be large enough to hold a complete frame header.
	CheapPrepend = 16
	// InitialSize is the default writable capacity of a new buffer.
	InitialSize = 1024
)

// ByteBuffer is a growable byte sequence with independent read and write cursors.
type ByteBuffer struct {
	buf         []byte
	readerIndex int
	writerIndex int
	reserved    int // prepend slack restored on reset and compaction
}

// New creates an empty buffer with InitialSize writable bytes
func New() *ByteBuffer {
	return NewWithSize(InitialSize)
}

// NewWithSize creates an empty buffer with the given writable capacity
func NewWithSize(size int) *ByteBuffer {
	if size < 0 {
		size = 0
	}
	return &ByteBuffer{
		buf:         make([]byte, CheapPrepend+size),
		readerIndex: CheapPrepend,
		writerIndex: CheapPrepend,
		reserved:    CheapPrepend,
	}
}

// FromBytes creates a buffer holding a copy of b as its readable region
func FromBytes(b []byte) *ByteBuffer {
	buf := NewWithSize(len(b))
	buf.Append(b)
	return buf
}

// Wrap creates a buffer whose readable region is b itself (no copy, no prepend slack).
// It is meant for parsing: appending to a wrapped buffer may reallocate.
func Wrap(b []byte) *ByteBuffer {
	return &ByteBuffer{
		buf:         b,
		readerIndex: 0,
		writerIndex: len(b),
	}
}

// --------------------------------------------------------------------------
// Cursor information
// --------------------------------------------------------------------------

// ReadableBytes returns the number of bytes between the read and the write cursor
func (b *ByteBuffer) ReadableBytes() int {
	return b.writerIndex - b.readerIndex
}

// WritableBytes returns the number of bytes that can be appended without growing
func (b *ByteBuffer) WritableBytes() int {
	return len(b.buf) - b.writerIndex
}

// PrependableBytes returns the number of bytes in front of the read cursor
func (b *ByteBuffer) PrependableBytes() int {
	return b.readerIndex
}

// Cap returns the size of the backing storage
func (b *ByteBuffer) Cap() int {
	return len(b.buf)
}

// --------------------------------------------------------------------------
// Peek (read without consuming)
// --------------------------------------------------------------------------

// Peek returns the readable region. The slice aliases the buffer's storage and
// is only valid until the next mutating call.
func (b *ByteBuffer) Peek() []byte {
	return b.buf[b.readerIndex:b.writerIndex]
}

// PeekAt returns n readable bytes starting offset bytes after the read cursor
func (b *ByteBuffer) PeekAt(offset, n int) []byte {
	b.mustReadable(offset + n)
	start := b.readerIndex + offset
	return b.buf[start : start+n]
}

// PeekU8 returns the next byte without consuming it
func (b *ByteBuffer) PeekU8() uint8 {
	b.mustReadable(1)
	return b.buf[b.readerIndex]
}

// PeekU16 returns the next big-endian uint16 without consuming it
func (b *ByteBuffer) PeekU16() uint16 {
	b.mustReadable(2)
	return binary.BigEndian.Uint16(b.buf[b.readerIndex:])
}

// PeekU32 returns the next big-endian uint32 without consuming it
func (b *ByteBuffer) PeekU32() uint32 {
	b.mustReadable(4)
	return binary.BigEndian.Uint32(b.buf[b.readerIndex:])
}

// PeekU64 returns the next big-endian uint64 without consuming it
func (b *ByteBuffer) PeekU64() uint64 {
	b.mustReadable(8)
	return binary.BigEndian.Uint64(b.buf[b.readerIndex:])
}

// --------------------------------------------------------------------------
// Retrieve (consume)
// --------------------------------------------------------------------------

// Retrieve consumes n readable bytes
func (b *ByteBuffer) Retrieve(n int) {
	b.mustReadable(n)
	if n < b.ReadableBytes() {
		b.readerIndex += n
	} else {
		b.RetrieveAll()
	}
}

// RetrieveAll consumes every readable byte and resets both cursors
func (b *ByteBuffer) RetrieveAll() {
	b.readerIndex = b.reserved
	b.writerIndex = b.reserved
}

// RetrieveU8 consumes one byte
func (b *ByteBuffer) RetrieveU8() uint8 {
	v := b.PeekU8()
	b.Retrieve(1)
	return v
}

// RetrieveU16 consumes a big-endian uint16
func (b *ByteBuffer) RetrieveU16() uint16 {
	v := b.PeekU16()
	b.Retrieve(2)
	return v
}

// RetrieveU32 consumes a big-endian uint32
func (b *ByteBuffer) RetrieveU32() uint32 {
	v := b.PeekU32()
	b.Retrieve(4)
	return v
}

// RetrieveU64 consumes a big-endian uint64
func (b *ByteBuffer) RetrieveU64() uint64 {
	v := b.PeekU64()
	b.Retrieve(8)
	return v
}

// RetrieveAsBytes consumes n bytes and returns a copy of them
func (b *ByteBuffer) RetrieveAsBytes(n int) []byte {
	b.mustReadable(n)
	out := make([]byte, n)
	copy(out, b.buf[b.readerIndex:b.readerIndex+n])
	b.Retrieve(n)
	return out
}

// RetrieveAllAsBytes consumes the readable region and returns a copy of it
func (b *ByteBuffer) RetrieveAllAsBytes() []byte {
	return b.RetrieveAsBytes(b.ReadableBytes())
}

// --------------------------------------------------------------------------
// Append / Prepend
// --------------------------------------------------------------------------

// Append copies data to the end of the readable region
func (b *ByteBuffer) Append(data []byte) {
	b.EnsureWritable(len(data))
	b.writerIndex += copy(b.buf[b.writerIndex:], data)
}

// AppendU8 appends one byte
func (b *ByteBuffer) AppendU8(v uint8) {
	b.EnsureWritable(1)
	b.buf[b.writerIndex] = v
	b.writerIndex++
}

// AppendU16 appends a big-endian uint16
func (b *ByteBuffer) AppendU16(v uint16) {
	b.EnsureWritable(2)
	binary.BigEndian.PutUint16(b.buf[b.writerIndex:], v)
	b.writerIndex += 2
}

// AppendU32 appends a big-endian uint32
func (b *ByteBuffer) AppendU32(v uint32) {
	b.EnsureWritable(4)
	binary.BigEndian.PutUint32(b.buf[b.writerIndex:], v)
	b.writerIndex += 4
}

// AppendU64 appends a big-endian uint64
func (b *ByteBuffer) AppendU64(v uint64) {
	b.EnsureWritable(8)
	binary.BigEndian.PutUint64(b.buf[b.writerIndex:], v)
	b.writerIndex += 8
}

// Prepend copies data directly in front of the readable region.
// Panics if the prepend slack is too small.
func (b *ByteBuffer) Prepend(data []byte) {
	if len(data) > b.PrependableBytes() {
		panic(fmt.Sprintf("buffer: prepend of %d bytes exceeds %d prependable bytes", len(data), b.PrependableBytes()))
	}
	b.readerIndex -= len(data)
	copy(b.buf[b.readerIndex:], data)
}

// PrependU8 prepends one byte
func (b *ByteBuffer) PrependU8(v uint8) {
	b.Prepend([]byte{v})
}

// PrependU16 prepends a big-endian uint16
func (b *ByteBuffer) PrependU16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.Prepend(tmp[:])
}

// PrependU32 prepends a big-endian uint32
func (b *ByteBuffer) PrependU32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.Prepend(tmp[:])
}

// EnsureWritable makes sure at least n bytes can be appended without another check
func (b *ByteBuffer) EnsureWritable(n int) {
	if b.WritableBytes() < n {
		b.makeSpace(n)
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// makeSpace either compacts the live bytes to the front of the prepend slack or
// grows the storage. Both keep the consumed/unconsumed split unchanged.
func (b *ByteBuffer) makeSpace(n int) {
	readable := b.ReadableBytes()

	if b.WritableBytes()+b.PrependableBytes() >= n+b.reserved {
		// enough slack in total, move readable data to the front
		copy(b.buf[b.reserved:], b.buf[b.readerIndex:b.writerIndex])
		b.readerIndex = b.reserved
		b.writerIndex = b.reserved + readable
		return
	}

	// grow: at least double, at least what is needed
	newSize := 2 * len(b.buf)
	if need := b.reserved + readable + n; newSize < need {
		newSize = need
	}
	grown := make([]byte, newSize)
	copy(grown[b.reserved:], b.buf[b.readerIndex:b.writerIndex])
	b.buf = grown
	b.readerIndex = b.reserved
	b.writerIndex = b.reserved + readable
}

// mustReadable panics if fewer than n bytes are readable
func (b *ByteBuffer) mustReadable(n int) {
	if n < 0 || n > b.ReadableBytes() {
		panic(fmt.Sprintf("buffer: need %d readable bytes, have %d", n, b.ReadableBytes()))
	}
}
