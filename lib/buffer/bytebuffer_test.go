package buffer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBufferCursors(t *testing.T) {
	b := New()
	assert.Equal(t, 0, b.ReadableBytes())
	assert.Equal(t, InitialSize, b.WritableBytes())
	assert.Equal(t, CheapPrepend, b.PrependableBytes())
}

func TestAppendRetrieveIntegers(t *testing.T) {
	b := New()
	b.AppendU8(0xAB)
	b.AppendU16(0x1234)
	b.AppendU32(0xDEADBEEF)
	b.AppendU64(0x0102030405060708)
	require.Equal(t, 1+2+4+8, b.ReadableBytes())

	// network byte order on the wire
	assert.Equal(t, []byte{0xAB, 0x12, 0x34, 0xDE, 0xAD, 0xBE, 0xEF, 1, 2, 3, 4, 5, 6, 7, 8}, b.Peek())

	assert.Equal(t, uint8(0xAB), b.PeekU8())
	assert.Equal(t, uint8(0xAB), b.RetrieveU8())
	assert.Equal(t, uint16(0x1234), b.RetrieveU16())
	assert.Equal(t, uint32(0xDEADBEEF), b.PeekU32())
	assert.Equal(t, uint32(0xDEADBEEF), b.RetrieveU32())
	assert.Equal(t, uint64(0x0102030405060708), b.RetrieveU64())
	assert.Equal(t, 0, b.ReadableBytes())
	assert.Equal(t, CheapPrepend, b.PrependableBytes(), "full retrieve resets the cursors")
}

func TestPeekDoesNotConsume(t *testing.T) {
	b := FromBytes([]byte("hello world"))
	assert.Equal(t, []byte("world"), b.PeekAt(6, 5))
	assert.Equal(t, uint16('h')<<8|uint16('e'), b.PeekU16())
	assert.Equal(t, 11, b.ReadableBytes())
}

func TestRetrieveAsBytesCopies(t *testing.T) {
	b := FromBytes([]byte("abcdef"))
	out := b.RetrieveAsBytes(3)
	assert.Equal(t, []byte("abc"), out)

	// mutating the returned slice must not touch the buffer
	out[0] = 'X'
	assert.Equal(t, []byte("def"), b.Peek())
	assert.Equal(t, []byte("def"), b.RetrieveAllAsBytes())
	assert.Equal(t, 0, b.ReadableBytes())
}

func TestPrependHeader(t *testing.T) {
	b := New()
	b.Append([]byte("payload"))
	b.PrependU32(7)
	b.PrependU8(2)
	b.Prepend([]byte("TAG"))

	assert.Equal(t, CheapPrepend-3-1-4, b.PrependableBytes())
	assert.Equal(t, append([]byte("TAG\x02\x00\x00\x00\x07"), "payload"...), b.Peek())
}

func TestPrependOverflowPanics(t *testing.T) {
	b := New()
	assert.Panics(t, func() { b.Prepend(make([]byte, CheapPrepend+1)) })
}

func TestRetrievePastWriterPanics(t *testing.T) {
	b := FromBytes([]byte{1, 2, 3})
	assert.Panics(t, func() { b.Retrieve(4) })
	assert.Panics(t, func() { b.RetrieveU32() })
	assert.Panics(t, func() { b.PeekU64() })
	assert.Panics(t, func() { b.PeekAt(2, 2) })
	assert.Equal(t, 3, b.ReadableBytes(), "failed reads must not move the cursor")
}

func TestGrowPreservesReadableRegion(t *testing.T) {
	b := NewWithSize(8)
	b.Append([]byte("01234567"))
	b.Retrieve(2)

	big := bytes.Repeat([]byte{'x'}, 100)
	b.Append(big)

	assert.Equal(t, 6+100, b.ReadableBytes())
	assert.Equal(t, append([]byte("234567"), big...), b.Peek())
	assert.Equal(t, CheapPrepend, b.PrependableBytes())
}

func TestCompactionInsteadOfGrowth(t *testing.T) {
	b := NewWithSize(32)
	b.Append(bytes.Repeat([]byte{'a'}, 30))
	b.Retrieve(28)
	capBefore := b.Cap()

	// 2 readable + 20 new fit once the consumed bytes are reclaimed
	b.Append(bytes.Repeat([]byte{'b'}, 20))

	assert.Equal(t, capBefore, b.Cap(), "compaction must not reallocate")
	assert.Equal(t, CheapPrepend, b.PrependableBytes())
	assert.Equal(t, append([]byte("aa"), bytes.Repeat([]byte{'b'}, 20)...), b.Peek())
}

func TestWrapIsAView(t *testing.T) {
	raw := []byte{0, 0, 0, 5, 'x'}
	b := Wrap(raw)
	assert.Equal(t, 0, b.PrependableBytes())
	assert.Equal(t, uint32(5), b.RetrieveU32())
	assert.Equal(t, uint8('x'), b.RetrieveU8())
	assert.Equal(t, 0, b.ReadableBytes())
	assert.Equal(t, 0, b.PrependableBytes())
}

func TestInterleavedAppendRetrieve(t *testing.T) {
	b := NewWithSize(4)
	var want []byte
	for i := 0; i < 1000; i++ {
		chunk := []byte{byte(i), byte(i >> 8), byte(i * 7)}
		b.Append(chunk)
		want = append(want, chunk...)
		if i%3 == 0 {
			n := b.ReadableBytes() / 2
			assert.Equal(t, want[:n], b.RetrieveAsBytes(n))
			want = want[n:]
		}
	}
	assert.Equal(t, want, b.RetrieveAllAsBytes())
}
