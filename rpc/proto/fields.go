package proto

import (
	"bytes"
	"fmt"
	"math"

	"github.com/ValentinKolb/csIPC/lib/buffer"
	"golang.org/x/text/encoding/unicode"
)

// ClientIDLen is the fixed width of a client identifier on the wire
const ClientIDLen = 46

// ClientID identifies a remote peer of the file transfer service. Shorter
// identifiers are padded with zero bytes.
type ClientID [ClientIDLen]byte

// NewClientID builds a ClientID from s. It fails if s does not fit.
func NewClientID(s string) (ClientID, error) {
	var id ClientID
	if len(s) > ClientIDLen {
		return id, fmt.Errorf("%w: client id of %d bytes exceeds %d", ErrInvalidMessage, len(s), ClientIDLen)
	}
	copy(id[:], s)
	return id, nil
}

// MustClientID is like NewClientID but panics if s does not fit
func MustClientID(s string) ClientID {
	id, err := NewClientID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the identifier without its zero padding
func (id ClientID) String() string {
	return string(bytes.TrimRight(id[:], "\x00"))
}

// IsZero reports whether the identifier is unset
func (id ClientID) IsZero() bool {
	return id == ClientID{}
}

// --------------------------------------------------------------------------
// UTF-16LE transcoding
// --------------------------------------------------------------------------

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func encodeUTF16(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return utf16le.NewEncoder().Bytes([]byte(s))
}

func decodeUTF16(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	if len(b)%2 != 0 {
		return "", fmt.Errorf("%w: utf-16 string has odd length %d", ErrMalformedPayload, len(b))
	}
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return string(out), nil
}

// --------------------------------------------------------------------------
// Field writer
// --------------------------------------------------------------------------

// fieldWriter appends payload fields to a buffer. The first error sticks and
// all later writes become no-ops.
type fieldWriter struct {
	buf *buffer.ByteBuffer
	err error
}

func (w *fieldWriter) u8(v uint8) {
	if w.err == nil {
		w.buf.AppendU8(v)
	}
}

func (w *fieldWriter) u16(v uint16) {
	if w.err == nil {
		w.buf.AppendU16(v)
	}
}

func (w *fieldWriter) u32(v uint32) {
	if w.err == nil {
		w.buf.AppendU32(v)
	}
}

func (w *fieldWriter) u64(v uint64) {
	if w.err == nil {
		w.buf.AppendU64(v)
	}
}

func (w *fieldWriter) clientID(id ClientID) {
	if w.err == nil {
		w.buf.Append(id[:])
	}
}

// str16 writes a string with a 2 byte length prefix
func (w *fieldWriter) str16(s string) {
	w.str(s, 2)
}

// str32 writes a string with a 4 byte length prefix
func (w *fieldWriter) str32(s string) {
	w.str(s, 4)
}

func (w *fieldWriter) str(s string, prefix int) {
	if w.err != nil {
		return
	}
	raw, err := encodeUTF16(s)
	if err != nil {
		w.err = fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		return
	}
	switch prefix {
	case 2:
		if len(raw) > math.MaxUint16 {
			w.err = fmt.Errorf("%w: string of %d bytes exceeds 16 bit length prefix", ErrInvalidMessage, len(raw))
			return
		}
		w.buf.AppendU16(uint16(len(raw)))
	default:
		if uint64(len(raw)) > math.MaxUint32 {
			w.err = fmt.Errorf("%w: string of %d bytes exceeds 32 bit length prefix", ErrInvalidMessage, len(raw))
			return
		}
		w.buf.AppendU32(uint32(len(raw)))
	}
	w.buf.Append(raw)
}

// count writes a list length with the given width in bytes
func (w *fieldWriter) count(n int, width int) {
	if w.err != nil {
		return
	}
	var limit uint64
	switch width {
	case 1:
		limit = math.MaxUint8
	case 2:
		limit = math.MaxUint16
	default:
		limit = math.MaxUint32
	}
	if uint64(n) > limit {
		w.err = fmt.Errorf("%w: list of %d elements exceeds %d byte count", ErrInvalidMessage, n, width)
		return
	}
	switch width {
	case 1:
		w.buf.AppendU8(uint8(n))
	case 2:
		w.buf.AppendU16(uint16(n))
	default:
		w.buf.AppendU32(uint32(n))
	}
}

// strList32 writes a counted list of strings with 4 byte length prefixes
func (w *fieldWriter) strList32(list []string, countWidth int) {
	w.count(len(list), countWidth)
	for _, s := range list {
		w.str32(s)
	}
}

// --------------------------------------------------------------------------
// Field reader
// --------------------------------------------------------------------------

// fieldReader consumes payload fields from a buffer. The first error sticks
// and all later reads return zero values.
type fieldReader struct {
	buf *buffer.ByteBuffer
	err error
}

func (r *fieldReader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.buf.ReadableBytes() < n {
		r.err = fmt.Errorf("%w: need %d bytes, have %d", ErrMalformedPayload, n, r.buf.ReadableBytes())
		return false
	}
	return true
}

func (r *fieldReader) u8() uint8 {
	if !r.need(1) {
		return 0
	}
	return r.buf.RetrieveU8()
}

func (r *fieldReader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	return r.buf.RetrieveU16()
}

func (r *fieldReader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	return r.buf.RetrieveU32()
}

func (r *fieldReader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	return r.buf.RetrieveU64()
}

func (r *fieldReader) clientID() ClientID {
	var id ClientID
	if !r.need(ClientIDLen) {
		return id
	}
	copy(id[:], r.buf.PeekAt(0, ClientIDLen))
	r.buf.Retrieve(ClientIDLen)
	return id
}

func (r *fieldReader) str16() string {
	return r.str(int(r.u16()))
}

func (r *fieldReader) str32() string {
	n := r.u32()
	if r.err == nil && uint64(n) > uint64(r.buf.ReadableBytes()) {
		r.err = fmt.Errorf("%w: string of %d bytes, have %d", ErrMalformedPayload, n, r.buf.ReadableBytes())
		return ""
	}
	return r.str(int(n))
}

func (r *fieldReader) str(n int) string {
	if !r.need(n) {
		return ""
	}
	s, err := decodeUTF16(r.buf.PeekAt(0, n))
	if err != nil {
		r.err = err
		return ""
	}
	r.buf.Retrieve(n)
	return s
}

func (r *fieldReader) count(width int) int {
	switch width {
	case 1:
		return int(r.u8())
	case 2:
		return int(r.u16())
	default:
		return int(r.u32())
	}
}

// strList32 reads a counted list of strings with 4 byte length prefixes. An
// empty list decodes to nil.
func (r *fieldReader) strList32(countWidth int) []string {
	n := r.count(countWidth)
	if r.err != nil || n == 0 {
		return nil
	}
	// every element needs at least its length prefix
	if n > r.buf.ReadableBytes()/4 {
		r.err = fmt.Errorf("%w: list of %d strings does not fit %d bytes", ErrMalformedPayload, n, r.buf.ReadableBytes())
		return nil
	}
	list := make([]string, 0, n)
	for range n {
		list = append(list, r.str32())
	}
	if r.err != nil {
		return nil
	}
	return list
}
