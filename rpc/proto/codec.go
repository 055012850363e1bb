package proto

import (
	"fmt"
	"math"

	"github.com/ValentinKolb/csIPC/lib/buffer"
)

// Message is implemented by every typed record of the protocol
type Message interface {
	// Kind returns the header type and code of the record
	Kind() Kind
	// EncodePayload appends the payload fields to buf
	EncodePayload(buf *buffer.ByteBuffer) error
	// DecodePayload reads the payload fields from buf. buf holds exactly one
	// payload, trailing bytes are ignored.
	DecodePayload(buf *buffer.ByteBuffer) error
}

// Encode serializes m into a new buffer holding one complete frame. The header
// is prepended after the payload has been written, so the payload is never
// copied.
func Encode(m Message) (*buffer.ByteBuffer, error) {
	buf := buffer.New()
	if err := m.EncodePayload(buf); err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	if uint64(buf.ReadableBytes()) > math.MaxUint32 {
		return nil, fmt.Errorf("encode %s: %w: payload of %d bytes", m.Kind(), ErrFrameTooLarge, buf.ReadableBytes())
	}
	prependHeader(buf, m.Kind())
	return buf, nil
}

// --------------------------------------------------------------------------
// Codec
// --------------------------------------------------------------------------

// Codec maps message kinds to record types and enforces a content length limit.
// A Codec is read-only after construction and safe for concurrent use.
type Codec struct {
	factories        map[Kind]func() Message
	maxContentLength uint32
}

// NewCodec creates a codec that knows every record of the protocol.
// A maxContentLength of 0 disables the limit.
func NewCodec(maxContentLength uint32) *Codec {
	if maxContentLength == 0 {
		maxContentLength = math.MaxUint32
	}
	c := &Codec{
		factories:        make(map[Kind]func() Message, len(registry)),
		maxContentLength: maxContentLength,
	}
	for _, factory := range registry {
		c.Register(factory)
	}
	return c
}

// Register adds a record type. It panics if the kind is already registered.
// Register must not be called once the codec is in use.
func (c *Codec) Register(factory func() Message) {
	kind := factory().Kind()
	if _, ok := c.factories[kind]; ok {
		panic(fmt.Sprintf("proto: kind %s registered twice", kind))
	}
	c.factories[kind] = factory
}

// Knows reports whether a record type is registered for kind
func (c *Codec) Knows(kind Kind) bool {
	_, ok := c.factories[kind]
	return ok
}

// MaxContentLength returns the largest accepted payload length
func (c *Codec) MaxContentLength() uint32 {
	return c.maxContentLength
}

// Encode serializes m into one frame and checks it against the length limit
func (c *Codec) Encode(m Message) (*buffer.ByteBuffer, error) {
	buf, err := Encode(m)
	if err != nil {
		return nil, err
	}
	if contentLength := buf.ReadableBytes() - HeaderLen; uint64(contentLength) > uint64(c.maxContentLength) {
		return nil, fmt.Errorf("encode %s: %w: payload of %d bytes exceeds %d", m.Kind(), ErrFrameTooLarge, contentLength, c.maxContentLength)
	}
	return buf, nil
}

// EncodeBytes is like Encode but returns the frame as a byte slice
func (c *Codec) EncodeBytes(m Message) ([]byte, error) {
	buf, err := c.Encode(m)
	if err != nil {
		return nil, err
	}
	return buf.Peek(), nil
}

// Decode reads the frame at the read cursor of buf. It never consumes bytes:
// on success, and on ErrUnknownMessage or ErrMalformedPayload, it returns the
// length of the frame so the caller can retrieve it. On any other error
// frameLen is 0.
//
// The returned message does not alias buf.
func (c *Codec) Decode(buf *buffer.ByteBuffer) (msg Message, frameLen int, err error) {
	h, err := PeekHeader(buf)
	if err != nil {
		return nil, 0, err
	}
	if h.ContentLength > c.maxContentLength {
		return nil, 0, fmt.Errorf("%w: %s announces %d bytes, limit is %d", ErrFrameTooLarge, h.Kind(), h.ContentLength, c.maxContentLength)
	}
	if uint64(buf.ReadableBytes()) < uint64(HeaderLen)+uint64(h.ContentLength) {
		return nil, 0, ErrNeedMoreData
	}
	frameLen = h.FrameLen()

	factory, ok := c.factories[h.Kind()]
	if !ok {
		return nil, frameLen, fmt.Errorf("%w: %s", ErrUnknownMessage, h.Kind())
	}

	msg = factory()
	payload := buffer.Wrap(buf.PeekAt(HeaderLen, int(h.ContentLength)))
	if err := msg.DecodePayload(payload); err != nil {
		return nil, frameLen, fmt.Errorf("decode %s: %w", h.Kind(), err)
	}
	return msg, frameLen, nil
}
