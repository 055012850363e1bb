package proto

import "errors"

var (
	// ErrNeedMoreData reports an incomplete frame. Nothing was consumed.
	ErrNeedMoreData = errors.New("proto: need more data")
	// ErrMalformedHeader reports a tag mismatch or an invalid message type
	ErrMalformedHeader = errors.New("proto: malformed header")
	// ErrFrameTooLarge reports a content length above the codec limit
	ErrFrameTooLarge = errors.New("proto: frame too large")
	// ErrUnknownMessage reports a well-formed frame of an unregistered kind
	ErrUnknownMessage = errors.New("proto: unknown message")
	// ErrMalformedPayload reports a payload that does not match its schema
	ErrMalformedPayload = errors.New("proto: malformed payload")
	// ErrInvalidMessage reports a record that can't be encoded
	ErrInvalidMessage = errors.New("proto: invalid message")
)

// IsFatal reports whether err means the byte stream can no longer be trusted
func IsFatal(err error) bool {
	return errors.Is(err, ErrMalformedHeader) || errors.Is(err, ErrFrameTooLarge)
}
