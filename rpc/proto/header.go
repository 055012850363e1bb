package proto

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/csIPC/lib/buffer"
)

const (
	// TagLen is the length of the fixed tag at the start of every frame
	TagLen = 5
	// HeaderLen is the length of the fixed frame header
	HeaderLen = TagLen + 1 + 1 + 4
)

// Tag starts every frame
var Tag = [TagLen]byte{'R', 'T', 'K', 'C', 'S'}

// --------------------------------------------------------------------------
// Message type and code
// --------------------------------------------------------------------------

// MessageType is the second header field
type MessageType uint8

const (
	TypeRequest  MessageType = 0
	TypeResponse MessageType = 1
	TypeNotify   MessageType = 2
)

// String returns the string representation of a MessageType
func (t MessageType) String() string {
	switch t {
	case TypeRequest:
		return "request"
	case TypeResponse:
		return "response"
	case TypeNotify:
		return "notify"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the three defined message types
func (t MessageType) Valid() bool {
	return t <= TypeNotify
}

// Code selects the payload schema
type Code uint8

const (
	CodeConnectStatus      Code = 1
	CodeSendFile           Code = 2
	CodeUpdateProgress     Code = 3
	CodeUpdateClientStatus Code = 4
	CodeUpdateSystemInfo   Code = 5
	CodeDragFile           Code = 6
	CodeNotifyMessage      Code = 7
	CodeDIASStatus         Code = 8
	CodeAuthViaIndex       Code = 9
	CodeClientList         Code = 10
	CodeCancelTransfer     Code = 11
	CodeTransferError      Code = 12
	CodeServiceShutdown    Code = 13
	CodeUpdateDeviceName   Code = 14
)

// String returns the string representation of a Code
func (c Code) String() string {
	switch c {
	case CodeConnectStatus:
		return "connectStatus"
	case CodeSendFile:
		return "sendFile"
	case CodeUpdateProgress:
		return "updateProgress"
	case CodeUpdateClientStatus:
		return "updateClientStatus"
	case CodeUpdateSystemInfo:
		return "updateSystemInfo"
	case CodeDragFile:
		return "dragFile"
	case CodeNotifyMessage:
		return "notifyMessage"
	case CodeDIASStatus:
		return "diasStatus"
	case CodeAuthViaIndex:
		return "authViaIndex"
	case CodeClientList:
		return "clientList"
	case CodeCancelTransfer:
		return "cancelTransfer"
	case CodeTransferError:
		return "transferError"
	case CodeServiceShutdown:
		return "serviceShutdown"
	case CodeUpdateDeviceName:
		return "updateDeviceName"
	default:
		return fmt.Sprintf("code(%d)", uint8(c))
	}
}

// Kind identifies a record type on the wire
type Kind struct {
	Type MessageType
	Code Code
}

func (k Kind) String() string {
	return k.Type.String() + "/" + k.Code.String()
}

// --------------------------------------------------------------------------
// Header
// --------------------------------------------------------------------------

// Header is the decoded fixed part of a frame
type Header struct {
	Type          MessageType
	Code          Code
	ContentLength uint32
}

// Kind returns the record kind the header announces
func (h Header) Kind() Kind {
	return Kind{Type: h.Type, Code: h.Code}
}

// FrameLen returns the total length of the frame including the header
func (h Header) FrameLen() int {
	return HeaderLen + int(h.ContentLength)
}

// PeekHeader reads the header at the read cursor of buf without consuming it.
//
// A mismatching tag is reported as soon as the buffered prefix differs from it,
// even if fewer than HeaderLen bytes are buffered.
func PeekHeader(buf *buffer.ByteBuffer) (Header, error) {
	readable := buf.ReadableBytes()

	n := min(readable, TagLen)
	if !bytes.Equal(buf.PeekAt(0, n), Tag[:n]) {
		return Header{}, fmt.Errorf("%w: expected tag %q, got %q", ErrMalformedHeader, Tag[:n], buf.PeekAt(0, n))
	}

	if readable < HeaderLen {
		return Header{}, ErrNeedMoreData
	}

	raw := buf.PeekAt(TagLen, HeaderLen-TagLen)
	h := Header{
		Type:          MessageType(raw[0]),
		Code:          Code(raw[1]),
		ContentLength: binary.BigEndian.Uint32(raw[2:]),
	}
	if !h.Type.Valid() {
		return Header{}, fmt.Errorf("%w: invalid message type %d", ErrMalformedHeader, uint8(h.Type))
	}
	return h, nil
}

// prependHeader injects the header in front of an encoded payload
func prependHeader(buf *buffer.ByteBuffer, kind Kind) {
	buf.PrependU32(uint32(buf.ReadableBytes()))
	buf.PrependU8(uint8(kind.Code))
	buf.PrependU8(uint8(kind.Type))
	buf.Prepend(Tag[:])
}
