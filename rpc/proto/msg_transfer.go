package proto

import (
	"fmt"

	"github.com/ValentinKolb/csIPC/lib/buffer"
)

// --------------------------------------------------------------------------
// SendFile
// --------------------------------------------------------------------------

// SendFileRequest asks the service to send one or more files to a client
type SendFileRequest struct {
	IP         string
	Port       uint16
	ClientID   ClientID
	FileSize   uint64
	Timestamp  uint64
	FileName   string
	ExtraPaths []string
}

func (m *SendFileRequest) Kind() Kind { return Kind{TypeRequest, CodeSendFile} }

func (m *SendFileRequest) EncodePayload(buf *buffer.ByteBuffer) error {
	w := fieldWriter{buf: buf}
	w.str16(m.IP)
	w.u16(m.Port)
	w.clientID(m.ClientID)
	w.u64(m.FileSize)
	w.u64(m.Timestamp)
	w.str32(m.FileName)
	w.strList32(m.ExtraPaths, 4)
	return w.err
}

func (m *SendFileRequest) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.IP = r.str16()
	m.Port = r.u16()
	m.ClientID = r.clientID()
	m.FileSize = r.u64()
	m.Timestamp = r.u64()
	m.FileName = r.str32()
	m.ExtraPaths = r.strList32(4)
	return r.err
}

// SendFileResponse acknowledges a SendFileRequest
type SendFileResponse struct {
	Status    uint8
	IP        string
	Port      uint16
	ClientID  ClientID
	Timestamp uint64
}

func (m *SendFileResponse) Kind() Kind { return Kind{TypeResponse, CodeSendFile} }

func (m *SendFileResponse) EncodePayload(buf *buffer.ByteBuffer) error {
	w := fieldWriter{buf: buf}
	w.u8(m.Status)
	w.str16(m.IP)
	w.u16(m.Port)
	w.clientID(m.ClientID)
	w.u64(m.Timestamp)
	return w.err
}

func (m *SendFileResponse) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.Status = r.u8()
	m.IP = r.str16()
	m.Port = r.u16()
	m.ClientID = r.clientID()
	m.Timestamp = r.u64()
	return r.err
}

// --------------------------------------------------------------------------
// UpdateProgress
// --------------------------------------------------------------------------

// MultiFileProgress extends UpdateProgressNotify for multi file transfers
type MultiFileProgress struct {
	FileCount       uint32
	SentFileCount   uint32
	CurrentFileName string
	CurrentFileSize uint64
	CurrentSentSize uint64
}

// UpdateProgressNotify reports the progress of a running transfer.
// Multi must be set iff FunctionCode is FunctionMulti.
type UpdateProgressNotify struct {
	FunctionCode FunctionCode
	IP           string
	Port         uint16
	ClientID     ClientID
	Timestamp    uint64
	FileSize     uint64
	SentSize     uint64
	Multi        *MultiFileProgress
}

func (m *UpdateProgressNotify) Kind() Kind { return Kind{TypeNotify, CodeUpdateProgress} }

func (m *UpdateProgressNotify) EncodePayload(buf *buffer.ByteBuffer) error {
	if !m.FunctionCode.valid() {
		return fmt.Errorf("%w: function code %d", ErrInvalidMessage, m.FunctionCode)
	}
	if (m.FunctionCode == FunctionMulti) != (m.Multi != nil) {
		return fmt.Errorf("%w: multi file fields must be set iff function code is multi", ErrInvalidMessage)
	}
	w := fieldWriter{buf: buf}
	w.u8(uint8(m.FunctionCode))
	w.str16(m.IP)
	w.u16(m.Port)
	w.clientID(m.ClientID)
	w.u64(m.Timestamp)
	w.u64(m.FileSize)
	w.u64(m.SentSize)
	if m.Multi != nil {
		w.u32(m.Multi.FileCount)
		w.u32(m.Multi.SentFileCount)
		w.str32(m.Multi.CurrentFileName)
		w.u64(m.Multi.CurrentFileSize)
		w.u64(m.Multi.CurrentSentSize)
	}
	return w.err
}

func (m *UpdateProgressNotify) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.FunctionCode = FunctionCode(r.u8())
	if r.err == nil && !m.FunctionCode.valid() {
		return fmt.Errorf("%w: function code %d", ErrMalformedPayload, m.FunctionCode)
	}
	m.IP = r.str16()
	m.Port = r.u16()
	m.ClientID = r.clientID()
	m.Timestamp = r.u64()
	m.FileSize = r.u64()
	m.SentSize = r.u64()
	m.Multi = nil
	if m.FunctionCode == FunctionMulti {
		multi := &MultiFileProgress{}
		multi.FileCount = r.u32()
		multi.SentFileCount = r.u32()
		multi.CurrentFileName = r.str32()
		multi.CurrentFileSize = r.u64()
		multi.CurrentSentSize = r.u64()
		m.Multi = multi
	}
	return r.err
}

// --------------------------------------------------------------------------
// DragFile
// --------------------------------------------------------------------------

// DragFileRequest hands files dropped onto a client to the service. FileName
// is sent for FunctionSingle, Paths for FunctionMulti. The other field is not
// transmitted.
type DragFileRequest struct {
	FunctionCode FunctionCode
	Timestamp    uint64
	IP           string
	Port         uint16
	ClientID     ClientID
	FileSize     uint64
	FileName     string
	Paths        []string
}

func (m *DragFileRequest) Kind() Kind { return Kind{TypeRequest, CodeDragFile} }

func (m *DragFileRequest) EncodePayload(buf *buffer.ByteBuffer) error {
	if !m.FunctionCode.valid() {
		return fmt.Errorf("%w: function code %d", ErrInvalidMessage, m.FunctionCode)
	}
	w := fieldWriter{buf: buf}
	w.u8(uint8(m.FunctionCode))
	w.u64(m.Timestamp)
	w.str16(m.IP)
	w.u16(m.Port)
	w.clientID(m.ClientID)
	w.u64(m.FileSize)
	if m.FunctionCode == FunctionSingle {
		w.str32(m.FileName)
	} else {
		w.strList32(m.Paths, 4)
	}
	return w.err
}

func (m *DragFileRequest) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.FunctionCode = FunctionCode(r.u8())
	if r.err == nil && !m.FunctionCode.valid() {
		return fmt.Errorf("%w: function code %d", ErrMalformedPayload, m.FunctionCode)
	}
	m.Timestamp = r.u64()
	m.IP = r.str16()
	m.Port = r.u16()
	m.ClientID = r.clientID()
	m.FileSize = r.u64()
	m.FileName, m.Paths = "", nil
	if m.FunctionCode == FunctionSingle {
		m.FileName = r.str32()
	} else {
		m.Paths = r.strList32(4)
	}
	return r.err
}

// DragFileResponse acknowledges a DragFileRequest
type DragFileResponse struct {
	Status    uint8
	Timestamp uint64
	ClientID  ClientID
}

func (m *DragFileResponse) Kind() Kind { return Kind{TypeResponse, CodeDragFile} }

func (m *DragFileResponse) EncodePayload(buf *buffer.ByteBuffer) error {
	w := fieldWriter{buf: buf}
	w.u8(m.Status)
	w.u64(m.Timestamp)
	w.clientID(m.ClientID)
	return w.err
}

func (m *DragFileResponse) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.Status = r.u8()
	m.Timestamp = r.u64()
	m.ClientID = r.clientID()
	return r.err
}

// --------------------------------------------------------------------------
// CancelTransfer / TransferError
// --------------------------------------------------------------------------

// CancelTransferRequest aborts the transfer identified by client and timestamp
type CancelTransferRequest struct {
	ClientID  ClientID
	Timestamp uint64
}

func (m *CancelTransferRequest) Kind() Kind { return Kind{TypeRequest, CodeCancelTransfer} }

func (m *CancelTransferRequest) EncodePayload(buf *buffer.ByteBuffer) error {
	w := fieldWriter{buf: buf}
	w.clientID(m.ClientID)
	w.u64(m.Timestamp)
	return w.err
}

func (m *CancelTransferRequest) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.ClientID = r.clientID()
	m.Timestamp = r.u64()
	return r.err
}

// TransferErrorNotify reports a failed transfer
type TransferErrorNotify struct {
	ClientID  ClientID
	Timestamp uint64
	ErrorCode uint32
	Message   string
}

func (m *TransferErrorNotify) Kind() Kind { return Kind{TypeNotify, CodeTransferError} }

func (m *TransferErrorNotify) EncodePayload(buf *buffer.ByteBuffer) error {
	w := fieldWriter{buf: buf}
	w.clientID(m.ClientID)
	w.u64(m.Timestamp)
	w.u32(m.ErrorCode)
	w.str32(m.Message)
	return w.err
}

func (m *TransferErrorNotify) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.ClientID = r.clientID()
	m.Timestamp = r.u64()
	m.ErrorCode = r.u32()
	m.Message = r.str32()
	return r.err
}
