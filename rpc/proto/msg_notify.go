package proto

import "github.com/ValentinKolb/csIPC/lib/buffer"

// NotifyMessage carries a generic notification code with string parameters.
// At most 255 parameters can be sent.
type NotifyMessage struct {
	Timestamp uint64
	NotiCode  uint32
	Params    []string
}

func (m *NotifyMessage) Kind() Kind { return Kind{TypeNotify, CodeNotifyMessage} }

func (m *NotifyMessage) EncodePayload(buf *buffer.ByteBuffer) error {
	w := fieldWriter{buf: buf}
	w.u64(m.Timestamp)
	w.u32(m.NotiCode)
	w.strList32(m.Params, 1)
	return w.err
}

func (m *NotifyMessage) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.Timestamp = r.u64()
	m.NotiCode = r.u32()
	m.Params = r.strList32(1)
	return r.err
}

// DIASStatusNotify reports the state of the display assistant service
type DIASStatusNotify struct {
	Status uint8
}

func (m *DIASStatusNotify) Kind() Kind { return Kind{TypeNotify, CodeDIASStatus} }

func (m *DIASStatusNotify) EncodePayload(buf *buffer.ByteBuffer) error {
	buf.AppendU8(m.Status)
	return nil
}

func (m *DIASStatusNotify) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.Status = r.u8()
	return r.err
}

// AuthViaIndexRequest selects an authentication method by index
type AuthViaIndexRequest struct {
	Index uint32
}

func (m *AuthViaIndexRequest) Kind() Kind { return Kind{TypeRequest, CodeAuthViaIndex} }

func (m *AuthViaIndexRequest) EncodePayload(buf *buffer.ByteBuffer) error {
	buf.AppendU32(m.Index)
	return nil
}

func (m *AuthViaIndexRequest) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.Index = r.u32()
	return r.err
}

// AuthViaIndexResponse answers an AuthViaIndexRequest
type AuthViaIndexResponse struct {
	AuthResult uint8
}

func (m *AuthViaIndexResponse) Kind() Kind { return Kind{TypeResponse, CodeAuthViaIndex} }

func (m *AuthViaIndexResponse) EncodePayload(buf *buffer.ByteBuffer) error {
	buf.AppendU8(m.AuthResult)
	return nil
}

func (m *AuthViaIndexResponse) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.AuthResult = r.u8()
	return r.err
}

// ServiceShutdownNotify announces that the service is going down
type ServiceShutdownNotify struct {
	Reason uint8
}

func (m *ServiceShutdownNotify) Kind() Kind { return Kind{TypeNotify, CodeServiceShutdown} }

func (m *ServiceShutdownNotify) EncodePayload(buf *buffer.ByteBuffer) error {
	buf.AppendU8(m.Reason)
	return nil
}

func (m *ServiceShutdownNotify) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.Reason = r.u8()
	return r.err
}
