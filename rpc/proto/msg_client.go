package proto

import "github.com/ValentinKolb/csIPC/lib/buffer"

// --------------------------------------------------------------------------
// ConnectStatus
// --------------------------------------------------------------------------

// ConnectStatusRequest asks the peer for its connection state
type ConnectStatusRequest struct{}

func (m *ConnectStatusRequest) Kind() Kind { return Kind{TypeRequest, CodeConnectStatus} }

func (m *ConnectStatusRequest) EncodePayload(*buffer.ByteBuffer) error { return nil }

func (m *ConnectStatusRequest) DecodePayload(*buffer.ByteBuffer) error { return nil }

// ConnectStatusResponse answers a ConnectStatusRequest
type ConnectStatusResponse struct {
	Status uint8
}

func (m *ConnectStatusResponse) Kind() Kind { return Kind{TypeResponse, CodeConnectStatus} }

func (m *ConnectStatusResponse) EncodePayload(buf *buffer.ByteBuffer) error {
	buf.AppendU8(m.Status)
	return nil
}

func (m *ConnectStatusResponse) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.Status = r.u8()
	return r.err
}

// --------------------------------------------------------------------------
// UpdateClientStatus / UpdateSystemInfo / UpdateDeviceName
// --------------------------------------------------------------------------

// UpdateClientStatusNotify announces that a remote client came online or left
type UpdateClientStatusNotify struct {
	Status      uint8
	IP          string
	Port        uint16
	ClientID    ClientID
	DisplayName string
	DeviceType  string
}

func (m *UpdateClientStatusNotify) Kind() Kind { return Kind{TypeNotify, CodeUpdateClientStatus} }

func (m *UpdateClientStatusNotify) EncodePayload(buf *buffer.ByteBuffer) error {
	w := fieldWriter{buf: buf}
	w.u8(m.Status)
	w.str16(m.IP)
	w.u16(m.Port)
	w.clientID(m.ClientID)
	w.str16(m.DisplayName)
	w.str16(m.DeviceType)
	return w.err
}

func (m *UpdateClientStatusNotify) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.Status = r.u8()
	m.IP = r.str16()
	m.Port = r.u16()
	m.ClientID = r.clientID()
	m.DisplayName = r.str16()
	m.DeviceType = r.str16()
	return r.err
}

// Info returns the client list entry described by the notification
func (m *UpdateClientStatusNotify) Info() ClientInfo {
	return ClientInfo{
		IP:          m.IP,
		Port:        m.Port,
		ClientID:    m.ClientID,
		DisplayName: m.DisplayName,
		DeviceType:  m.DeviceType,
	}
}

// UpdateSystemInfoNotify announces the address and version of the service
type UpdateSystemInfoNotify struct {
	IP             string
	Port           uint16
	ServiceVersion string
}

func (m *UpdateSystemInfoNotify) Kind() Kind { return Kind{TypeNotify, CodeUpdateSystemInfo} }

func (m *UpdateSystemInfoNotify) EncodePayload(buf *buffer.ByteBuffer) error {
	w := fieldWriter{buf: buf}
	w.str16(m.IP)
	w.u16(m.Port)
	w.str16(m.ServiceVersion)
	return w.err
}

func (m *UpdateSystemInfoNotify) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.IP = r.str16()
	m.Port = r.u16()
	m.ServiceVersion = r.str16()
	return r.err
}

// UpdateDeviceNameRequest renames a known client
type UpdateDeviceNameRequest struct {
	ClientID    ClientID
	DisplayName string
}

func (m *UpdateDeviceNameRequest) Kind() Kind { return Kind{TypeRequest, CodeUpdateDeviceName} }

func (m *UpdateDeviceNameRequest) EncodePayload(buf *buffer.ByteBuffer) error {
	w := fieldWriter{buf: buf}
	w.clientID(m.ClientID)
	w.str16(m.DisplayName)
	return w.err
}

func (m *UpdateDeviceNameRequest) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.ClientID = r.clientID()
	m.DisplayName = r.str16()
	return r.err
}

// UpdateDeviceNameResponse answers an UpdateDeviceNameRequest
type UpdateDeviceNameResponse struct {
	Status uint8
}

func (m *UpdateDeviceNameResponse) Kind() Kind { return Kind{TypeResponse, CodeUpdateDeviceName} }

func (m *UpdateDeviceNameResponse) EncodePayload(buf *buffer.ByteBuffer) error {
	buf.AppendU8(m.Status)
	return nil
}

func (m *UpdateDeviceNameResponse) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	m.Status = r.u8()
	return r.err
}

// --------------------------------------------------------------------------
// ClientList
// --------------------------------------------------------------------------

// ClientInfo describes one remote client
type ClientInfo struct {
	IP          string
	Port        uint16
	ClientID    ClientID
	DisplayName string
	DeviceType  string
}

// ClientListRequest asks for all known clients
type ClientListRequest struct{}

func (m *ClientListRequest) Kind() Kind { return Kind{TypeRequest, CodeClientList} }

func (m *ClientListRequest) EncodePayload(*buffer.ByteBuffer) error { return nil }

func (m *ClientListRequest) DecodePayload(*buffer.ByteBuffer) error { return nil }

// ClientListResponse answers a ClientListRequest. An empty list decodes to nil.
type ClientListResponse struct {
	Clients []ClientInfo
}

func (m *ClientListResponse) Kind() Kind { return Kind{TypeResponse, CodeClientList} }

func (m *ClientListResponse) EncodePayload(buf *buffer.ByteBuffer) error {
	w := fieldWriter{buf: buf}
	w.count(len(m.Clients), 2)
	for _, c := range m.Clients {
		w.str16(c.IP)
		w.u16(c.Port)
		w.clientID(c.ClientID)
		w.str16(c.DisplayName)
		w.str16(c.DeviceType)
	}
	return w.err
}

func (m *ClientListResponse) DecodePayload(buf *buffer.ByteBuffer) error {
	r := fieldReader{buf: buf}
	n := r.count(2)
	m.Clients = nil
	if r.err != nil || n == 0 {
		return r.err
	}
	clients := make([]ClientInfo, 0, min(n, buf.ReadableBytes()/(ClientIDLen+8)+1))
	for range n {
		var c ClientInfo
		c.IP = r.str16()
		c.Port = r.u16()
		c.ClientID = r.clientID()
		c.DisplayName = r.str16()
		c.DeviceType = r.str16()
		if r.err != nil {
			return r.err
		}
		clients = append(clients, c)
	}
	m.Clients = clients
	return nil
}
