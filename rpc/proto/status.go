package proto

// Connection states reported by ConnectStatusResponse and DIASStatusNotify
const (
	StatusDisconnected uint8 = 0
	StatusConnected    uint8 = 1
)

// Result codes carried by responses
const (
	ResultSuccess  uint8 = 0
	ResultFailure  uint8 = 1
	ResultRejected uint8 = 2
	ResultBusy     uint8 = 3
)

// Presence of a remote client in UpdateClientStatusNotify
const (
	ClientOffline uint8 = 0
	ClientOnline  uint8 = 1
)

// Reasons carried by ServiceShutdownNotify
const (
	ShutdownNormal  uint8 = 0
	ShutdownRestart uint8 = 1
	ShutdownError   uint8 = 2
)

// FunctionCode distinguishes single and multi file variants of a record
type FunctionCode uint8

const (
	FunctionSingle FunctionCode = 1
	FunctionMulti  FunctionCode = 2
)

func (f FunctionCode) valid() bool {
	return f == FunctionSingle || f == FunctionMulti
}

// registry lists every record known to NewCodec
var registry = []func() Message{
	func() Message { return &ConnectStatusRequest{} },
	func() Message { return &ConnectStatusResponse{} },
	func() Message { return &SendFileRequest{} },
	func() Message { return &SendFileResponse{} },
	func() Message { return &UpdateProgressNotify{} },
	func() Message { return &UpdateClientStatusNotify{} },
	func() Message { return &UpdateSystemInfoNotify{} },
	func() Message { return &DragFileRequest{} },
	func() Message { return &DragFileResponse{} },
	func() Message { return &NotifyMessage{} },
	func() Message { return &DIASStatusNotify{} },
	func() Message { return &AuthViaIndexRequest{} },
	func() Message { return &AuthViaIndexResponse{} },
	func() Message { return &ClientListRequest{} },
	func() Message { return &ClientListResponse{} },
	func() Message { return &CancelTransferRequest{} },
	func() Message { return &TransferErrorNotify{} },
	func() Message { return &ServiceShutdownNotify{} },
	func() Message { return &UpdateDeviceNameRequest{} },
	func() Message { return &UpdateDeviceNameResponse{} },
}
