package pb

// Transaction is the wire shape of internal/txn.Transaction: an opaque,
// already-encoded payload plus its version. Nothing in this package parses
// Data; see proto/common.proto for the documented contract.
type Transaction struct {
	Version uint64 `json:"version"`
	Data    []byte `json:"data"`
}

// ServiceType mirrors internal/fabric.ServiceType for the wire, kept as a
// separate type so internal/pb never needs to import internal/fabric.
type ServiceType int32

const (
	ServiceTypeGrpcManager ServiceType = iota
	ServiceTypeFullnode
	ServiceTypeLiveDataService
	ServiceTypeHistoricalDataService
)

// HeartbeatRequest is sent by the fabric's heartbeat loop to a peer
// manager, or by any peer announcing itself to a manager.
type HeartbeatRequest struct {
	ServiceType        ServiceType `json:"service_type"`
	Address            string      `json:"address"`
	KnownLatestVersion uint64      `json:"known_latest_version"`
}

// HeartbeatResponse reports the receiver's own known_latest_version.
type HeartbeatResponse struct {
	KnownLatestVersion uint64 `json:"known_latest_version"`
}

// PingRequest is the lighter-weight, non-manager peer check.
type PingRequest struct {
	KnownLatestVersion uint64 `json:"known_latest_version"`
}

// PingResponse is DataServiceInfo: the responder's self-reported state.
type PingResponse struct {
	KnownLatestVersion uint64 `json:"known_latest_version"`
	ActiveStreams      int32  `json:"active_streams"`
}

// GetTransactionsRequest is the Manager's non-streaming read.
type GetTransactionsRequest struct {
	StartVersion uint64 `json:"start_version"`
	MaxSizeBytes int64  `json:"max_size_bytes"`
}

// GetTransactionsResponse carries a single resolved chunk.
type GetTransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

// StreamTransactionsRequest opens a DataService/RawData live subscription.
// EndVersion of 0 means unbounded (stream forever). BatchSize of 0 means
// the server's default (10000) per-message transaction-count cap applies.
type StreamTransactionsRequest struct {
	StartVersion    uint64 `json:"start_version"`
	EndVersion      uint64 `json:"end_version"`
	MaxBytesPerSend int64  `json:"max_bytes_per_send"`
	BatchSize       uint32 `json:"batch_size"`
}

// StreamTransactionsResponse is one batch sent down a live subscription.
type StreamTransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}
