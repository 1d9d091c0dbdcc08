package model

// RelayCredentials is the transient credential set handed to the transport.
// HostConnectionData is populated on the client path only. Credentials are
// consumed immediately by the transport and never persisted.
type RelayCredentials struct {
	IP                 string
	Port               uint16
	AllocationID       []byte
	Key                []byte
	ConnectionData     []byte
	HostConnectionData []byte
}
