package providers

import "context"

// RelayServer is the relay endpoint the transport connects to
type RelayServer struct {
	IP   string
	Port uint16
}

// Allocation is a host-side relay allocation
type Allocation struct {
	ID             string
	Server         RelayServer
	Region         string
	AllocationID   []byte
	Key            []byte
	ConnectionData []byte
}

// JoinedAllocation is a client-side relay allocation resolved from a join
// code, carrying both directions' connection data
type JoinedAllocation struct {
	Allocation
	HostConnectionData []byte
}

// Relay is the relay provider: NAT-traversing routing slots plus the join
// codes that resolve to them
type Relay interface {
	CreateAllocation(ctx context.Context, maxPlayers int) (*Allocation, error)
	JoinCode(ctx context.Context, allocationID string) (string, error)
	JoinAllocation(ctx context.Context, joinCode string) (*JoinedAllocation, error)
}
