package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
)

// Relay is a scripted relay provider for tests. Allocations it creates are
// resolvable through their join codes, as the real provider's are.
type Relay struct {
	mu sync.Mutex

	// Scripted failures
	AllocateErr error
	JoinCodeErr error
	JoinErr     error

	// Call counts
	AllocateCalls int
	JoinCalls     int

	allocations map[string]*providers.Allocation // by join code
	nextID      int
}

var _ providers.Relay = (*Relay)(nil)

// NewRelay creates an empty fake relay
func NewRelay() *Relay {
	return &Relay{allocations: make(map[string]*providers.Allocation)}
}

func (f *Relay) CreateAllocation(ctx context.Context, maxPlayers int) (*providers.Allocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AllocateCalls++
	if f.AllocateErr != nil {
		return nil, f.AllocateErr
	}
	f.nextID++
	alloc := &providers.Allocation{
		ID:             fmt.Sprintf("alloc-%d", f.nextID),
		Server:         providers.RelayServer{IP: "127.0.0.1", Port: 7777},
		Region:         "local",
		AllocationID:   []byte(fmt.Sprintf("alloc-%d", f.nextID)),
		Key:            []byte("key"),
		ConnectionData: []byte("host-conn"),
	}
	f.allocations[fmt.Sprintf("RLY%d", f.nextID)] = alloc
	return alloc, nil
}

func (f *Relay) JoinCode(ctx context.Context, allocationID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.JoinCodeErr != nil {
		return "", f.JoinCodeErr
	}
	for code, alloc := range f.allocations {
		if alloc.ID == allocationID {
			return code, nil
		}
	}
	return "", model.ErrAllocationFailed
}

func (f *Relay) JoinAllocation(ctx context.Context, joinCode string) (*providers.JoinedAllocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JoinCalls++
	if f.JoinErr != nil {
		return nil, f.JoinErr
	}
	alloc, ok := f.allocations[joinCode]
	if !ok {
		return nil, model.ErrJoinFailed
	}
	return &providers.JoinedAllocation{
		Allocation: providers.Allocation{
			ID:             alloc.ID,
			Server:         alloc.Server,
			Region:         alloc.Region,
			AllocationID:   alloc.AllocationID,
			Key:            alloc.Key,
			ConnectionData: []byte("client-conn"),
		},
		HostConnectionData: alloc.ConnectionData,
	}, nil
}
