package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
)

// Bridge allocates or joins relay slots and immediately hands the
// resulting credentials to the transport. Credentials are not retained.
// Failures are terminal for the current connection attempt; nothing is
// retried here.
type Bridge struct {
	relay     providers.Relay
	transport providers.Transport
	logger    *slog.Logger
}

// NewBridge creates a relay bridge
func NewBridge(relay providers.Relay, transport providers.Transport, logger *slog.Logger) *Bridge {
	return &Bridge{
		relay:     relay,
		transport: transport,
		logger:    logger.With(slog.String("component", "relay_bridge")),
	}
}

// HostAllocation is what the host path leaves behind after the transport
// is configured: the shareable join code and the allocation's region
type HostAllocation struct {
	JoinCode string
	Region   string
}

// Allocate creates a host-side allocation, derives its join code, and
// configures the transport for the host role
func (b *Bridge) Allocate(ctx context.Context, maxPlayers int) (HostAllocation, error) {
	alloc, err := b.relay.CreateAllocation(ctx, maxPlayers)
	if err != nil {
		return HostAllocation{}, wrap(model.ErrAllocationFailed, err)
	}

	code, err := b.relay.JoinCode(ctx, alloc.ID)
	if err != nil {
		return HostAllocation{}, wrap(model.ErrAllocationFailed, err)
	}

	creds := model.RelayCredentials{
		IP:             alloc.Server.IP,
		Port:           alloc.Server.Port,
		AllocationID:   alloc.AllocationID,
		Key:            alloc.Key,
		ConnectionData: alloc.ConnectionData,
	}
	if err := b.transport.ConfigureAsHost(creds); err != nil {
		return HostAllocation{}, wrap(model.ErrAllocationFailed, err)
	}

	b.logger.Info("relay configured for host",
		slog.String("allocation_id", alloc.ID),
		slog.String("join_code", code))
	return HostAllocation{JoinCode: code, Region: alloc.Region}, nil
}

// Join resolves a join code to an allocation and configures the transport
// for the client role
func (b *Bridge) Join(ctx context.Context, joinCode string) error {
	alloc, err := b.relay.JoinAllocation(ctx, joinCode)
	if err != nil {
		return wrap(model.ErrJoinFailed, err)
	}

	creds := model.RelayCredentials{
		IP:                 alloc.Server.IP,
		Port:               alloc.Server.Port,
		AllocationID:       alloc.AllocationID,
		Key:                alloc.Key,
		ConnectionData:     alloc.ConnectionData,
		HostConnectionData: alloc.HostConnectionData,
	}
	if err := b.transport.ConfigureAsClient(creds); err != nil {
		return wrap(model.ErrJoinFailed, err)
	}

	b.logger.Info("relay configured for client", slog.String("join_code", joinCode))
	return nil
}

func wrap(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
