package relay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers/fakes"
	"github.com/xrmultiplayer/sessionflow/internal/testutil"
)

func TestAllocateConfiguresHost(t *testing.T) {
	relay := fakes.NewRelay()
	transport := &fakes.Transport{}
	bridge := NewBridge(relay, transport, testutil.NopLogger())

	alloc, err := bridge.Allocate(context.Background(), 4)
	require.NoError(t, err)
	assert.NotEmpty(t, alloc.JoinCode)
	assert.Equal(t, fakes.RoleHost, transport.Role)
	assert.Equal(t, "127.0.0.1", transport.Credentials.IP)
	assert.Empty(t, transport.Credentials.HostConnectionData)
}

func TestJoinConfiguresClient(t *testing.T) {
	relay := fakes.NewRelay()
	hostTransport := &fakes.Transport{}
	host := NewBridge(relay, hostTransport, testutil.NopLogger())

	alloc, err := host.Allocate(context.Background(), 4)
	require.NoError(t, err)

	clientTransport := &fakes.Transport{}
	client := NewBridge(relay, clientTransport, testutil.NopLogger())
	require.NoError(t, client.Join(context.Background(), alloc.JoinCode))

	assert.Equal(t, fakes.RoleClient, clientTransport.Role)
	// The client receives the host's connection data for the return path
	assert.Equal(t, hostTransport.Credentials.ConnectionData,
		clientTransport.Credentials.HostConnectionData)
}

func TestAllocateFailurePropagates(t *testing.T) {
	relay := fakes.NewRelay()
	relay.AllocateErr = errors.New("relay service down")
	transport := &fakes.Transport{}
	bridge := NewBridge(relay, transport, testutil.NopLogger())

	_, err := bridge.Allocate(context.Background(), 4)
	assert.ErrorIs(t, err, model.ErrAllocationFailed)
	assert.Equal(t, fakes.RoleNone, transport.Role)
	// Exactly one attempt: no internal retry
	assert.Equal(t, 1, relay.AllocateCalls)
}

func TestJoinUnknownCode(t *testing.T) {
	bridge := NewBridge(fakes.NewRelay(), &fakes.Transport{}, testutil.NopLogger())

	err := bridge.Join(context.Background(), "XXXXXX")
	assert.ErrorIs(t, err, model.ErrJoinFailed)
}

func TestTransportConfigureFailure(t *testing.T) {
	relay := fakes.NewRelay()
	transport := &fakes.Transport{ConfigureErr: errors.New("port in use")}
	bridge := NewBridge(relay, transport, testutil.NopLogger())

	_, err := bridge.Allocate(context.Background(), 4)
	assert.ErrorIs(t, err, model.ErrAllocationFailed)
}
