package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers/fakes"
	"github.com/xrmultiplayer/sessionflow/internal/services/heartbeat"
	"github.com/xrmultiplayer/sessionflow/internal/services/relay"
	"github.com/xrmultiplayer/sessionflow/internal/sessionctx"
	"github.com/xrmultiplayer/sessionflow/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	provider  *fakes.Directory
	relay     *fakes.Relay
	transport *fakes.Transport
	hb        *heartbeat.Loop
	service   *Service
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.provider = fakes.NewDirectory()
	s.provider.HostID = "player-local"
	s.relay = fakes.NewRelay()
	s.transport = &fakes.Transport{}
	s.ctx = context.Background()
	s.service = s.newService(s.provider, s.transport, "player-local", "Alice")
	s.hb = s.service.heartbeat
}

func (s *ServiceSuite) TearDownTest() {
	s.hb.Stop()
}

// newService builds an independent service sharing the provider and relay,
// as a second local instance would
func (s *ServiceSuite) newService(provider *fakes.Directory, transport *fakes.Transport, discriminator, playerName string) *Service {
	logger := testutil.NopLogger()
	sctx := sessionctx.New(playerName)
	sctx.SetLocalDiscriminator(model.PlayerID(discriminator))
	bridge := relay.NewBridge(s.relay, transport, logger)
	hb := heartbeat.New(provider, 10*time.Millisecond, logger)
	cfg := Config{Version: "1.0.0", SceneTag: "atrium", Visibility: "false", MaxPlayers: 4}
	return New(provider, bridge, hb, sctx, cfg, nil, logger)
}

// QuickJoin

func (s *ServiceSuite) TestQuickJoinFallsBackToCreateOnNoMatch() {
	desc, err := s.service.QuickJoin(s.ctx)
	s.Require().NoError(err)

	// Exactly one create, on the no-match condition only
	s.Equal(1, s.provider.CreateCalls)
	s.Equal(1, s.provider.QuickJoinCalls)
	s.Equal(model.PlayerID("player-local"), desc.HostDiscriminator)
	s.Equal(fakes.RoleHost, s.transport.Role)
	s.True(s.hb.Active())
}

func (s *ServiceSuite) TestQuickJoinProviderOutagePropagates() {
	s.provider.QuickJoinErr = errors.New("internal server error")

	_, err := s.service.QuickJoin(s.ctx)
	s.Require().Error(err)
	s.ErrorIs(err, model.ErrDirectoryFailure)

	// An outage must not silently create a duplicate session
	s.Equal(0, s.provider.CreateCalls)
	s.Nil(s.service.ConnectedSession())
}

func (s *ServiceSuite) TestQuickJoinJoinsExistingSession() {
	// Another instance hosts a session first
	s.provider.HostID = "player-host"
	hostTransport := &fakes.Transport{}
	host := s.newService(s.provider, hostTransport, "player-host", "Bob")
	created, err := host.Create(s.ctx, "", false, 0)
	s.Require().NoError(err)
	host.heartbeat.Stop()

	desc, err := s.service.QuickJoin(s.ctx)
	s.Require().NoError(err)

	s.Equal(created.ID, desc.ID)
	s.Equal(1, s.provider.CreateCalls) // no second create
	s.Equal(fakes.RoleClient, s.transport.Role)
	s.False(s.hb.Active()) // joiners do not heartbeat
}

// JoinByCode error mapping

func (s *ServiceSuite) TestJoinByCodeRateLimited() {
	s.provider.JoinErr = errors.New("Rate limit exceeded, retry later")

	_, err := s.service.JoinByCode(s.ctx, "ABCD")
	s.ErrorIs(err, model.ErrRateLimited)
	s.NotErrorIs(err, model.ErrDirectoryFailure)
}

func (s *ServiceSuite) TestJoinByCodeNotFound() {
	_, err := s.service.JoinByCode(s.ctx, "GONE")
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *ServiceSuite) TestJoinByCodeGenericFailure() {
	s.provider.JoinErr = errors.New("backend exploded")

	_, err := s.service.JoinByCode(s.ctx, "ABCD")
	s.ErrorIs(err, model.ErrDirectoryFailure)
}

func (s *ServiceSuite) TestJoinByCodeSuccess() {
	hostTransport := &fakes.Transport{}
	host := s.newService(s.provider, hostTransport, "player-host", "Bob")
	created, err := host.Create(s.ctx, "Bob's Room", false, 0)
	s.Require().NoError(err)
	host.heartbeat.Stop()

	desc, err := s.service.JoinByCode(s.ctx, created.JoinCode())
	s.Require().NoError(err)
	s.Equal(created.ID, desc.ID)
	s.Equal(fakes.RoleClient, s.transport.Role)
	s.Equal(desc, s.service.ConnectedSession())
}

// Create

func (s *ServiceSuite) TestCreateSynthesizesNameFromPlayer() {
	desc, err := s.service.Create(s.ctx, "", false, 0)
	s.Require().NoError(err)
	s.Equal("Alice's Room", desc.DisplayName)
}

func (s *ServiceSuite) TestCreatePublishesIndexedAttributes() {
	desc, err := s.service.Create(s.ctx, "Room", true, 8)
	s.Require().NoError(err)

	s.NotEmpty(desc.Attributes[model.AttrJoinCode])
	s.Equal("1.0.0", desc.Attributes[model.AttrVersion])
	s.Equal("atrium", desc.Attributes[model.AttrScene])
	s.Equal("false", desc.Attributes[model.AttrVisibility])
	s.True(desc.IsPrivate)
	s.Equal(8, desc.MaxPlayers)
}

func (s *ServiceSuite) TestCreateStartsHeartbeatForNewSession() {
	desc, err := s.service.Create(s.ctx, "", false, 0)
	s.Require().NoError(err)

	s.True(s.hb.Active())
	s.Equal(desc.ID, s.hb.SessionID())
	s.Require().Eventually(func() bool {
		return s.provider.LastHeartbeatID == desc.ID
	}, time.Second, time.Millisecond)
}

func (s *ServiceSuite) TestCreateRelayFailureLeavesNoHeartbeat() {
	s.relay.AllocateErr = errors.New("no relay capacity")

	_, err := s.service.Create(s.ctx, "", false, 0)
	s.ErrorIs(err, model.ErrAllocationFailed)
	s.False(s.hb.Active())
	s.Nil(s.service.ConnectedSession())
}

func (s *ServiceSuite) TestCreateProviderFailureLeavesNoHeartbeat() {
	s.provider.CreateErr = errors.New("quota exceeded")

	_, err := s.service.Create(s.ctx, "", false, 0)
	s.Require().Error(err)
	s.False(s.hb.Active())
	s.Nil(s.service.ConnectedSession())
}

// Updates

func (s *ServiceSuite) TestUpdateNameNoOpWithoutSession() {
	s.NoError(s.service.UpdateName(s.ctx, "Renamed"))
}

func (s *ServiceSuite) TestUpdateNameRefreshesDescriptor() {
	_, err := s.service.Create(s.ctx, "Old", false, 0)
	s.Require().NoError(err)

	s.Require().NoError(s.service.UpdateName(s.ctx, "New"))
	s.Equal("New", s.service.ConnectedSession().DisplayName)
}

func (s *ServiceSuite) TestUpdatePrivacy() {
	_, err := s.service.Create(s.ctx, "Room", false, 0)
	s.Require().NoError(err)

	s.Require().NoError(s.service.UpdatePrivacy(s.ctx, true))
	s.True(s.service.ConnectedSession().IsPrivate)
}

// Leave

func (s *ServiceSuite) TestLeaveAsHostDeletesSession() {
	_, err := s.service.Create(s.ctx, "", false, 0)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Leave(s.ctx, "player-local"))
	s.Equal(1, s.provider.DeleteCalls)
	s.Equal(0, s.provider.RemoveCalls)
	s.Nil(s.service.ConnectedSession())
	s.False(s.hb.Active())
}

func (s *ServiceSuite) TestLeaveAsClientRemovesParticipant() {
	hostTransport := &fakes.Transport{}
	host := s.newService(s.provider, hostTransport, "player-host", "Bob")
	s.provider.HostID = "player-host"
	created, err := host.Create(s.ctx, "", false, 0)
	s.Require().NoError(err)
	host.heartbeat.Stop()

	_, err = s.service.JoinByCode(s.ctx, created.JoinCode())
	s.Require().NoError(err)

	s.Require().NoError(s.service.Leave(s.ctx, "player-local"))
	s.Equal(0, s.provider.DeleteCalls)
	s.Equal(1, s.provider.RemoveCalls)
	s.Nil(s.service.ConnectedSession())
}

func (s *ServiceSuite) TestLeaveWithoutSessionIsNoOp() {
	s.NoError(s.service.Leave(s.ctx, "player-local"))
}

func (s *ServiceSuite) TestLeaveClearsReferenceEvenOnProviderError() {
	_, err := s.service.Create(s.ctx, "", false, 0)
	s.Require().NoError(err)
	s.provider.DeleteErr = errors.New("backend down")

	err = s.service.Leave(s.ctx, "player-local")
	s.Error(err)
	s.Nil(s.service.ConnectedSession())
	s.False(s.hb.Active())
}
