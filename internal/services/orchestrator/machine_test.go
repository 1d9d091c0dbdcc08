package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/xrmultiplayer/sessionflow/internal/dependencies/clock"
	"github.com/xrmultiplayer/sessionflow/internal/events"
	"github.com/xrmultiplayer/sessionflow/internal/kvstore/memory"
	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers/fakes"
	"github.com/xrmultiplayer/sessionflow/internal/services/assignment"
	"github.com/xrmultiplayer/sessionflow/internal/services/directory"
	"github.com/xrmultiplayer/sessionflow/internal/services/heartbeat"
	"github.com/xrmultiplayer/sessionflow/internal/services/identity"
	"github.com/xrmultiplayer/sessionflow/internal/services/relay"
	"github.com/xrmultiplayer/sessionflow/internal/sessionctx"
	"github.com/xrmultiplayer/sessionflow/internal/testutil"
)

const eventuallyTimeout = 2 * time.Second

// instance is one fully wired local client sharing backend fakes with
// other instances in the same test
type instance struct {
	identity  *fakes.Identity
	secondary *fakes.Secondary
	transport *fakes.Transport
	scenes    *fakes.SceneLoader
	session   *sessionctx.Context
	bus       *events.Bus
	hb        *heartbeat.Loop
	events    chan model.Event
	machine   *Machine
}

type MachineSuite struct {
	suite.Suite
	dir   *fakes.Directory
	relay *fakes.Relay
	kv    *memory.Store
	ctx   context.Context
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

func (s *MachineSuite) SetupTest() {
	s.dir = fakes.NewDirectory()
	s.dir.HostID = "player-a"
	s.relay = fakes.NewRelay()
	s.kv = memory.New()
	s.ctx = context.Background()
}

// newInstance wires a complete stack around the shared backend fakes. tag
// distinguishes instances: player id "player-<tag>", user id "user-<tag>".
func (s *MachineSuite) newInstance(tag string, cfg Config) *instance {
	return s.newInstanceWith(tag, cfg, fakes.NewReadySecondary("user-"+tag))
}

func (s *MachineSuite) newInstanceWith(tag string, cfg Config, secondary *fakes.Secondary) *instance {
	logger := testutil.NopLogger()
	inst := &instance{
		identity:  &fakes.Identity{AssignedPlayerID: "player-" + tag},
		secondary: secondary,
		transport: &fakes.Transport{},
		scenes:    &fakes.SceneLoader{},
		session:   sessionctx.New("Player " + tag),
		bus:       events.NewBus(clock.New(), logger),
	}

	coord := identity.NewCoordinator(inst.identity, inst.secondary, inst.session,
		identity.ProfileOptions{Base: "Player", InstanceTag: tag}, logger)
	bridge := relay.NewBridge(s.relay, inst.transport, logger)
	inst.hb = heartbeat.New(s.dir, 10*time.Millisecond, logger)
	dir := directory.New(s.dir, bridge, inst.hb, inst.session, directory.Config{
		Version:    "1.0.0",
		SceneTag:   "atrium",
		Visibility: "false",
		MaxPlayers: 4,
	}, nil, logger)
	store := assignment.New(s.kv, logger)

	inst.events = inst.bus.Subscribe()
	inst.machine = New(coord, dir, store, inst.transport, inst.scenes,
		inst.session, inst.bus, cfg, logger)
	return inst
}

func (s *MachineSuite) teardown(inst *instance) {
	inst.hb.Stop()
	inst.bus.Close()
}

func (s *MachineSuite) waitForState(inst *instance, want model.ConnectionState) {
	s.Require().Eventually(func() bool {
		return inst.machine.State() == want
	}, eventuallyTimeout, time.Millisecond,
		"expected state %s, still %s", want, inst.machine.State())
}

// waitIdle blocks until no command is in flight
func (s *MachineSuite) waitIdle(inst *instance) {
	s.Require().Eventually(inst.machine.Idle, eventuallyTimeout, time.Millisecond)
}

func (s *MachineSuite) waitForFailure(inst *instance) model.ConnectionFailedPayload {
	deadline := time.After(eventuallyTimeout)
	for {
		select {
		case ev := <-inst.events:
			if ev.Type == model.EventConnectionFailed {
				return ev.Payload.(model.ConnectionFailedPayload)
			}
		case <-deadline:
			s.Require().FailNow("no connection failed event observed")
			return model.ConnectionFailedPayload{}
		}
	}
}

// drainEvents returns the events published so far without blocking
func drainEvents(ch chan model.Event) []model.Event {
	var out []model.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func stateTransitions(evs []model.Event) []model.ConnectionState {
	var states []model.ConnectionState
	for _, ev := range evs {
		if ev.Type == model.EventStateChanged {
			states = append(states, ev.Payload.(model.StateChangedPayload).Current)
		}
	}
	return states
}

// Scenario: a fresh player with no stored assignment starts the app, no
// session exists yet, and they end up hosting one.
func (s *MachineSuite) TestFreshPlayerAutoJoinsAndHosts() {
	inst := s.newInstance("a", Config{SceneTable: []string{"atrium", "studio"}, AutoJoin: true})
	defer s.teardown(inst)

	s.Require().NoError(inst.machine.Initialize(s.ctx))
	s.waitForState(inst, model.StateConnected)
	s.waitIdle(inst)

	// Nothing matched, exactly one session was created
	s.Equal(1, s.dir.QuickJoinCalls)
	s.Equal(1, s.dir.CreateCalls)

	s.Equal(fakes.RoleHost, inst.transport.Role)
	s.Equal(1, inst.transport.StartCalls)
	s.True(inst.hb.Active())
	s.Equal([]string{"atrium"}, inst.scenes.LoadedScenes())

	// The join code is remembered locally and mirrored remotely
	desc := inst.machine.ConnectedSession()
	s.Require().NotNil(desc)
	s.NotEmpty(desc.JoinCode())
	s.Equal(desc.JoinCode(), inst.machine.Assignment().SessionCode)
	code, ok, err := s.kv.Read(s.ctx, "players/user-a/room")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(desc.JoinCode(), code)

	// Scene table was published for out-of-band tooling
	table, ok, err := s.kv.Read(s.ctx, "scenes/1")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("studio", table)

	states := stateTransitions(drainEvents(inst.events))
	s.Equal([]model.ConnectionState{
		model.StateAuthenticating,
		model.StateAuthenticated,
		model.StateConnecting,
		model.StateConnected,
	}, states)
}

// Scenario: the stored session code points at a session that no longer
// exists. The attempt fails once and the player rests at Authenticated.
func (s *MachineSuite) TestStaleStoredCodeFailsBackToAuthenticated() {
	s.Require().NoError(s.kv.Write(s.ctx, "players/user-a/room", "ABCD"))
	inst := s.newInstance("a", Config{AutoJoin: true})
	defer s.teardown(inst)

	s.Require().NoError(inst.machine.Initialize(s.ctx))

	failure := s.waitForFailure(inst)
	s.Contains(failure.Reason, "Could not join a session")
	s.waitForState(inst, model.StateAuthenticated)

	s.Equal(fakes.RoleNone, inst.transport.Role)
	s.False(inst.hb.Active())
	s.Nil(inst.machine.ConnectedSession())

	// Exactly one failure event for the attempt
	for _, ev := range drainEvents(inst.events) {
		s.NotEqual(model.EventConnectionFailed, ev.Type)
	}
}

// Scenario: two instances start in order. The first hosts, the second
// quick-joins as a client of the same session.
func (s *MachineSuite) TestSecondInstanceJoinsAsClient() {
	s.dir.HostID = "player-a"
	host := s.newInstance("a", Config{AutoJoin: true})
	defer s.teardown(host)
	s.Require().NoError(host.machine.Initialize(s.ctx))
	s.waitForState(host, model.StateConnected)

	client := s.newInstance("b", Config{AutoJoin: true})
	defer s.teardown(client)
	s.Require().NoError(client.machine.Initialize(s.ctx))
	s.waitForState(client, model.StateConnected)

	s.Equal(1, s.dir.CreateCalls)
	s.Equal(fakes.RoleHost, host.transport.Role)
	s.Equal(fakes.RoleClient, client.transport.Role)

	s.Equal(host.machine.ConnectedSession().ID, client.machine.ConnectedSession().ID)
	s.Equal(model.PlayerID("player-a"), client.machine.ConnectedSession().HostDiscriminator)

	// Only the host heartbeats
	s.True(host.hb.Active())
	s.False(client.hb.Active())
}

func (s *MachineSuite) TestSecondCommandWhileInFlightIsRejected() {
	// A not-yet-ready secondary identity holds Initialize mid-flight
	secondary := &fakes.Secondary{}
	inst := s.newInstanceWith("a", Config{}, secondary)
	defer s.teardown(inst)

	s.Require().NoError(inst.machine.Initialize(s.ctx))
	s.waitForState(inst, model.StateAuthenticating)

	err := inst.machine.Initialize(s.ctx)
	s.ErrorIs(err, model.ErrCommandInFlight)

	secondary.MarkReady("user-a")
	s.waitForState(inst, model.StateAuthenticated)

	// The slot is free again once the command finishes
	s.Require().Eventually(func() bool {
		return inst.machine.Initialize(s.ctx) == nil
	}, eventuallyTimeout, time.Millisecond)
}

func (s *MachineSuite) TestJoinRequiresAuthentication() {
	inst := s.newInstance("a", Config{})
	defer s.teardown(inst)

	s.ErrorIs(inst.machine.QuickJoin(s.ctx), model.ErrNotAuthenticated)
	s.ErrorIs(inst.machine.JoinByCode(s.ctx, "ABCD"), model.ErrNotAuthenticated)
	s.ErrorIs(inst.machine.Create(s.ctx, "", false, 0), model.ErrNotAuthenticated)
}

func (s *MachineSuite) TestAuthenticationFailureRestsAtNone() {
	inst := s.newInstance("a", Config{AutoJoin: true})
	defer s.teardown(inst)
	inst.identity.SignInErr = errors.New("service unavailable")

	s.Require().NoError(inst.machine.Initialize(s.ctx))

	failure := s.waitForFailure(inst)
	s.Contains(failure.Reason, "Authentication failed")
	s.waitForState(inst, model.StateNone)
	s.Equal(0, s.dir.QuickJoinCalls)
}

func (s *MachineSuite) TestAssignmentReadFailureIsTerminal() {
	inst := s.newInstance("a", Config{AutoJoin: true})
	defer s.teardown(inst)
	s.kv.FailReads = errors.New("store offline")

	s.Require().NoError(inst.machine.Initialize(s.ctx))

	failure := s.waitForFailure(inst)
	s.Contains(failure.Reason, "assignment")
	s.waitForState(inst, model.StateAuthenticated)

	// No join attempt follows a failed load
	s.Equal(0, s.dir.QuickJoinCalls)
}

func (s *MachineSuite) TestDirectoryOutageFunnelsOnce() {
	inst := s.newInstance("a", Config{})
	defer s.teardown(inst)
	s.Require().NoError(inst.machine.Initialize(s.ctx))
	s.waitForState(inst, model.StateAuthenticated)

	s.waitIdle(inst)

	s.dir.QuickJoinErr = errors.New("internal server error")
	s.Require().NoError(inst.machine.QuickJoin(s.ctx))

	s.waitForFailure(inst)
	s.waitForState(inst, model.StateAuthenticated)
	s.Equal(0, s.dir.CreateCalls)
}

func (s *MachineSuite) TestOutOfRangeSceneIndexFallsBackToFirst() {
	s.Require().NoError(s.kv.Write(s.ctx, "players/user-a/scene", "7"))
	inst := s.newInstance("a", Config{SceneTable: []string{"atrium", "studio"}, AutoJoin: true})
	defer s.teardown(inst)

	s.Require().NoError(inst.machine.Initialize(s.ctx))
	s.waitForState(inst, model.StateConnected)

	s.Equal([]string{"atrium"}, inst.scenes.LoadedScenes())
}

func (s *MachineSuite) TestAssignedSceneIndexIsUsed() {
	s.Require().NoError(s.kv.Write(s.ctx, "players/user-a/scene", "1"))
	inst := s.newInstance("a", Config{SceneTable: []string{"atrium", "studio"}, AutoJoin: true})
	defer s.teardown(inst)

	s.Require().NoError(inst.machine.Initialize(s.ctx))
	s.waitForState(inst, model.StateConnected)

	s.Equal([]string{"studio"}, inst.scenes.LoadedScenes())
}

func (s *MachineSuite) TestEmptySceneTableSkipsLoading() {
	inst := s.newInstance("a", Config{AutoJoin: true})
	defer s.teardown(inst)

	s.Require().NoError(inst.machine.Initialize(s.ctx))
	s.waitForState(inst, model.StateConnected)

	s.Empty(inst.scenes.LoadedScenes())
}

func (s *MachineSuite) TestSceneLoadFailureFunnels() {
	inst := s.newInstance("a", Config{SceneTable: []string{"atrium"}, AutoJoin: true})
	defer s.teardown(inst)
	inst.scenes.LoadErr = errors.New("asset bundle missing")

	s.Require().NoError(inst.machine.Initialize(s.ctx))

	failure := s.waitForFailure(inst)
	s.Contains(failure.Reason, "atrium")
	s.waitForState(inst, model.StateAuthenticated)
	s.Equal(0, inst.transport.StartCalls)

	// The created session was abandoned, including its heartbeat
	s.False(inst.hb.Active())
	s.Nil(inst.machine.ConnectedSession())
}

func (s *MachineSuite) TestDisconnectTearsDownAndRestsAtAuthenticated() {
	inst := s.newInstance("a", Config{AutoJoin: true})
	defer s.teardown(inst)
	s.Require().NoError(inst.machine.Initialize(s.ctx))
	s.waitForState(inst, model.StateConnected)
	inst.machine.PlayerJoined(7)

	inst.machine.Disconnect(s.ctx)

	s.Equal(model.StateAuthenticated, inst.machine.State())
	s.Equal(1, inst.transport.ShutdownCalls)
	s.False(inst.hb.Active())
	s.Equal(1, s.dir.DeleteCalls) // the host tears the session down
	s.Equal(0, inst.machine.PlayerCount())
	s.Nil(inst.machine.ConnectedSession())
}

func (s *MachineSuite) TestCancelClearsSessionReference() {
	inst := s.newInstance("a", Config{AutoJoin: true})
	defer s.teardown(inst)
	s.Require().NoError(inst.machine.Initialize(s.ctx))
	s.waitForState(inst, model.StateConnected)

	inst.machine.Cancel(s.ctx)

	s.Equal(model.StateAuthenticated, inst.machine.State())
	s.Nil(inst.machine.ConnectedSession())
	s.False(inst.hb.Active())
}

// A cancel issued while the directory lookup is still in flight must win:
// the attempt's result is given back to the directory and the machine never
// reaches Connected.
func (s *MachineSuite) TestCancelDuringConnectAbandonsAttempt() {
	gate := make(chan struct{})
	s.dir.Gate = gate
	inst := s.newInstance("a", Config{SceneTable: []string{"atrium", "studio"}, AutoJoin: true})
	defer s.teardown(inst)

	s.Require().NoError(inst.machine.Initialize(s.ctx))
	s.waitForState(inst, model.StateConnecting)

	inst.machine.Cancel(s.ctx)
	s.Equal(model.StateAuthenticated, inst.machine.State())
	close(gate)
	s.waitIdle(inst)

	// Nothing matched, so the lookup created a session; the cancel check
	// hands it back instead of connecting to it
	s.Equal(model.StateAuthenticated, inst.machine.State())
	s.Nil(inst.machine.ConnectedSession())
	s.Equal(1, s.dir.CreateCalls)
	s.Equal(1, s.dir.DeleteCalls)
	s.Equal(0, inst.transport.StartCalls)
	s.False(inst.hb.Active())

	for _, ev := range drainEvents(inst.events) {
		s.NotEqual(model.EventConnectionFailed, ev.Type)
	}
}

func (s *MachineSuite) TestPlayerBookkeeping() {
	inst := s.newInstance("a", Config{})
	defer s.teardown(inst)

	inst.machine.PlayerJoined(1)
	inst.machine.PlayerJoined(2)
	inst.machine.PlayerLeft(1)
	s.Equal(1, inst.machine.PlayerCount())

	var joined, left int
	for _, ev := range drainEvents(inst.events) {
		switch ev.Type {
		case model.EventPlayerJoined:
			joined++
		case model.EventPlayerLeft:
			left++
		}
	}
	s.Equal(2, joined)
	s.Equal(1, left)
}

func (s *MachineSuite) TestSetAssignmentPersists() {
	inst := s.newInstance("a", Config{})
	defer s.teardown(inst)
	s.Require().NoError(inst.machine.Initialize(s.ctx))
	s.waitForState(inst, model.StateAuthenticated)
	s.waitIdle(inst)

	want := model.PlayerAssignment{SceneIndex: 2, SessionCode: "WXYZ", AvatarID: 5}
	s.Require().NoError(inst.machine.SetAssignment(s.ctx, want))
	s.Equal(want, inst.machine.Assignment())

	for field, val := range map[string]string{"scene": "2", "room": "WXYZ", "avatar": "5"} {
		got, ok, err := s.kv.Read(s.ctx, fmt.Sprintf("players/user-a/%s", field))
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(val, got)
	}
}
