package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xrmultiplayer/sessionflow/internal/events"
	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
	"github.com/xrmultiplayer/sessionflow/internal/services/assignment"
	"github.com/xrmultiplayer/sessionflow/internal/services/directory"
	"github.com/xrmultiplayer/sessionflow/internal/services/identity"
	"github.com/xrmultiplayer/sessionflow/internal/sessionctx"
)

// Config controls the connection sequence
type Config struct {
	// SceneTable maps assignment scene indices to loadable scene names.
	// Empty means scene loading is skipped entirely.
	SceneTable []string

	// AutoJoin makes Initialize continue into a join attempt once
	// authentication and assignment loading succeed
	AutoJoin bool
}

// Machine drives the connection lifecycle: authenticate, resolve the
// player's assignment, find or create a session, bring up the transport.
// At most one connection command runs at a time; a second command while one
// is in flight fails with model.ErrCommandInFlight. Commands run
// asynchronously and report through the event bus.
type Machine struct {
	identity  *identity.Coordinator
	directory *directory.Service
	assign    *assignment.Store
	transport providers.Transport
	scenes    providers.SceneLoader
	session   *sessionctx.Context
	bus       *events.Bus
	cfg       Config
	logger    *slog.Logger

	mu         sync.Mutex
	inFlight   bool
	cancels    uint64
	assignment model.PlayerAssignment
	players    map[uint64]struct{}
}

// New creates a session state machine
func New(
	identityCoord *identity.Coordinator,
	dir *directory.Service,
	assign *assignment.Store,
	transport providers.Transport,
	scenes providers.SceneLoader,
	session *sessionctx.Context,
	bus *events.Bus,
	cfg Config,
	logger *slog.Logger,
) *Machine {
	return &Machine{
		identity:   identityCoord,
		directory:  dir,
		assign:     assign,
		transport:  transport,
		scenes:     scenes,
		session:    session,
		bus:        bus,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "orchestrator")),
		assignment: model.DefaultAssignment(),
		players:    make(map[uint64]struct{}),
	}
}

// Initialize authenticates, loads the player's assignment, and, when
// auto-join is enabled, continues into a join attempt: the stored session
// code when one exists, quick-join otherwise. Runs asynchronously; returns
// model.ErrCommandInFlight if another command is running.
func (m *Machine) Initialize(ctx context.Context) error {
	if !m.begin() {
		return model.ErrCommandInFlight
	}
	go func() {
		defer m.end()
		if !m.initialize(ctx) {
			return
		}
		if !m.cfg.AutoJoin {
			return
		}
		if code := m.Assignment().SessionCode; code != "" {
			m.connect(ctx, func(c context.Context) (*model.SessionDescriptor, error) {
				return m.directory.JoinByCode(c, code)
			})
			return
		}
		m.connect(ctx, m.directory.QuickJoin)
	}()
	return nil
}

// QuickJoin joins the best matching session, creating one when nothing
// matches. Requires an established identity. Asynchronous.
func (m *Machine) QuickJoin(ctx context.Context) error {
	return m.startConnect(ctx, m.directory.QuickJoin)
}

// JoinByCode joins the session published under the given code. Requires an
// established identity. Asynchronous.
func (m *Machine) JoinByCode(ctx context.Context, code string) error {
	return m.startConnect(ctx, func(c context.Context) (*model.SessionDescriptor, error) {
		return m.directory.JoinByCode(c, code)
	})
}

// Create hosts a new session. Requires an established identity.
// Asynchronous.
func (m *Machine) Create(ctx context.Context, name string, isPrivate bool, maxPlayers int) error {
	return m.startConnect(ctx, func(c context.Context) (*model.SessionDescriptor, error) {
		return m.directory.Create(c, name, isPrivate, maxPlayers)
	})
}

// Cancel abandons the current session reference. A connect attempt still
// in flight observes the cancel when its directory lookup returns and
// abandons its result instead of proceeding to Connected. Synchronous.
func (m *Machine) Cancel(ctx context.Context) {
	m.mu.Lock()
	m.cancels++
	m.mu.Unlock()
	if err := m.directory.Leave(ctx, m.session.LocalDiscriminator()); err != nil {
		m.logger.Warn("leave during cancel failed", slog.String("error", err.Error()))
	}
	m.session.SetConnected(false)
	m.session.SetRoom("", "")
	m.clearPlayers()
	if m.session.Identity().Established() {
		m.setState(model.StateAuthenticated)
	} else {
		m.setState(model.StateNone)
	}
	m.persistAssignment(ctx)
}

// Disconnect tears down the transport and leaves the session. Synchronous.
func (m *Machine) Disconnect(ctx context.Context) {
	if err := m.directory.Leave(ctx, m.session.LocalDiscriminator()); err != nil {
		m.logger.Warn("leave during disconnect failed", slog.String("error", err.Error()))
	}
	if err := m.transport.Shutdown(); err != nil {
		m.logger.Warn("transport shutdown failed", slog.String("error", err.Error()))
	}
	m.session.SetConnected(false)
	m.session.SetRoom("", "")
	m.clearPlayers()
	if m.session.Identity().Established() {
		m.setState(model.StateAuthenticated)
	} else {
		m.setState(model.StateNone)
	}
}

// PlayerJoined records a remote participant by transport id
func (m *Machine) PlayerJoined(id uint64) {
	m.mu.Lock()
	m.players[id] = struct{}{}
	m.mu.Unlock()
	m.bus.Publish(model.Event{Type: model.EventPlayerJoined, Payload: model.PlayerPayload{NetworkID: id}})
}

// PlayerLeft removes a remote participant by transport id
func (m *Machine) PlayerLeft(id uint64) {
	m.mu.Lock()
	delete(m.players, id)
	m.mu.Unlock()
	m.bus.Publish(model.Event{Type: model.EventPlayerLeft, Payload: model.PlayerPayload{NetworkID: id}})
}

// SetPlayerName updates the local player's display name
func (m *Machine) SetPlayerName(name string) {
	m.session.SetPlayerName(name)
}

// Idle reports whether no connection command is in flight
func (m *Machine) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.inFlight
}

// State returns the current connection state
func (m *Machine) State() model.ConnectionState {
	return m.session.State()
}

// Assignment returns the current local copy of the player's assignment
func (m *Machine) Assignment() model.PlayerAssignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignment
}

// SetAssignment replaces the local assignment copy and persists it
func (m *Machine) SetAssignment(ctx context.Context, a model.PlayerAssignment) error {
	m.mu.Lock()
	m.assignment = a
	m.mu.Unlock()
	return m.assign.Save(ctx, m.assignmentKey(), a)
}

// PlayerCount returns the number of known remote participants
func (m *Machine) PlayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.players)
}

// ConnectedSession returns the session this instance is part of, or nil
func (m *Machine) ConnectedSession() *model.SessionDescriptor {
	return m.directory.ConnectedSession()
}

// initialize runs authentication and assignment loading, reporting whether
// the machine is ready to continue into a join
func (m *Machine) initialize(ctx context.Context) bool {
	m.setState(model.StateAuthenticating)
	m.status("Signing in...")

	id, err := m.identity.Authenticate(ctx)
	if err != nil {
		m.connectionFailed(fmt.Sprintf("Authentication failed: %v", err))
		return false
	}
	m.setState(model.StateAuthenticated)

	a, err := m.assign.Load(ctx, m.assignmentKey())
	if err != nil {
		m.connectionFailed(fmt.Sprintf("Could not load player assignment: %v", err))
		return false
	}
	m.mu.Lock()
	m.assignment = a
	m.mu.Unlock()
	m.logger.Info("assignment loaded",
		slog.String("user_id", id.RemoteUserID),
		slog.Int("scene_index", a.SceneIndex),
		slog.String("session_code", a.SessionCode))

	// Write-back normalizes records that were missing or partially garbled
	m.persistAssignment(ctx)
	if err := m.assign.PublishSceneTable(ctx, m.cfg.SceneTable); err != nil {
		m.logger.Warn("scene table publish failed", slog.String("error", err.Error()))
	}
	return true
}

// startConnect acquires the in-flight slot and runs one join or create
// attempt asynchronously
func (m *Machine) startConnect(ctx context.Context, lookup func(context.Context) (*model.SessionDescriptor, error)) error {
	if !m.session.Identity().Established() {
		return model.ErrNotAuthenticated
	}
	if !m.begin() {
		return model.ErrCommandInFlight
	}
	go func() {
		defer m.end()
		m.connect(ctx, lookup)
	}()
	return nil
}

// connect runs one attempt from directory lookup through transport start.
// Any stage failure funnels into connectionFailed; later stages never run
// after a failed one.
func (m *Machine) connect(ctx context.Context, lookup func(context.Context) (*model.SessionDescriptor, error)) {
	seq := m.cancelCount()
	m.setState(model.StateConnecting)

	desc, err := lookup(ctx)
	if err != nil {
		m.connectionFailed(fmt.Sprintf("Could not join a session: %v", err))
		return
	}

	if m.cancelCount() != seq {
		// A cancel landed while the lookup was in flight; give back
		// whatever the lookup registered and keep the canceled state
		if err := m.directory.Leave(ctx, m.session.LocalDiscriminator()); err != nil {
			m.logger.Warn("leave after cancel failed", slog.String("error", err.Error()))
		}
		m.logger.Info("attempt abandoned by cancel", slog.String("session_id", desc.ID))
		return
	}

	m.mu.Lock()
	m.assignment.SessionCode = desc.JoinCode()
	sceneIndex := m.assignment.SceneIndex
	m.mu.Unlock()

	if len(m.cfg.SceneTable) > 0 {
		if sceneIndex < 0 || sceneIndex >= len(m.cfg.SceneTable) {
			sceneIndex = 0
		}
		scene := m.cfg.SceneTable[sceneIndex]
		m.status(fmt.Sprintf("Loading %s...", scene))
		if err := m.scenes.Load(ctx, scene); err != nil {
			m.connectionFailed(fmt.Sprintf("Could not load scene %s: %v", scene, err))
			return
		}
	}

	isHost := desc.HostDiscriminator == m.session.LocalDiscriminator()
	if err := m.transport.Start(); err != nil {
		m.connectionFailed(fmt.Sprintf("Could not start networking: %v", err))
		return
	}

	m.session.SetConnected(true)
	m.session.SetRoom(desc.DisplayName, desc.JoinCode())
	m.setState(model.StateConnected)
	m.logger.Info("connected",
		slog.String("session_id", desc.ID),
		slog.Bool("host", isHost))

	m.persistAssignment(ctx)
}

// connectionFailed is the single failure funnel. It tears down whatever the
// failed attempt left behind, recomputes the resting state from the
// identity, and emits exactly one failure event carrying the reason.
func (m *Machine) connectionFailed(reason string) {
	if m.directory.ConnectedSession() != nil {
		if err := m.directory.Leave(context.Background(), m.session.LocalDiscriminator()); err != nil {
			m.logger.Warn("leave after failure failed", slog.String("error", err.Error()))
		}
	}
	if m.session.Connected() {
		if err := m.transport.Shutdown(); err != nil {
			m.logger.Warn("transport shutdown failed", slog.String("error", err.Error()))
		}
	}
	m.session.SetConnected(false)
	m.session.SetRoom("", "")
	m.clearPlayers()

	if m.session.Identity().Established() {
		m.setState(model.StateAuthenticated)
	} else {
		m.setState(model.StateNone)
	}

	m.logger.Error("connection failed", slog.String("reason", reason))
	m.bus.Publish(model.Event{
		Type:    model.EventConnectionFailed,
		Payload: model.ConnectionFailedPayload{Reason: reason},
	})
}

func (m *Machine) begin() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return false
	}
	m.inFlight = true
	return true
}

func (m *Machine) end() {
	m.mu.Lock()
	m.inFlight = false
	m.mu.Unlock()
}

func (m *Machine) cancelCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}

func (m *Machine) setState(s model.ConnectionState) {
	prev, changed := m.session.SetState(s)
	if !changed {
		return
	}
	m.logger.Info("state changed",
		slog.String("from", prev.String()),
		slog.String("to", s.String()))
	m.bus.Publish(model.Event{
		Type:    model.EventStateChanged,
		Payload: model.StateChangedPayload{Previous: prev, Current: s},
	})
}

func (m *Machine) status(message string) {
	m.bus.Publish(model.Event{Type: model.EventStatus, Payload: model.StatusPayload{Message: message}})
}

// persistAssignment saves the local assignment copy. The remote store is a
// convenience mirror; failures degrade to a warning.
func (m *Machine) persistAssignment(ctx context.Context) {
	key := m.assignmentKey()
	if key == "" {
		return
	}
	if err := m.assign.Save(ctx, key, m.Assignment()); err != nil {
		m.logger.Warn("assignment persist failed", slog.String("error", err.Error()))
	}
}

// assignmentKey returns the remote store key for this player, which is the
// secondary identity's user id
func (m *Machine) assignmentKey() model.PlayerID {
	return model.PlayerID(m.session.Identity().RemoteUserID)
}

func (m *Machine) clearPlayers() {
	m.mu.Lock()
	m.players = make(map[uint64]struct{})
	m.mu.Unlock()
}
