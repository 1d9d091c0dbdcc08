package sessionctx

import (
	"sync"

	"github.com/xrmultiplayer/sessionflow/internal/model"
)

// Context holds the process-wide connection slots: the authenticated
// identity, the connection state, and the local player's presentation
// data. The factory constructs one and hands it to every component.
// Only the orchestrator and the identity coordinator write to it.
type Context struct {
	mu sync.RWMutex

	localDiscriminator model.PlayerID
	identity           model.Identity
	state              model.ConnectionState
	connected          bool

	playerName string
	roomName   string
	roomCode   string
}

// New creates a session context with the given local player name
func New(playerName string) *Context {
	if playerName == "" {
		playerName = "Player"
	}
	return &Context{
		state:      model.StateNone,
		playerName: playerName,
	}
}

// SetLocalDiscriminator records the provider-assigned player id as soon as
// sign-in completes, before the full identity is assembled
func (c *Context) SetLocalDiscriminator(id model.PlayerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.localDiscriminator = id
}

// LocalDiscriminator returns the provider-assigned player id, or "" before
// sign-in
func (c *Context) LocalDiscriminator() model.PlayerID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.localDiscriminator
}

// SetIdentity records the unified identity. The first call wins; the
// identity is immutable once established.
func (c *Context) SetIdentity(id model.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity.Established() {
		return
	}
	c.identity = id
	c.localDiscriminator = id.LocalDiscriminator
}

// Identity returns the unified identity; zero value until authentication
// completes
func (c *Context) Identity() model.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// SetState moves the connection state, returning the previous state and
// whether it actually changed
func (c *Context) SetState(s model.ConnectionState) (model.ConnectionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	c.state = s
	return prev, prev != s
}

// State returns the current connection state
func (c *Context) State() model.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetConnected flips the connected flag
func (c *Context) SetConnected(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = v
}

// Connected reports whether the transport is up in a session
func (c *Context) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// PlayerName returns the local player's display name
func (c *Context) PlayerName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.playerName
}

// SetPlayerName updates the local player's display name
func (c *Context) SetPlayerName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name != "" {
		c.playerName = name
	}
}

// SetRoom records the connected session's presentation data
func (c *Context) SetRoom(name, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomName = name
	c.roomCode = code
}

// Room returns the connected session's display name and code
func (c *Context) Room() (name, code string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomName, c.roomCode
}
