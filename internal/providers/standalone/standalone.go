// Package standalone implements the transport and scene loader interfaces
// for runs outside a game engine: the CLI and headless soak runs. The
// transport tracks the configured role and connection state instead of
// moving game traffic.
package standalone

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
)

// Role is the transport role the last configuration selected
type Role string

const (
	RoleNone   Role = "none"
	RoleHost   Role = "host"
	RoleClient Role = "client"
)

// Transport is a state-tracking transport for engine-less runs
type Transport struct {
	logger *slog.Logger

	mu      sync.Mutex
	role    Role
	creds   model.RelayCredentials
	started bool
}

var _ providers.Transport = (*Transport)(nil)

// NewTransport creates a standalone transport
func NewTransport(logger *slog.Logger) *Transport {
	return &Transport{
		logger: logger.With(slog.String("component", "transport")),
		role:   RoleNone,
	}
}

func (t *Transport) ConfigureAsHost(creds model.RelayCredentials) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.role = RoleHost
	t.creds = creds
	t.logger.Info("configured as host",
		slog.String("server", creds.IP),
		slog.Int("port", int(creds.Port)))
	return nil
}

func (t *Transport) ConfigureAsClient(creds model.RelayCredentials) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.role = RoleClient
	t.creds = creds
	t.logger.Info("configured as client",
		slog.String("server", creds.IP),
		slog.Int("port", int(creds.Port)))
	return nil
}

func (t *Transport) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.role == RoleNone {
		return errors.New("transport not configured")
	}
	t.started = true
	t.logger.Info("transport started", slog.String("role", string(t.role)))
	return nil
}

func (t *Transport) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = false
	t.role = RoleNone
	t.logger.Info("transport shut down")
	return nil
}

// CurrentRole returns the configured role
func (t *Transport) CurrentRole() Role {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.role
}

// Started reports whether the transport is up
func (t *Transport) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// SceneLoader records the current scene; without an engine there is
// nothing to stream in
type SceneLoader struct {
	logger *slog.Logger

	mu      sync.Mutex
	current string
}

var _ providers.SceneLoader = (*SceneLoader)(nil)

// NewSceneLoader creates a standalone scene loader
func NewSceneLoader(logger *slog.Logger) *SceneLoader {
	return &SceneLoader{logger: logger.With(slog.String("component", "scenes"))}
}

func (l *SceneLoader) Load(ctx context.Context, sceneName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = sceneName
	l.logger.Info("scene loaded", slog.String("scene", sceneName))
	return nil
}

// CurrentScene returns the most recently loaded scene, or ""
func (l *SceneLoader) CurrentScene() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}
