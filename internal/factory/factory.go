// Package factory wires the application components together.
package factory

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/xrmultiplayer/sessionflow/internal/config"
	"github.com/xrmultiplayer/sessionflow/internal/dependencies/clock"
	"github.com/xrmultiplayer/sessionflow/internal/dependencies/random"
	"github.com/xrmultiplayer/sessionflow/internal/events"
	"github.com/xrmultiplayer/sessionflow/internal/kvstore"
	kvmemory "github.com/xrmultiplayer/sessionflow/internal/kvstore/memory"
	kvredis "github.com/xrmultiplayer/sessionflow/internal/kvstore/redis"
	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
	"github.com/xrmultiplayer/sessionflow/internal/providers/inmem"
	"github.com/xrmultiplayer/sessionflow/internal/providers/redisprov"
	"github.com/xrmultiplayer/sessionflow/internal/providers/standalone"
	"github.com/xrmultiplayer/sessionflow/internal/services/assignment"
	"github.com/xrmultiplayer/sessionflow/internal/services/directory"
	"github.com/xrmultiplayer/sessionflow/internal/services/heartbeat"
	"github.com/xrmultiplayer/sessionflow/internal/services/identity"
	"github.com/xrmultiplayer/sessionflow/internal/services/orchestrator"
	"github.com/xrmultiplayer/sessionflow/internal/services/relay"
	"github.com/xrmultiplayer/sessionflow/internal/sessionctx"
)

// secondaryStarter is the kick-off side of the secondary identity
// subsystem; the read side is providers.SecondaryIdentity
type secondaryStarter interface {
	Begin(ctx context.Context, profile string)
}

// App contains all wired application components
type App struct {
	// Shared state
	Session *sessionctx.Context
	Bus     *events.Bus

	// Storage
	KV kvstore.Store

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Runtime adapters
	Transport *standalone.Transport
	Scenes    *standalone.SceneLoader

	// Services
	Identity   *identity.Coordinator
	Directory  *directory.Service
	Assignment *assignment.Store
	Heartbeat  *heartbeat.Loop
	Machine    *orchestrator.Machine

	secondary secondaryStarter
	profile   string
	closers   []io.Closer
}

// New creates a new application with all dependencies wired
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	clk := clock.New()
	rnd := random.New()
	session := sessionctx.New(cfg.PlayerName)
	bus := events.NewBus(clk, logger)

	app := &App{
		Session: session,
		Bus:     bus,
		Clock:   clk,
		Random:  rnd,
	}

	localID := func() string { return string(session.LocalDiscriminator()) }

	var (
		idp     providers.IdentityProvider
		sec     providers.SecondaryIdentity
		dirProv providers.Directory
		relProv providers.Relay
	)

	switch cfg.Backend {
	case config.BackendMemory:
		app.KV = kvmemory.New()
		idp = inmem.NewIdentity(rnd, logger)
		memSec := inmem.NewSecondary(rnd)
		sec, app.secondary = memSec, memSec
		dirProv = inmem.NewDirectory(rnd, localID, logger)
		relProv = inmem.NewRelay(rnd)

	case config.BackendRedis:
		rcfg := redisprov.DefaultConfig()
		rcfg.URL = cfg.RedisURL
		client, err := redisprov.NewClient(rcfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		app.closers = append(app.closers, client)
		app.KV = kvredis.NewWithClient(client, kvredis.Config{URL: cfg.RedisURL})
		idp = redisprov.NewIdentity(client, rnd, logger)
		redSec := redisprov.NewSecondary(client, rnd, logger)
		sec, app.secondary = redSec, redSec
		dirProv = redisprov.NewDirectory(client, rnd, rcfg, localID, logger)
		relProv = redisprov.NewRelay(client, rnd, rcfg, logger)

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	app.Transport = standalone.NewTransport(logger)
	app.Scenes = standalone.NewSceneLoader(logger)

	profileOpts := identity.ProfileOptions{
		Base:        cfg.PlayerName,
		InstanceTag: cfg.InstanceTag,
		PlayerTag:   cfg.PlayerTag,
		Headless:    cfg.Headless,
	}
	app.profile = identity.BuildProfile(profileOpts)
	app.Identity = identity.NewCoordinator(idp, sec, session, profileOpts, logger)

	bridge := relay.NewBridge(relProv, app.Transport, logger)
	app.Heartbeat = heartbeat.New(dirProv, cfg.HeartbeatInterval, logger)
	app.Directory = directory.New(dirProv, bridge, app.Heartbeat, session, directory.Config{
		Version:    cfg.Version,
		SceneTag:   cfg.SceneTag,
		Visibility: cfg.VisibilityTag,
		MaxPlayers: cfg.MaxPlayers,
	}, func(message string) {
		bus.Publish(model.Event{Type: model.EventStatus, Payload: model.StatusPayload{Message: message}})
	}, logger)
	app.Assignment = assignment.New(app.KV, logger)

	app.Machine = orchestrator.New(app.Identity, app.Directory, app.Assignment,
		app.Transport, app.Scenes, session, bus, orchestrator.Config{
			SceneTable: cfg.SceneTable,
			AutoJoin:   cfg.AutoJoin,
		}, logger)

	return app, nil
}

// Start kicks off the secondary identity subsystem. Call once before
// Machine.Initialize; authentication waits on its readiness.
func (a *App) Start(ctx context.Context) {
	a.secondary.Begin(ctx, a.profile)
}

// Close releases held resources
func (a *App) Close() error {
	a.Heartbeat.Stop()
	a.Bus.Close()
	var firstErr error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
