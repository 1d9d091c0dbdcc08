package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
	"github.com/xrmultiplayer/sessionflow/internal/services/heartbeat"
	"github.com/xrmultiplayer/sessionflow/internal/services/relay"
	"github.com/xrmultiplayer/sessionflow/internal/sessionctx"
)

// Config holds the directory's filter tags and creation defaults
type Config struct {
	// Version is the build tag published and matched by quick-join
	Version string

	// SceneTag is the scene tag published and matched by quick-join
	SceneTag string

	// Visibility is the dev-instance visibility tag ("true" hides the
	// session from release builds' quick-join)
	Visibility string

	// MaxPlayers is the default session capacity
	MaxPlayers int
}

// Service wraps session discovery, join, create, update and leave against
// the directory provider, translating provider errors into user-facing
// categories. It owns the connected-session reference, the relay bridge
// hand-off, and the heartbeat loop for sessions this instance created.
type Service struct {
	provider  providers.Directory
	bridge    *relay.Bridge
	heartbeat *heartbeat.Loop
	session   *sessionctx.Context
	cfg       Config
	status    func(string)
	logger    *slog.Logger

	mu        sync.Mutex
	connected *model.SessionDescriptor
}

// New creates a session directory service. status receives human-readable
// progress strings and may be nil.
func New(
	provider providers.Directory,
	bridge *relay.Bridge,
	hb *heartbeat.Loop,
	session *sessionctx.Context,
	cfg Config,
	status func(string),
	logger *slog.Logger,
) *Service {
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = 20
	}
	if status == nil {
		status = func(string) {}
	}
	return &Service{
		provider:  provider,
		bridge:    bridge,
		heartbeat: hb,
		session:   session,
		cfg:       cfg,
		status:    status,
		logger:    logger.With(slog.String("component", "directory")),
	}
}

// QuickJoin joins the best matching discoverable session. When the
// provider reports that nothing matches the filter, and only then, it
// falls back to creating a session with default parameters. Provider
// outages propagate as errors rather than silently creating a duplicate.
func (s *Service) QuickJoin(ctx context.Context) (*model.SessionDescriptor, error) {
	s.status("Looking for existing sessions...")

	found, err := s.provider.QuickJoin(ctx, model.SessionFilter{
		Version:    s.cfg.Version,
		SceneTag:   s.cfg.SceneTag,
		Visibility: s.cfg.Visibility,
	})
	if err != nil {
		if errors.Is(err, model.ErrNoMatch) {
			s.status("No sessions available. Creating a new one...")
			return s.Create(ctx, "", false, 0)
		}
		return nil, translate(err)
	}

	if err := s.setupRelay(ctx, found); err != nil {
		return nil, err
	}
	return s.connectedTo(found), nil
}

// JoinByCode joins the session published under the given join code
func (s *Service) JoinByCode(ctx context.Context, code string) (*model.SessionDescriptor, error) {
	s.status("Joining session...")

	found, err := s.provider.JoinByCode(ctx, code)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.setupRelay(ctx, found); err != nil {
		return nil, err
	}
	return s.connectedTo(found), nil
}

// JoinByID joins a session directly by its id
func (s *Service) JoinByID(ctx context.Context, id string) (*model.SessionDescriptor, error) {
	s.status("Joining session...")

	found, err := s.provider.JoinByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.setupRelay(ctx, found); err != nil {
		return nil, err
	}
	return s.connectedTo(found), nil
}

// Create allocates a relay slot, publishes a new session with indexed
// attributes derived from the allocation, and starts the heartbeat loop
// for it. The transport is left configured for the host role.
func (s *Service) Create(ctx context.Context, name string, isPrivate bool, maxPlayers int) (*model.SessionDescriptor, error) {
	if maxPlayers <= 0 {
		maxPlayers = s.cfg.MaxPlayers
	}

	s.status("Creating relay allocation...")
	alloc, err := s.bridge.Allocate(ctx, maxPlayers)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = fmt.Sprintf("%s's Room", s.session.PlayerName())
	}

	s.status("Publishing session...")
	created, err := s.provider.Create(ctx, providers.CreateOptions{
		Name:       name,
		MaxPlayers: maxPlayers,
		IsPrivate:  isPrivate,
		Data: map[string]providers.DataObject{
			model.AttrJoinCode:   {Value: alloc.JoinCode, Visibility: providers.VisibilityPublic},
			model.AttrRegion:     {Value: alloc.Region, Visibility: providers.VisibilityPublic},
			model.AttrVersion:    {Value: s.cfg.Version, Visibility: providers.VisibilityPublic, IndexSlot: providers.IndexVersion},
			model.AttrScene:      {Value: s.cfg.SceneTag, Visibility: providers.VisibilityPublic, IndexSlot: providers.IndexScene},
			model.AttrVisibility: {Value: s.cfg.Visibility, Visibility: providers.VisibilityPublic, IndexSlot: providers.IndexVisibility},
		},
	})
	if err != nil {
		return nil, translate(err)
	}

	s.heartbeat.Start(created.ID)
	return s.connectedTo(created), nil
}

// UpdateName renames the connected session. No-op when no session is
// connected.
func (s *Service) UpdateName(ctx context.Context, name string) error {
	return s.update(ctx, providers.UpdateOptions{Name: &name})
}

// UpdatePrivacy changes the connected session's privacy. No-op when no
// session is connected.
func (s *Service) UpdatePrivacy(ctx context.Context, isPrivate bool) error {
	return s.update(ctx, providers.UpdateOptions{IsPrivate: &isPrivate})
}

func (s *Service) update(ctx context.Context, opts providers.UpdateOptions) error {
	s.mu.Lock()
	current := s.connected
	s.mu.Unlock()
	if current == nil {
		return nil
	}

	if err := s.provider.Update(ctx, current.ID, opts); err != nil {
		return translate(err)
	}

	// Refresh from the provider rather than from the partial update, to
	// pick up server-assigned fields
	refreshed, err := s.provider.Get(ctx, current.ID)
	if err != nil {
		return translate(err)
	}
	s.mu.Lock()
	s.connected = toDescriptor(refreshed)
	s.mu.Unlock()
	return nil
}

// Leave removes this instance from the connected session: the host deletes
// the session, anyone else just withdraws. The heartbeat is stopped before
// anything that can suspend, and the local session reference is cleared no
// matter which branch runs.
func (s *Service) Leave(ctx context.Context, discriminator model.PlayerID) error {
	s.heartbeat.Stop()

	s.mu.Lock()
	current := s.connected
	s.connected = nil
	s.mu.Unlock()

	if current == nil {
		return nil
	}

	if current.HostDiscriminator == discriminator {
		if err := s.provider.Delete(ctx, current.ID); err != nil {
			return translate(err)
		}
		s.logger.Info("session deleted", slog.String("session_id", current.ID))
		return nil
	}

	if err := s.provider.RemoveParticipant(ctx, current.ID, string(discriminator)); err != nil {
		return translate(err)
	}
	s.logger.Info("left session", slog.String("session_id", current.ID))
	return nil
}

// ConnectedSession returns the currently connected session, or nil
func (s *Service) ConnectedSession() *model.SessionDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// setupRelay configures the transport for the client role using the
// session's published join code
func (s *Service) setupRelay(ctx context.Context, found *providers.Session) error {
	s.status("Connecting to relay...")
	code := found.Data[model.AttrJoinCode].Value
	if code == "" {
		return fmt.Errorf("%w: session %s has no join code", model.ErrJoinFailed, found.ID)
	}
	return s.bridge.Join(ctx, code)
}

func (s *Service) connectedTo(session *providers.Session) *model.SessionDescriptor {
	desc := toDescriptor(session)
	s.mu.Lock()
	s.connected = desc
	s.mu.Unlock()
	s.status("Connected to session.")
	s.logger.Info("connected to session",
		slog.String("session_id", desc.ID),
		slog.String("name", desc.DisplayName))
	return desc
}

func toDescriptor(s *providers.Session) *model.SessionDescriptor {
	attrs := make(map[string]string, len(s.Data))
	for k, d := range s.Data {
		attrs[k] = d.Value
	}
	return &model.SessionDescriptor{
		ID:                s.ID,
		DisplayName:       s.Name,
		HostDiscriminator: model.PlayerID(s.HostID),
		IsPrivate:         s.IsPrivate,
		MaxPlayers:        s.MaxPlayers,
		Attributes:        attrs,
	}
}

// translate maps a provider error onto the user-facing categories by
// case-insensitive substring match against the provider's error text
func translate(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"):
		return as(model.ErrRateLimited, err)
	case strings.Contains(msg, "not found"):
		return as(model.ErrNotFound, err)
	default:
		return as(model.ErrDirectoryFailure, err)
	}
}

func as(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}
