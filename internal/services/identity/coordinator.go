package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
	"github.com/xrmultiplayer/sessionflow/internal/sessionctx"
)

// Coordinator authenticates against the primary identity provider, waits
// for the secondary identity subsystem to become ready, and assembles the
// unified identity. Safe to call again once authenticated: the established
// identity is returned without touching the provider.
type Coordinator struct {
	provider  providers.IdentityProvider
	secondary providers.SecondaryIdentity
	session   *sessionctx.Context
	profile   ProfileOptions
	logger    *slog.Logger
}

// NewCoordinator creates an identity coordinator
func NewCoordinator(
	provider providers.IdentityProvider,
	secondary providers.SecondaryIdentity,
	session *sessionctx.Context,
	profile ProfileOptions,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		provider:  provider,
		secondary: secondary,
		session:   session,
		profile:   profile,
		logger:    logger.With(slog.String("component", "identity")),
	}
}

// Authenticate performs the full authentication sequence and returns the
// unified identity
func (c *Coordinator) Authenticate(ctx context.Context) (model.Identity, error) {
	if id := c.session.Identity(); id.Established() {
		return id, nil
	}

	if !c.provider.Initialized() {
		profile := BuildProfile(c.profile)
		c.logger.Info("initializing identity provider", slog.String("profile", profile))
		if err := c.provider.Initialize(ctx, profile); err != nil {
			return model.Identity{}, fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
		}
	}

	if !c.provider.SignedIn() {
		if err := c.provider.SignInAnonymously(ctx); err != nil {
			return model.Identity{}, fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
		}
	}

	local := c.provider.PlayerID()
	c.session.SetLocalDiscriminator(model.PlayerID(local))
	c.logger.Info("signed in", slog.String("player_id", local))

	if !c.secondary.IsReady() {
		c.logger.Info("waiting for secondary identity")
		select {
		case <-c.secondary.Ready():
		case <-ctx.Done():
			return model.Identity{}, ctx.Err()
		}
	}

	if !c.provider.Initialized() || !c.secondary.IsReady() || local == "" {
		return model.Identity{}, model.ErrIncompleteInitialization
	}

	id := model.Identity{
		LocalDiscriminator: model.PlayerID(local),
		RemoteUserID:       c.secondary.UserID(),
	}
	c.session.SetIdentity(id)
	c.logger.Info("secondary identity ready", slog.String("user_id", id.RemoteUserID))
	return id, nil
}

// IsAuthenticated reports whether the primary provider is signed in
func (c *Coordinator) IsAuthenticated() bool {
	return c.provider.SignedIn()
}
