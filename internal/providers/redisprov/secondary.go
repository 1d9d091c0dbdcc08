package redisprov

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/xrmultiplayer/sessionflow/internal/dependencies/random"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
)

// Secondary is a Redis-backed secondary identity subsystem. It initializes
// independently of the primary provider: Begin resolves (or mints) the
// profile's user id in the background and completes the readiness signal,
// which fires at most once per process.
type Secondary struct {
	providers.ReadySignal

	client *redis.Client
	random random.Random
	logger *slog.Logger

	mu     sync.Mutex
	userID string
	began  bool
}

var _ providers.SecondaryIdentity = (*Secondary)(nil)

// NewSecondary creates a Redis-backed secondary identity subsystem
func NewSecondary(client *redis.Client, random random.Random, logger *slog.Logger) *Secondary {
	return &Secondary{
		client: client,
		random: random,
		logger: logger.With(slog.String("provider", "secondary_identity")),
	}
}

// Begin starts initialization for the given profile. Subsequent calls are
// no-ops.
func (p *Secondary) Begin(ctx context.Context, profile string) {
	p.mu.Lock()
	if p.began {
		p.mu.Unlock()
		return
	}
	p.began = true
	p.mu.Unlock()

	go p.run(ctx, profile)
}

func (p *Secondary) run(ctx context.Context, profile string) {
	key := secondaryKey(profile)

	uid, err := p.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Error("secondary identity unavailable", slog.String("error", err.Error()))
			return
		}
		uid = p.random.UUID()
		set, err := p.client.SetNX(ctx, key, uid, 0).Result()
		if err != nil {
			p.logger.Error("secondary identity unavailable", slog.String("error", err.Error()))
			return
		}
		if !set {
			uid, err = p.client.Get(ctx, key).Result()
			if err != nil {
				p.logger.Error("secondary identity unavailable", slog.String("error", err.Error()))
				return
			}
		}
	}

	p.mu.Lock()
	p.userID = uid
	p.mu.Unlock()

	p.logger.Info("secondary identity ready", slog.String("user_id", uid))
	p.Complete()
}

func (p *Secondary) UserID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userID
}
