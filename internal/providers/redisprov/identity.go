package redisprov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/xrmultiplayer/sessionflow/internal/dependencies/random"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
)

const secretLength = 32
const secretAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// profileRecord is the stored account for an anonymous profile
type profileRecord struct {
	PlayerID   string `json:"player_id"`
	SecretHash []byte `json:"secret_hash"`
}

// Identity is a Redis-backed anonymous identity provider. Accounts are
// keyed by profile: the first sign-in for a profile creates the account,
// later sign-ins resume it, so the player id stays stable across runs.
type Identity struct {
	client *redis.Client
	random random.Random
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	profile     string
	playerID    string
	secret      string
}

var _ providers.IdentityProvider = (*Identity)(nil)

// NewIdentity creates a Redis-backed identity provider
func NewIdentity(client *redis.Client, random random.Random, logger *slog.Logger) *Identity {
	return &Identity{
		client: client,
		random: random,
		logger: logger.With(slog.String("provider", "identity")),
	}
}

func (p *Identity) Initialized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

func (p *Identity) Initialize(ctx context.Context, profile string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}
	if profile == "" {
		return errors.New("profile must not be empty")
	}
	p.profile = profile
	p.initialized = true
	p.logger.Info("identity provider initialized", slog.String("profile", profile))
	return nil
}

func (p *Identity) SignedIn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playerID != ""
}

// SignInAnonymously signs the profile in. A fresh profile gets a new
// account; an existing profile is resumed with its stored player id. A
// process that holds the profile's secret re-authenticates against the
// stored bcrypt hash; a new process rotates the secret but keeps the id.
func (p *Identity) SignInAnonymously(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return errors.New("identity provider not initialized")
	}
	if p.playerID != "" {
		return nil
	}

	key := profileKey(p.profile)
	data, err := p.client.Get(ctx, key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("fetch profile account: %w", err)
	}

	if errors.Is(err, redis.Nil) {
		return p.createAccount(ctx, key)
	}

	var rec profileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("decode profile account: %w", err)
	}

	if p.secret != "" && bcrypt.CompareHashAndPassword(rec.SecretHash, []byte(p.secret)) == nil {
		p.playerID = rec.PlayerID
		return nil
	}

	// New process resuming the profile: rotate the secret, keep the id
	secret := p.random.Code(secretLength, secretAlphabet)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}
	rec.SecretHash = hash
	out, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := p.client.Set(ctx, key, out, 0).Err(); err != nil {
		return fmt.Errorf("update profile account: %w", err)
	}
	p.secret = secret
	p.playerID = rec.PlayerID
	p.logger.Info("anonymous sign-in resumed", slog.String("player_id", rec.PlayerID))
	return nil
}

func (p *Identity) createAccount(ctx context.Context, key string) error {
	secret := p.random.Code(secretLength, secretAlphabet)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}
	rec := profileRecord{
		PlayerID:   p.random.UUID(),
		SecretHash: hash,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	// SETNX so two instances racing on the same profile agree on one account
	set, err := p.client.SetNX(ctx, key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("create profile account: %w", err)
	}
	if !set {
		// Lost the race; resume the winner's account
		winner, err := p.client.Get(ctx, key).Bytes()
		if err != nil {
			return fmt.Errorf("fetch profile account: %w", err)
		}
		if err := json.Unmarshal(winner, &rec); err != nil {
			return fmt.Errorf("decode profile account: %w", err)
		}
		p.playerID = rec.PlayerID
		return nil
	}

	p.secret = secret
	p.playerID = rec.PlayerID
	p.logger.Info("anonymous account created", slog.String("player_id", rec.PlayerID))
	return nil
}

func (p *Identity) PlayerID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playerID
}
