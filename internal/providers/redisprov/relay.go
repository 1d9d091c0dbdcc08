package redisprov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/xrmultiplayer/sessionflow/internal/dependencies/random"
	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
)

const (
	joinCodeLength = 6
	// Avoid confusing characters in shareable codes
	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Relay is a Redis-backed relay allocator for local/dev clusters: it hands
// out routing slots pointing at a fixed relay endpoint and join codes that
// resolve to them. Allocations expire if never claimed.
type Relay struct {
	client *redis.Client
	random random.Random
	logger *slog.Logger
	cfg    Config
}

var _ providers.Relay = (*Relay)(nil)

// NewRelay creates a Redis-backed relay provider
func NewRelay(client *redis.Client, random random.Random, cfg Config, logger *slog.Logger) *Relay {
	return &Relay{
		client: client,
		random: random,
		logger: logger.With(slog.String("provider", "relay")),
		cfg:    cfg,
	}
}

// allocationRecord is the stored form of an allocation
type allocationRecord struct {
	ID             string `json:"id"`
	Region         string `json:"region"`
	MaxPlayers     int    `json:"max_players"`
	Key            []byte `json:"key"`
	HostData       []byte `json:"host_data"`
	JoinCode       string `json:"join_code,omitempty"`
}

func (r *Relay) CreateAllocation(ctx context.Context, maxPlayers int) (*providers.Allocation, error) {
	rec := &allocationRecord{
		ID:         r.random.UUID(),
		Region:     "local",
		MaxPlayers: maxPlayers,
		Key:        []byte(r.random.UUID()),
		HostData:   []byte(r.random.UUID()),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := r.client.Set(ctx, allocationKey(rec.ID), data, r.cfg.AllocationTTL).Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrAllocationFailed, err)
	}

	r.logger.Info("relay allocation created", slog.String("allocation_id", rec.ID))
	return r.toAllocation(rec), nil
}

func (r *Relay) JoinCode(ctx context.Context, allocationID string) (string, error) {
	rec, err := r.getRecord(ctx, allocationID)
	if err != nil {
		return "", err
	}
	if rec.JoinCode != "" {
		return rec.JoinCode, nil
	}

	code := r.random.Code(joinCodeLength, joinCodeAlphabet)
	rec.JoinCode = code
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, allocationKey(rec.ID), data, redis.KeepTTL)
	pipe.Set(ctx, relayCodeIndexKey(code), rec.ID, r.cfg.AllocationTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("%w: %s", model.ErrAllocationFailed, err)
	}
	return code, nil
}

func (r *Relay) JoinAllocation(ctx context.Context, joinCode string) (*providers.JoinedAllocation, error) {
	id, err := r.client.Get(ctx, relayCodeIndexKey(joinCode)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: unknown join code %q", model.ErrJoinFailed, joinCode)
		}
		return nil, fmt.Errorf("%w: %s", model.ErrJoinFailed, err)
	}

	rec, err := r.getRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrJoinFailed, err)
	}

	alloc := r.toAllocation(rec)
	return &providers.JoinedAllocation{
		Allocation: providers.Allocation{
			ID:             alloc.ID,
			Server:         alloc.Server,
			Region:         alloc.Region,
			AllocationID:   alloc.AllocationID,
			Key:            alloc.Key,
			ConnectionData: []byte(r.random.UUID()),
		},
		HostConnectionData: rec.HostData,
	}, nil
}

func (r *Relay) getRecord(ctx context.Context, id string) (*allocationRecord, error) {
	data, err := r.client.Get(ctx, allocationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: allocation %s not found", model.ErrAllocationFailed, id)
		}
		return nil, fmt.Errorf("%w: %s", model.ErrAllocationFailed, err)
	}
	var rec allocationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s", model.ErrAllocationFailed, err)
	}
	return &rec, nil
}

func (r *Relay) toAllocation(rec *allocationRecord) *providers.Allocation {
	return &providers.Allocation{
		ID:             rec.ID,
		Server:         providers.RelayServer{IP: r.cfg.RelayHost, Port: r.cfg.RelayPort},
		Region:         rec.Region,
		AllocationID:   []byte(rec.ID),
		Key:            rec.Key,
		ConnectionData: rec.HostData,
	}
}
