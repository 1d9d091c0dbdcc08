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

// Directory is a Redis-backed session directory. Session records live
// under a TTL refreshed by heartbeats, so sessions whose owner stops
// pinging are reaped; a join-code index and a discoverability set make
// them resolvable by code and matchable by quick-join filters.
type Directory struct {
	client *redis.Client
	random random.Random
	logger *slog.Logger
	cfg    Config

	// localID resolves the calling player's id at request time, once the
	// identity provider has signed in
	localID func() string
}

var _ providers.Directory = (*Directory)(nil)

// NewDirectory creates a Redis-backed session directory. localID must
// return the signed-in player id (used as host and participant id).
func NewDirectory(client *redis.Client, random random.Random, cfg Config, localID func() string, logger *slog.Logger) *Directory {
	return &Directory{
		client:  client,
		random:  random,
		logger:  logger.With(slog.String("provider", "directory")),
		cfg:     cfg,
		localID: localID,
	}
}

// sessionRecord is the stored form of a session
type sessionRecord struct {
	ID         string                          `json:"id"`
	Name       string                          `json:"name"`
	HostID     string                          `json:"host_id"`
	IsPrivate  bool                            `json:"is_private"`
	MaxPlayers int                             `json:"max_players"`
	Data       map[string]providers.DataObject `json:"data"`
}

func (d *Directory) QuickJoin(ctx context.Context, filter model.SessionFilter) (*providers.Session, error) {
	ids, err := d.client.SMembers(ctx, openSessionsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}

	for _, id := range ids {
		rec, err := d.getRecord(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				// Reaped session still in the index; clean it up
				d.client.SRem(ctx, openSessionsKey(), id)
				continue
			}
			return nil, err
		}
		if rec.IsPrivate {
			continue
		}
		if rec.Data[model.AttrVersion].Value != filter.Version ||
			rec.Data[model.AttrScene].Value != filter.SceneTag ||
			rec.Data[model.AttrVisibility].Value != filter.Visibility {
			continue
		}
		// A session at capacity is not a match; keep scanning
		full, err := d.atCapacity(ctx, rec)
		if err != nil {
			return nil, err
		}
		if full {
			continue
		}
		session, err := d.join(ctx, rec)
		if err != nil {
			return nil, err
		}
		return session, nil
	}

	return nil, model.ErrNoMatch
}

func (d *Directory) JoinByCode(ctx context.Context, code string) (*providers.Session, error) {
	id, err := d.client.Get(ctx, codeIndexKey(code)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("resolve join code: %w", err)
	}
	return d.JoinByID(ctx, id)
}

func (d *Directory) JoinByID(ctx context.Context, id string) (*providers.Session, error) {
	rec, err := d.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.join(ctx, rec)
}

func (d *Directory) join(ctx context.Context, rec *sessionRecord) (*providers.Session, error) {
	full, err := d.atCapacity(ctx, rec)
	if err != nil {
		return nil, err
	}
	if full {
		return nil, fmt.Errorf("session %s is full", rec.ID)
	}
	if err := d.client.SAdd(ctx, sessionMembersKey(rec.ID), d.localID()).Err(); err != nil {
		return nil, fmt.Errorf("register participant: %w", err)
	}
	return rec.toSession(), nil
}

func (d *Directory) atCapacity(ctx context.Context, rec *sessionRecord) (bool, error) {
	if rec.MaxPlayers <= 0 {
		return false, nil
	}
	count, err := d.client.SCard(ctx, sessionMembersKey(rec.ID)).Result()
	if err != nil {
		return false, fmt.Errorf("count participants: %w", err)
	}
	return int(count) >= rec.MaxPlayers, nil
}

func (d *Directory) Create(ctx context.Context, opts providers.CreateOptions) (*providers.Session, error) {
	rec := &sessionRecord{
		ID:         d.random.UUID(),
		Name:       opts.Name,
		HostID:     d.localID(),
		IsPrivate:  opts.IsPrivate,
		MaxPlayers: opts.MaxPlayers,
		Data:       opts.Data,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	pipe := d.client.Pipeline()
	pipe.Set(ctx, sessionKey(rec.ID), data, d.cfg.SessionTTL)
	pipe.SAdd(ctx, sessionMembersKey(rec.ID), rec.HostID)
	pipe.Expire(ctx, sessionMembersKey(rec.ID), d.cfg.SessionTTL)
	if code := rec.Data[model.AttrJoinCode].Value; code != "" {
		pipe.Set(ctx, codeIndexKey(code), rec.ID, d.cfg.SessionTTL)
	}
	if !rec.IsPrivate {
		pipe.SAdd(ctx, openSessionsKey(), rec.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	d.logger.Info("session created",
		slog.String("session_id", rec.ID),
		slog.String("name", rec.Name))
	return rec.toSession(), nil
}

func (d *Directory) Get(ctx context.Context, id string) (*providers.Session, error) {
	rec, err := d.getRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.toSession(), nil
}

func (d *Directory) Update(ctx context.Context, id string, opts providers.UpdateOptions) error {
	rec, err := d.getRecord(ctx, id)
	if err != nil {
		return err
	}
	if opts.Name != nil {
		rec.Name = *opts.Name
	}
	if opts.IsPrivate != nil {
		rec.IsPrivate = *opts.IsPrivate
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := d.client.Pipeline()
	pipe.Set(ctx, sessionKey(id), data, redis.KeepTTL)
	if opts.IsPrivate != nil {
		if *opts.IsPrivate {
			pipe.SRem(ctx, openSessionsKey(), id)
		} else {
			pipe.SAdd(ctx, openSessionsKey(), id)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

func (d *Directory) Delete(ctx context.Context, id string) error {
	rec, err := d.getRecord(ctx, id)
	if err != nil {
		return err
	}

	pipe := d.client.Pipeline()
	pipe.Del(ctx, sessionKey(id), sessionMembersKey(id))
	if code := rec.Data[model.AttrJoinCode].Value; code != "" {
		pipe.Del(ctx, codeIndexKey(code))
	}
	pipe.SRem(ctx, openSessionsKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	d.logger.Info("session deleted", slog.String("session_id", id))
	return nil
}

func (d *Directory) RemoveParticipant(ctx context.Context, id string, participant string) error {
	if err := d.client.SRem(ctx, sessionMembersKey(id), participant).Err(); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	return nil
}

// Heartbeat refreshes the session's TTL. A session that stops receiving
// heartbeats expires and is reaped from the index on the next scan.
func (d *Directory) Heartbeat(ctx context.Context, id string) error {
	rec, err := d.getRecord(ctx, id)
	if err != nil {
		return err
	}

	pipe := d.client.Pipeline()
	pipe.Expire(ctx, sessionKey(id), d.cfg.SessionTTL)
	pipe.Expire(ctx, sessionMembersKey(id), d.cfg.SessionTTL)
	if code := rec.Data[model.AttrJoinCode].Value; code != "" {
		pipe.Expire(ctx, codeIndexKey(code), d.cfg.SessionTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

func (d *Directory) getRecord(ctx context.Context, id string) (*sessionRecord, error) {
	data, err := d.client.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &rec, nil
}

func (r *sessionRecord) toSession() *providers.Session {
	return &providers.Session{
		ID:         r.ID,
		Name:       r.Name,
		HostID:     r.HostID,
		IsPrivate:  r.IsPrivate,
		MaxPlayers: r.MaxPlayers,
		Data:       r.Data,
	}
}
