// Package inmem implements the provider interfaces against in-process
// state. It backs the memory backend: single-instance development runs
// that need no external services.
package inmem

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xrmultiplayer/sessionflow/internal/dependencies/random"
	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
)

const (
	joinCodeLength   = 6
	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Identity grants a process-local anonymous identity
type Identity struct {
	random random.Random
	logger *slog.Logger

	mu          sync.Mutex
	initialized bool
	playerID    string
}

var _ providers.IdentityProvider = (*Identity)(nil)

// NewIdentity creates an in-memory identity provider
func NewIdentity(rnd random.Random, logger *slog.Logger) *Identity {
	return &Identity{
		random: rnd,
		logger: logger.With(slog.String("component", "inmem_identity")),
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
	p.initialized = true
	p.logger.Debug("initialized", slog.String("profile", profile))
	return nil
}

func (p *Identity) SignedIn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playerID != ""
}

func (p *Identity) SignInAnonymously(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playerID == "" {
		p.playerID = p.random.UUID()
	}
	return nil
}

func (p *Identity) PlayerID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playerID
}

// Secondary completes immediately with a process-local user id
type Secondary struct {
	providers.ReadySignal

	random random.Random

	mu  sync.Mutex
	uid string
}

var _ providers.SecondaryIdentity = (*Secondary)(nil)

// NewSecondary creates an in-memory secondary identity subsystem
func NewSecondary(rnd random.Random) *Secondary {
	return &Secondary{random: rnd}
}

// Begin assigns the user id and signals readiness. There is no remote
// service to wait on.
func (p *Secondary) Begin(ctx context.Context, profile string) {
	p.mu.Lock()
	if p.uid == "" {
		p.uid = p.random.UUID()
	}
	p.mu.Unlock()
	p.Complete()
}

func (p *Secondary) UserID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uid
}

// Directory keeps published sessions in a process-local map
type Directory struct {
	random random.Random
	// localID resolves the local player's id at call time, after sign-in
	localID func() string
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*providers.Session
	members  map[string]map[string]struct{}
}

var _ providers.Directory = (*Directory)(nil)

// NewDirectory creates an in-memory session directory
func NewDirectory(rnd random.Random, localID func() string, logger *slog.Logger) *Directory {
	return &Directory{
		random:   rnd,
		localID:  localID,
		logger:   logger.With(slog.String("component", "inmem_directory")),
		sessions: make(map[string]*providers.Session),
		members:  make(map[string]map[string]struct{}),
	}
}

func (d *Directory) QuickJoin(ctx context.Context, filter model.SessionFilter) (*providers.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.sessions {
		if s.IsPrivate {
			continue
		}
		if s.Data[model.AttrVersion].Value != filter.Version ||
			s.Data[model.AttrScene].Value != filter.SceneTag ||
			s.Data[model.AttrVisibility].Value != filter.Visibility {
			continue
		}
		// A session at capacity is not a match; keep scanning
		if d.atCapacityLocked(s) {
			continue
		}
		d.addMemberLocked(s.ID, d.localID())
		return s, nil
	}
	return nil, model.ErrNoMatch
}

func (d *Directory) JoinByCode(ctx context.Context, code string) (*providers.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.sessions {
		if s.Data[model.AttrJoinCode].Value == code {
			return d.joinLocked(s)
		}
	}
	return nil, model.ErrNotFound
}

func (d *Directory) JoinByID(ctx context.Context, id string) (*providers.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.sessions[id]; ok {
		return d.joinLocked(s)
	}
	return nil, model.ErrNotFound
}

func (d *Directory) joinLocked(s *providers.Session) (*providers.Session, error) {
	if d.atCapacityLocked(s) {
		return nil, fmt.Errorf("session %s is full", s.ID)
	}
	d.addMemberLocked(s.ID, d.localID())
	return s, nil
}

func (d *Directory) atCapacityLocked(s *providers.Session) bool {
	return s.MaxPlayers > 0 && len(d.members[s.ID]) >= s.MaxPlayers
}

func (d *Directory) addMemberLocked(id, participant string) {
	if d.members[id] == nil {
		d.members[id] = make(map[string]struct{})
	}
	d.members[id][participant] = struct{}{}
}

func (d *Directory) Create(ctx context.Context, opts providers.CreateOptions) (*providers.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &providers.Session{
		ID:         d.random.UUID(),
		Name:       opts.Name,
		HostID:     d.localID(),
		IsPrivate:  opts.IsPrivate,
		MaxPlayers: opts.MaxPlayers,
		Data:       opts.Data,
	}
	d.sessions[s.ID] = s
	d.addMemberLocked(s.ID, s.HostID)
	d.logger.Info("session published", slog.String("session_id", s.ID))
	return s, nil
}

func (d *Directory) Get(ctx context.Context, id string) (*providers.Session, error) {
	return d.JoinByID(ctx, id)
}

func (d *Directory) Update(ctx context.Context, id string, opts providers.UpdateOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.sessions[id]
	if !ok {
		return model.ErrNotFound
	}
	if opts.Name != nil {
		s.Name = *opts.Name
	}
	if opts.IsPrivate != nil {
		s.IsPrivate = *opts.IsPrivate
	}
	return nil
}

func (d *Directory) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, id)
	delete(d.members, id)
	return nil
}

func (d *Directory) RemoveParticipant(ctx context.Context, id string, participant string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.members[id], participant)
	return nil
}

func (d *Directory) Heartbeat(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[id]; !ok {
		return model.ErrNotFound
	}
	return nil
}

// Relay hands out loopback allocations addressed by generated join codes
type Relay struct {
	random random.Random

	mu          sync.Mutex
	allocations map[string]*providers.Allocation
}

var _ providers.Relay = (*Relay)(nil)

// NewRelay creates an in-memory relay allocator
func NewRelay(rnd random.Random) *Relay {
	return &Relay{
		random:      rnd,
		allocations: make(map[string]*providers.Allocation),
	}
}

func (r *Relay) CreateAllocation(ctx context.Context, maxPlayers int) (*providers.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.random.UUID()
	alloc := &providers.Allocation{
		ID:             id,
		Server:         providers.RelayServer{IP: "127.0.0.1", Port: 7777},
		Region:         "local",
		AllocationID:   []byte(id),
		Key:            []byte(r.random.UUID()),
		ConnectionData: []byte(id),
	}
	code := r.random.Code(joinCodeLength, joinCodeAlphabet)
	r.allocations[code] = alloc
	return alloc, nil
}

func (r *Relay) JoinCode(ctx context.Context, allocationID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, alloc := range r.allocations {
		if alloc.ID == allocationID {
			return code, nil
		}
	}
	return "", model.ErrAllocationFailed
}

func (r *Relay) JoinAllocation(ctx context.Context, joinCode string) (*providers.JoinedAllocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alloc, ok := r.allocations[joinCode]
	if !ok {
		return nil, model.ErrJoinFailed
	}
	return &providers.JoinedAllocation{
		Allocation: providers.Allocation{
			ID:             alloc.ID,
			Server:         alloc.Server,
			Region:         alloc.Region,
			AllocationID:   alloc.AllocationID,
			Key:            alloc.Key,
			ConnectionData: []byte(r.random.UUID()),
		},
		HostConnectionData: alloc.ConnectionData,
	}, nil
}
