package fakes

import (
	"context"
	"fmt"
	"sync"

	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
)

// Directory is a scripted session directory provider for tests. Sessions
// created through it are joinable by code or id, and each operation can be
// forced to fail.
type Directory struct {
	mu sync.Mutex

	// Scripted failures
	QuickJoinErr error
	JoinErr      error
	CreateErr    error
	UpdateErr    error
	DeleteErr    error
	RemoveErr    error
	HeartbeatErr error

	// Call counts
	QuickJoinCalls int
	JoinCalls      int
	CreateCalls    int
	DeleteCalls    int
	RemoveCalls    int
	HeartbeatCalls int

	// LastHeartbeatID records the session id of the most recent heartbeat
	LastHeartbeatID string

	// Gate, when non-nil, blocks QuickJoin until the channel is closed.
	// Set it before issuing the command that should be held in flight.
	Gate chan struct{}

	// HostID is assigned as the host of created sessions
	HostID string

	sessions map[string]*providers.Session
	nextID   int
}

var _ providers.Directory = (*Directory)(nil)

// NewDirectory creates an empty fake directory
func NewDirectory() *Directory {
	return &Directory{sessions: make(map[string]*providers.Session)}
}

// AddSession seeds a session as if another instance had created it
func (f *Directory) AddSession(s *providers.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

// SessionCount returns the number of sessions the directory holds
func (f *Directory) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *Directory) QuickJoin(ctx context.Context, filter model.SessionFilter) (*providers.Session, error) {
	if f.Gate != nil {
		<-f.Gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QuickJoinCalls++
	if f.QuickJoinErr != nil {
		return nil, f.QuickJoinErr
	}
	for _, s := range f.sessions {
		if s.IsPrivate {
			continue
		}
		if matches(s, model.AttrVersion, filter.Version) &&
			matches(s, model.AttrScene, filter.SceneTag) &&
			matches(s, model.AttrVisibility, filter.Visibility) {
			return s, nil
		}
	}
	return nil, model.ErrNoMatch
}

func matches(s *providers.Session, key, want string) bool {
	return s.Data[key].Value == want
}

func (f *Directory) JoinByCode(ctx context.Context, code string) (*providers.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JoinCalls++
	if f.JoinErr != nil {
		return nil, f.JoinErr
	}
	for _, s := range f.sessions {
		if s.Data[model.AttrJoinCode].Value == code {
			return s, nil
		}
	}
	return nil, model.ErrNotFound
}

func (f *Directory) JoinByID(ctx context.Context, id string) (*providers.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JoinCalls++
	if f.JoinErr != nil {
		return nil, f.JoinErr
	}
	if s, ok := f.sessions[id]; ok {
		return s, nil
	}
	return nil, model.ErrNotFound
}

func (f *Directory) Create(ctx context.Context, opts providers.CreateOptions) (*providers.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	f.nextID++
	s := &providers.Session{
		ID:         fmt.Sprintf("session-%d", f.nextID),
		Name:       opts.Name,
		HostID:     f.HostID,
		IsPrivate:  opts.IsPrivate,
		MaxPlayers: opts.MaxPlayers,
		Data:       opts.Data,
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *Directory) Get(ctx context.Context, id string) (*providers.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		return s, nil
	}
	return nil, model.ErrNotFound
}

func (f *Directory) Update(ctx context.Context, id string, opts providers.UpdateOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	s, ok := f.sessions[id]
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

func (f *Directory) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.sessions, id)
	return nil
}

func (f *Directory) RemoveParticipant(ctx context.Context, id string, participant string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RemoveCalls++
	return f.RemoveErr
}

func (f *Directory) Heartbeat(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HeartbeatCalls++
	f.LastHeartbeatID = id
	return f.HeartbeatErr
}
