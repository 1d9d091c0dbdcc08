package providers

import (
	"context"

	"github.com/xrmultiplayer/sessionflow/internal/model"
)

// Visibility controls whether a session data field is readable by
// non-members
type Visibility string

const (
	VisibilityPublic Visibility = "public"
	VisibilityMember Visibility = "member"
)

// DataObject is a session data field. IndexSlot > 0 marks the field as
// indexed so quick-join equality filters can match on it.
type DataObject struct {
	Value      string
	Visibility Visibility
	IndexSlot  int
}

// Index slots for the indexed session attributes
const (
	IndexVersion    = 1
	IndexScene      = 2
	IndexVisibility = 3
)

// Session is the directory provider's session record
type Session struct {
	ID         string
	Name       string
	HostID     string
	IsPrivate  bool
	MaxPlayers int
	Data       map[string]DataObject
}

// CreateOptions holds parameters for session creation
type CreateOptions struct {
	Name       string
	MaxPlayers int
	IsPrivate  bool
	Data       map[string]DataObject
}

// UpdateOptions holds a partial session update; nil fields are untouched
type UpdateOptions struct {
	Name      *string
	IsPrivate *bool
}

// Directory is the session directory provider (the lobby-like service).
// QuickJoin returns model.ErrNoMatch when no session satisfies the filter;
// every other failure is a provider error surfaced as-is.
type Directory interface {
	QuickJoin(ctx context.Context, filter model.SessionFilter) (*Session, error)
	JoinByCode(ctx context.Context, code string) (*Session, error)
	JoinByID(ctx context.Context, id string) (*Session, error)
	Create(ctx context.Context, opts CreateOptions) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, id string, opts UpdateOptions) error
	Delete(ctx context.Context, id string) error
	RemoveParticipant(ctx context.Context, id string, participant string) error
	Heartbeat(ctx context.Context, id string) error
}
