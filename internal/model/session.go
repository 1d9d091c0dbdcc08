package model

// Attribute keys published as indexed session data so that quick-join
// filters on other instances can match them
const (
	AttrJoinCode   = "j"
	AttrRegion     = "r"
	AttrVersion    = "b"
	AttrScene      = "s"
	AttrVisibility = "e"
)

// SessionDescriptor represents a session this instance has joined or
// created. Owned by the session directory; a reference is held by the
// state machine for the lifetime of the connection.
type SessionDescriptor struct {
	ID                string
	DisplayName       string
	HostDiscriminator PlayerID
	IsPrivate         bool
	MaxPlayers        int
	Attributes        map[string]string
}

// JoinCode returns the session's published join code, or "" if the
// session carries none
func (s *SessionDescriptor) JoinCode() string {
	if s == nil || s.Attributes == nil {
		return ""
	}
	return s.Attributes[AttrJoinCode]
}

// SessionFilter holds the equality filters used for quick-join matching
type SessionFilter struct {
	Version    string
	SceneTag   string
	Visibility string
}
