package model

// PlayerID is the stable per-player identifier issued by the identity
// provider, used as the remote store's partition key
type PlayerID string

// Identity is the unified authenticated identity for this process.
// It is established once at successful authentication and never mutated.
type Identity struct {
	// LocalDiscriminator is the provider-assigned player id
	LocalDiscriminator PlayerID
	// RemoteUserID is the secondary identity subsystem's user id,
	// available only after that subsystem signals readiness
	RemoteUserID string
}

// Established reports whether authentication completed for this identity
func (i Identity) Established() bool {
	return i.LocalDiscriminator != ""
}
