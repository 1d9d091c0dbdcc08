package model

// PlayerAssignment is the per-player record kept in the remote key-value
// store: which scene the player belongs in, the session they were last part
// of, and their avatar. The store is eventually consistent; the local copy
// may transiently diverge from remote truth.
type PlayerAssignment struct {
	SceneIndex  int
	SessionCode string
	AvatarID    int
}

// DefaultAssignment returns the assignment used when nothing has been
// written remotely yet
func DefaultAssignment() PlayerAssignment {
	return PlayerAssignment{
		SceneIndex:  0,
		SessionCode: "",
		AvatarID:    0,
	}
}
