package fakes

import "github.com/xrmultiplayer/sessionflow/internal/providers"

// Secondary is a manually-completed secondary identity subsystem for tests
type Secondary struct {
	providers.ReadySignal

	userID string
}

var _ providers.SecondaryIdentity = (*Secondary)(nil)

// NewReadySecondary returns a Secondary that is already ready with the
// given user id
func NewReadySecondary(userID string) *Secondary {
	s := &Secondary{}
	s.MarkReady(userID)
	return s
}

// MarkReady sets the user id and completes the readiness signal
func (f *Secondary) MarkReady(userID string) {
	f.userID = userID
	f.Complete()
}

func (f *Secondary) UserID() string {
	if !f.IsReady() {
		return ""
	}
	return f.userID
}
