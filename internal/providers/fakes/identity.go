package fakes

import (
	"context"

	"github.com/xrmultiplayer/sessionflow/internal/providers"
)

// Identity is a scripted identity provider for tests
type Identity struct {
	// Scripted failures
	InitializeErr error
	SignInErr     error

	// AssignedPlayerID is the id granted on successful sign-in
	AssignedPlayerID string

	// Recorded state
	Profile         string
	InitializeCalls int
	SignInCalls     int

	initialized bool
	signedIn    bool
}

var _ providers.IdentityProvider = (*Identity)(nil)

func (f *Identity) Initialized() bool {
	return f.initialized
}

func (f *Identity) Initialize(ctx context.Context, profile string) error {
	f.InitializeCalls++
	if f.InitializeErr != nil {
		return f.InitializeErr
	}
	f.Profile = profile
	f.initialized = true
	return nil
}

func (f *Identity) SignedIn() bool {
	return f.signedIn
}

func (f *Identity) SignInAnonymously(ctx context.Context) error {
	f.SignInCalls++
	if f.SignInErr != nil {
		return f.SignInErr
	}
	f.signedIn = true
	return nil
}

func (f *Identity) PlayerID() string {
	if !f.signedIn {
		return ""
	}
	return f.AssignedPlayerID
}
