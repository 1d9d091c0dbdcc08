package providers

import "context"

// IdentityProvider is the primary identity service: profile-scoped
// initialization followed by anonymous sign-in yielding a stable player id
type IdentityProvider interface {
	// Initialized reports whether the provider's global state has been
	// initialized for this process
	Initialized() bool

	// Initialize sets up the provider with the given profile. The profile
	// scopes anonymous accounts so that concurrently-run local instances
	// do not collide.
	Initialize(ctx context.Context, profile string) error

	// SignedIn reports whether an anonymous sign-in has completed
	SignedIn() bool

	// SignInAnonymously signs in, creating the profile's anonymous
	// account on first use
	SignInAnonymously(ctx context.Context) error

	// PlayerID returns the provider-assigned player id. Valid only after
	// a successful sign-in.
	PlayerID() string
}
