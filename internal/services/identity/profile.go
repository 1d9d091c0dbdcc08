package identity

// ProfileOptions carries the environment inputs for building the identity
// provider's initialization profile
type ProfileOptions struct {
	// Base is the profile name; "Player" when empty
	Base string

	// InstanceTag disambiguates concurrently-run local instances (debug
	// clones on one machine) in multi-instance development mode
	InstanceTag string

	// PlayerTag is the command-line-supplied tag used in headless runs
	PlayerTag string

	// Headless marks a non-interactive/automated run
	Headless bool
}

// BuildProfile derives the provider initialization profile. The result is
// deterministic for a given set of options and never empty.
func BuildProfile(opts ProfileOptions) string {
	profile := opts.Base
	if profile == "" {
		profile = "Player"
	}
	if opts.InstanceTag != "" {
		profile += opts.InstanceTag
	}
	if opts.Headless && opts.PlayerTag != "" {
		profile += opts.PlayerTag
	}
	return profile
}
