package model

import "errors"

// Common errors used across the application
var (
	// Authentication errors
	ErrProviderUnavailable      = errors.New("identity provider unavailable")
	ErrIncompleteInitialization = errors.New("identity initialization incomplete")

	// Session directory errors
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrNotFound         = errors.New("session not found")
	ErrNoMatch          = errors.New("no session matches the filter")
	ErrDirectoryFailure = errors.New("session directory request failed")
	ErrNoSession        = errors.New("no session connected")

	// Relay errors
	ErrAllocationFailed = errors.New("relay allocation failed")
	ErrJoinFailed       = errors.New("relay join failed")

	// Remote store errors
	ErrReadFailed  = errors.New("remote store read failed")
	ErrWriteFailed = errors.New("remote store write failed")

	// Orchestrator errors
	ErrCommandInFlight  = errors.New("another connection command is in flight")
	ErrNotAuthenticated = errors.New("not authenticated")
)
