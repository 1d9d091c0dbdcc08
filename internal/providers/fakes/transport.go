package fakes

import (
	"context"
	"sync"

	"github.com/xrmultiplayer/sessionflow/internal/model"
	"github.com/xrmultiplayer/sessionflow/internal/providers"
)

// TransportRole records which role the transport was configured for
type TransportRole string

const (
	RoleNone   TransportRole = ""
	RoleHost   TransportRole = "host"
	RoleClient TransportRole = "client"
)

// Transport is a recording transport for tests
type Transport struct {
	mu sync.Mutex

	// Scripted failures
	ConfigureErr error
	StartErr     error

	Role          TransportRole
	Credentials   model.RelayCredentials
	StartCalls    int
	ShutdownCalls int
}

var _ providers.Transport = (*Transport)(nil)

func (f *Transport) ConfigureAsHost(creds model.RelayCredentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfigureErr != nil {
		return f.ConfigureErr
	}
	f.Role = RoleHost
	f.Credentials = creds
	return nil
}

func (f *Transport) ConfigureAsClient(creds model.RelayCredentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfigureErr != nil {
		return f.ConfigureErr
	}
	f.Role = RoleClient
	f.Credentials = creds
	return nil
}

func (f *Transport) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartErr != nil {
		return f.StartErr
	}
	f.StartCalls++
	return nil
}

func (f *Transport) Shutdown() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ShutdownCalls++
	return nil
}

// SceneLoader records scene load requests for tests
type SceneLoader struct {
	mu sync.Mutex

	LoadErr error
	Loaded  []string
}

var _ providers.SceneLoader = (*SceneLoader)(nil)

func (f *SceneLoader) Load(ctx context.Context, sceneName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoadErr != nil {
		return f.LoadErr
	}
	f.Loaded = append(f.Loaded, sceneName)
	return nil
}

// LoadedScenes returns a copy of the scenes loaded so far
func (f *SceneLoader) LoadedScenes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Loaded))
	copy(out, f.Loaded)
	return out
}
