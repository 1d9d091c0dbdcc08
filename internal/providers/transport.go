package providers

import (
	"context"

	"github.com/xrmultiplayer/sessionflow/internal/model"
)

// Transport is the network transport driven into host or client mode once
// relay credentials are known. The wire format is not this module's
// concern.
type Transport interface {
	ConfigureAsHost(creds model.RelayCredentials) error
	ConfigureAsClient(creds model.RelayCredentials) error
	Start() error
	Shutdown() error
}

// SceneLoader loads the scene associated with a session before the
// transport starts
type SceneLoader interface {
	Load(ctx context.Context, sceneName string) error
}
