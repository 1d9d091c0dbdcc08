package model

// ConnectionState is the process-wide connection state. It is monotonic
// within one connection attempt; failure returns to Authenticated when the
// identity is established, else None.
type ConnectionState int

const (
	StateNone ConnectionState = iota
	StateAuthenticating
	StateAuthenticated
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}
