package redisprov

import "fmt"

// Key prefix for all provider data
const keyPrefix = "sflow"

// profileKey returns the Redis key for an anonymous profile account
func profileKey(profile string) string {
	return fmt.Sprintf("%s:auth:profile:%s", keyPrefix, profile)
}

// secondaryKey returns the Redis key for a profile's secondary user id
func secondaryKey(profile string) string {
	return fmt.Sprintf("%s:auth2:profile:%s", keyPrefix, profile)
}

// sessionKey returns the Redis key for a session record
func sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// sessionMembersKey returns the Redis key for a session's participant set
func sessionMembersKey(id string) string {
	return fmt.Sprintf("%s:session:%s:members", keyPrefix, id)
}

// codeIndexKey returns the Redis key for the join code -> session id index
func codeIndexKey(code string) string {
	return fmt.Sprintf("%s:idx:code:%s", keyPrefix, code)
}

// openSessionsKey returns the Redis key for the SET of discoverable sessions
func openSessionsKey() string {
	return fmt.Sprintf("%s:idx:sessions", keyPrefix)
}

// allocationKey returns the Redis key for a relay allocation
func allocationKey(id string) string {
	return fmt.Sprintf("%s:relay:alloc:%s", keyPrefix, id)
}

// relayCodeIndexKey returns the Redis key for the join code -> allocation index
func relayCodeIndexKey(code string) string {
	return fmt.Sprintf("%s:idx:relaycode:%s", keyPrefix, code)
}
