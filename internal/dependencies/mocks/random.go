package mocks

import (
	"fmt"

	"github.com/xrmultiplayer/sessionflow/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// Queued values are returned in order; when the queue is empty a
// deterministic sequence is generated instead.
type MockRandom struct {
	codes   []string
	uuids   []string
	counter int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates an empty MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// QueueCode queues a value to be returned by the next Code call
func (r *MockRandom) QueueCode(code string) {
	r.codes = append(r.codes, code)
}

// QueueUUID queues a value to be returned by the next UUID call
func (r *MockRandom) QueueUUID(id string) {
	r.uuids = append(r.uuids, id)
}

// Code returns the next queued code, or a deterministic fallback
func (r *MockRandom) Code(length int, alphabet string) string {
	if len(r.codes) > 0 {
		code := r.codes[0]
		r.codes = r.codes[1:]
		return code
	}
	r.counter++
	return fmt.Sprintf("CODE%02d", r.counter)
}

// UUID returns the next queued uuid, or a deterministic fallback
func (r *MockRandom) UUID() string {
	if len(r.uuids) > 0 {
		id := r.uuids[0]
		r.uuids = r.uuids[1:]
		return id
	}
	r.counter++
	return fmt.Sprintf("00000000-0000-0000-0000-%012d", r.counter)
}
