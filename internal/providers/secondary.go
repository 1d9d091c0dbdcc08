package providers

import "sync"

// SecondaryIdentity is the secondary identity subsystem. It becomes ready
// at most once per process; UserID is readable only after readiness.
type SecondaryIdentity interface {
	// Ready returns a channel that is closed once the subsystem is ready.
	// A caller that starts waiting after readiness proceeds immediately.
	Ready() <-chan struct{}

	// IsReady reports whether the subsystem has signaled readiness
	IsReady() bool

	// UserID returns the subsystem's user id. Valid only after readiness.
	UserID() string
}

// ReadySignal is a one-shot readiness future. Completion is remembered, so
// a waiter that attaches after Complete is released immediately instead of
// waiting forever. Implementations of SecondaryIdentity embed one.
type ReadySignal struct {
	once sync.Once
	ch   chan struct{}

	initOnce sync.Once
}

func (r *ReadySignal) init() {
	r.initOnce.Do(func() {
		r.ch = make(chan struct{})
	})
}

// Complete marks the signal ready. Safe to call more than once; only the
// first call has effect.
func (r *ReadySignal) Complete() {
	r.init()
	r.once.Do(func() {
		close(r.ch)
	})
}

// Ready returns the channel closed at completion
func (r *ReadySignal) Ready() <-chan struct{} {
	r.init()
	return r.ch
}

// IsReady reports whether Complete has been called
func (r *ReadySignal) IsReady() bool {
	r.init()
	select {
	case <-r.ch:
		return true
	default:
		return false
	}
}
