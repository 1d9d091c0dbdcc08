package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadySignalReleasesWaiter(t *testing.T) {
	var sig ReadySignal

	done := make(chan struct{})
	go func() {
		<-sig.Ready()
		close(done)
	}()

	sig.Complete()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was not released after Complete")
	}
}

func TestReadySignalLateWaiterProceedsImmediately(t *testing.T) {
	var sig ReadySignal

	// Complete before anyone is waiting; a waiter attaching afterwards
	// must not block forever.
	sig.Complete()

	select {
	case <-sig.Ready():
	case <-time.After(time.Second):
		t.Fatal("late waiter blocked on an already-completed signal")
	}
}

func TestReadySignalIsReady(t *testing.T) {
	var sig ReadySignal
	assert.False(t, sig.IsReady())

	sig.Complete()
	require.True(t, sig.IsReady())

	// Completing again is a no-op
	sig.Complete()
	assert.True(t, sig.IsReady())
}
