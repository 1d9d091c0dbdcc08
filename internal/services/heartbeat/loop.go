package heartbeat

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is the reference keep-alive interval
const DefaultInterval = 15 * time.Second

// Pinger sends one keep-alive signal for a session
type Pinger interface {
	Heartbeat(ctx context.Context, sessionID string) error
}

// Loop is a single-flight periodic keep-alive task bound to one session
// id. It ticks immediately on start and then at a fixed interval until
// stopped. At most one loop runs per Loop instance: starting a new one
// first stops the previous one. Tick failures are logged, never fatal.
type Loop struct {
	pinger   Pinger
	interval time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a heartbeat loop. A non-positive interval falls back to
// DefaultInterval.
func New(pinger Pinger, interval time.Duration, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		pinger:   pinger,
		interval: interval,
		logger:   logger.With(slog.String("component", "heartbeat")),
	}
}

// Start begins heartbeating the given session. Any previously running loop
// is stopped first, synchronously, so no stale tick for an old session id
// can fire after Start returns.
func (l *Loop) Start(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	l.sessionID = sessionID
	l.cancel = cancel
	l.done = done

	l.logger.Info("heartbeat started", slog.String("session_id", sessionID))
	go l.run(ctx, sessionID, done)
}

// Stop cancels the running loop, if any. When Stop returns, no further
// tick is observable.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	l.sessionID = ""
}

func (l *Loop) stopLocked() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.cancel = nil
	l.done = nil
	l.logger.Info("heartbeat stopped", slog.String("session_id", l.sessionID))
}

// Active reports whether a loop is currently running
func (l *Loop) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// SessionID returns the session id of the last requested loop, or "" when
// stopped
func (l *Loop) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionID
}

func (l *Loop) run(ctx context.Context, sessionID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		if err := l.pinger.Heartbeat(ctx, sessionID); err != nil && ctx.Err() == nil {
			l.logger.Warn("heartbeat tick failed",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
