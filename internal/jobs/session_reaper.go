package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/coursehub/lms-admin-session/internal/config"
	"github.com/coursehub/lms-admin-session/internal/queue"
)

// ExpiredSessionStore deletes sessions whose expiry has passed.
type ExpiredSessionStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Emitter receives the sweep summary event.
type Emitter interface {
	Emit(ctx context.Context, ev queue.SessionEvent)
}

// SessionReaper removes expired session rows.  Verification already
// ignores them; the sweep only keeps the table from growing.
type SessionReaper struct {
	Store  ExpiredSessionStore
	Events Emitter
	Log    *slog.Logger
	Now    func() time.Time
}

// Sweep runs one pass and returns the number of rows removed.
func (r *SessionReaper) Sweep(ctx context.Context) (int64, error) {
	now := time.Now().UTC()
	if r.Now != nil {
		now = r.Now()
	}
	n, err := r.Store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.Log.Info("session reaper removed expired sessions", "count", n)
		if r.Events != nil {
			r.Events.Emit(ctx, queue.SessionEvent{Type: queue.EventSessionsExpired, Count: n})
		}
	}
	return n, nil
}

// StartSessionReaper sweeps on a fixed interval until ctx is cancelled.
// Each pass gets its own timeout so a stuck query cannot stall the loop.
func StartSessionReaper(ctx context.Context, cfg config.ReaperConfig, r *SessionReaper) {
	if !cfg.Enabled {
		return
	}
	if r.Store == nil {
		r.Log.Warn("session reaper disabled: no session store")
		return
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				_, err := r.Sweep(tickCtx)
				cancel()
				if err != nil {
					r.Log.Error("session reaper error", "error", err)
				}
			}
		}
	}()
}
