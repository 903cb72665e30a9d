package reconcile

import (
	"context"
	"time"
)

// backoff returns base * 2^attempt, capped at limit.
func backoff(base, limit time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// scheduleRetry arranges another pass after a pass that left work pending.
// It gives up after opts.RetryAttempts consecutive attempts; a successful
// pass resets the count.
func (e *Engine) scheduleRetry(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.retries >= e.opts.RetryAttempts {
		if e.opts.RetryAttempts > 0 {
			e.log.Warn(ctx, "automatic sync retries exhausted", "attempts", e.retries)
		}
		return
	}

	delay := backoff(e.opts.RetryBaseDelay, e.opts.RetryMaxDelay, e.retries)
	e.retries++
	if e.retryTimer != nil {
		e.retryTimer.Stop()
	}

	bg := context.WithoutCancel(ctx)
	e.log.Info(ctx, "sync retry scheduled", "in", delay, "attempt", e.retries)
	e.retryTimer = time.AfterFunc(delay, func() {
		if e.conn.Online() {
			e.Trigger(bg)
		}
	})
}

func (e *Engine) resetRetries() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.retries = 0
	if e.retryTimer != nil {
		e.retryTimer.Stop()
		e.retryTimer = nil
	}
}

// Stop cancels a scheduled retry.
func (e *Engine) Stop() {
	e.resetRetries()
}

// Start triggers a pass every interval while the store is reachable and
// work is pending. It blocks until ctx is done.
func (e *Engine) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !e.conn.Online() || e.Running() {
				continue
			}
			queued, standalone, err := e.pending(ctx)
			if err != nil {
				e.log.Warn(ctx, "periodic sync check failed", "err", err)
				continue
			}
			if queued+standalone > 0 {
				e.Trigger(ctx)
			}
		case <-ctx.Done():
			e.Stop()
			return
		}
	}
}
