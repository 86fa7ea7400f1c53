package github

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// rateLimitState tracks the remaining primary quota as reported by the
// host. Refreshed from every response, read before every call.
type rateLimitState struct {
	mu        sync.RWMutex
	remaining int
	resetAt   time.Time
	known     bool
}

func (s *rateLimitState) update(remaining int, resetAt time.Time) {
	if resetAt.IsZero() {
		return
	}
	s.mu.Lock()
	s.remaining = remaining
	s.resetAt = resetAt
	s.known = true
	s.mu.Unlock()
}

func (s *rateLimitState) snapshot() (remaining int, resetAt time.Time, known bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remaining, s.resetAt, s.known
}

// waitIfLow blocks until the quota reset time when the remaining budget
// has fallen to or below lowWater. Sleeping here, before the call, keeps
// remaining from ever being driven negative by concurrent callers.
func (s *rateLimitState) waitIfLow(ctx context.Context, lowWater int) error {
	remaining, resetAt, known := s.snapshot()
	if !known || remaining > lowWater {
		return nil
	}
	delay := time.Until(resetAt)
	if delay <= 0 {
		s.forget()
		return nil
	}
	slog.Warn("rate limit budget low, pausing until reset",
		"remaining", remaining,
		"reset_at", resetAt.Format(time.RFC3339),
	)
	if err := sleep(ctx, delay); err != nil {
		return err
	}
	s.forget()
	return nil
}

// forget clears the state after a reset has passed so only fresh
// responses repopulate it.
func (s *rateLimitState) forget() {
	s.mu.Lock()
	s.known = false
	s.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
