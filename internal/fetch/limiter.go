package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/modelmatch/review-harvester/internal/metrics"
)

// Intervals configures the minimum gap between dispatches per class.
type Intervals map[Class]time.Duration

// Limiter enforces a minimum interval between dispatches per resource class.
// Callers block on the class gate before sending, so two requests in the
// same class can never race past it.
type Limiter struct {
	mu       sync.Mutex
	limiters map[Class]*rate.Limiter
	fallback time.Duration
}

// NewLimiter creates a Limiter. Classes missing from intervals, or with a
// non-positive interval, fall back to one second.
func NewLimiter(intervals Intervals) *Limiter {
	l := &Limiter{
		limiters: make(map[Class]*rate.Limiter, len(intervals)),
		fallback: time.Second,
	}
	for class, interval := range intervals {
		if interval <= 0 {
			interval = l.fallback
		}
		l.limiters[class] = rate.NewLimiter(rate.Every(interval), 1)
	}
	return l
}

// Wait blocks until the class gate opens, respecting the context.
func (l *Limiter) Wait(ctx context.Context, class Class) error {
	l.mu.Lock()
	limiter, ok := l.limiters[class]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(l.fallback), 1)
		l.limiters[class] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if delay := time.Since(start); delay > time.Millisecond {
		metrics.ObserveThrottleDelay(string(class), delay)
	}
	return nil
}
