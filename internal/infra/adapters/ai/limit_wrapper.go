package ai

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Completer = (*limitedCompleter)(nil)

type limitedCompleter struct {
	inner adapter.Completer
	sem   chan struct{}

	mu       sync.Mutex
	limiters map[model.ProviderKey]*rate.Limiter
}

// NewLimitedCompleter bounds concurrent provider calls and paces each provider
// at its configured RateLimitRPS (0 means unpaced).
func NewLimitedCompleter(inner adapter.Completer, maxConcurrent int) adapter.Completer {
	l := &limitedCompleter{
		inner:    inner,
		limiters: make(map[model.ProviderKey]*rate.Limiter),
	}
	if maxConcurrent > 0 {
		l.sem = make(chan struct{}, maxConcurrent)
	}
	return l
}

func (l *limitedCompleter) limiter(p model.ProviderConfig) *rate.Limiter {
	if p.RateLimitRPS <= 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[p.Key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(p.RateLimitRPS), 1)
		l.limiters[p.Key] = lim
	}
	return lim
}

func (l *limitedCompleter) Complete(ctx context.Context, p model.ProviderConfig, prompt string) (adapter.Completion, error) {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
		case <-ctx.Done():
			return adapter.Completion{}, &domain.ProviderError{Provider: string(p.Key), Err: ctx.Err()}
		}
	}
	if lim := l.limiter(p); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return adapter.Completion{}, &domain.ProviderError{Provider: string(p.Key), Err: err}
		}
	}
	return l.inner.Complete(ctx, p, prompt)
}
