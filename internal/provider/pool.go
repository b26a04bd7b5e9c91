package provider

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"glossary-review/internal/domain"
)

// Pool rotates requests over a snapshot of the enabled providers.
type Pool struct {
	providers []domain.Provider
	cursor    atomic.Uint64
	log       *slog.Logger

	mu       sync.Mutex
	failures map[domain.ProviderKey]int
}

// NewPool snapshots the enabled providers in configured order.
func NewPool(providers []domain.Provider, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	enabled := make([]domain.Provider, 0, len(providers))
	for _, p := range providers {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	return &Pool{
		providers: enabled,
		log:       log.With("component", "provider_pool"),
		failures:  make(map[domain.ProviderKey]int),
	}
}

// Len returns the number of selectable providers.
func (p *Pool) Len() int {
	return len(p.providers)
}

// Select returns the next provider in round-robin order.
func (p *Pool) Select() (domain.Provider, error) {
	n := uint64(len(p.providers))
	if n == 0 {
		return domain.Provider{}, domain.ErrNoProviders
	}
	idx := p.cursor.Add(1) - 1
	return p.providers[idx%n], nil
}

// SelectExcluding returns the next provider whose identity differs from exclude.
// It reports false when no such provider exists.
func (p *Pool) SelectExcluding(exclude domain.ProviderKey) (domain.Provider, bool) {
	n := len(p.providers)
	for i := 0; i < n; i++ {
		candidate, err := p.Select()
		if err != nil {
			return domain.Provider{}, false
		}
		if candidate.Key() != exclude {
			return candidate, true
		}
	}
	return domain.Provider{}, false
}

// ReportFailure records a failed call. Providers are never evicted.
func (p *Pool) ReportFailure(provider domain.Provider, err error) {
	p.mu.Lock()
	p.failures[provider.Key()]++
	count := p.failures[provider.Key()]
	p.mu.Unlock()

	p.log.Warn("provider call failed",
		slog.String("provider", Label(provider)),
		slog.Int("failures", count),
		slog.String("error", err.Error()),
	)
}

// Failures returns how many failures were reported for a provider.
func (p *Pool) Failures(key domain.ProviderKey) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures[key]
}
