package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when every entry in a [Chain] either failed or
// had an open breaker.
var ErrExhausted = errors.New("resilience: all backends failed")

// chainEntry pairs a backend with its dedicated breaker.
type chainEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain is an ordered list of interchangeable backends. Calls go to the
// first entry whose breaker admits them; on failure the next entry is tried.
//
// Entries must all be registered before the chain is used; after that the
// chain is safe for concurrent use (each entry's breaker carries the mutable
// state).
type Chain[T any] struct {
	entries []chainEntry[T]
	breaker BreakerConfig
}

// NewChain creates a [Chain] with primary as its first entry. breaker is the
// template applied to every entry; the Name field is overridden per entry.
func NewChain[T any](primaryName string, primary T, breaker BreakerConfig) *Chain[T] {
	c := &Chain[T]{breaker: breaker}
	c.Add(primaryName, primary)
	return c
}

// Add appends a fallback backend. Fallbacks are tried in insertion order.
func (c *Chain[T]) Add(name string, value T) {
	cfg := c.breaker
	cfg.Name = name
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(cfg),
	})
}

// Names returns the backend names in trial order.
func (c *Chain[T]) Names() []string {
	names := make([]string, len(c.entries))
	for i, e := range c.entries {
		names[i] = e.name
	}
	return names
}

// First tries fn against each chain entry in order and returns the first
// successful result. Entries with an open breaker are skipped. When every
// entry fails, the last error is wrapped in [ErrExhausted].
//
// A package-level function because methods cannot introduce type parameters.
func First[T, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range c.entries {
		e := &c.entries[i]
		var result R
		err := e.breaker.Do(func() error {
			var callErr error
			result, callErr = fn(e.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrOpen) {
			slog.Debug("skipping backend, circuit open", "backend", e.name)
		} else {
			slog.Warn("backend failed, trying next", "backend", e.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrExhausted, lastErr)
}
