package ratelimiter

import (
	"fmt"
	"slices"
	"time"
)

// Source supplies the per-strategy settings a Catalog is built from.
type Source interface {
	// Endpoints returns the path prefixes guarded by the strategy.
	Endpoints(name string) []string
	// IsEnabled reports whether the strategy is active.
	IsEnabled(name string) bool
	// Limit returns the strategy capacity and refill window.
	Limit(name string) (capacity uint, window time.Duration)
}

// Catalog is the immutable table of strategies resolved by request path.
// It is safe for concurrent use without locking.
type Catalog struct {
	ordered []Strategy
	byName  map[string]Strategy
}

// NewCatalog validates the strategies and orders them for resolution:
// AUTH, RESUME, WAITLIST, any custom strategies, then BUSINESS.
func NewCatalog(strategies ...Strategy) (*Catalog, error) {
	c := &Catalog{
		ordered: make([]Strategy, 0, len(strategies)),
		byName:  make(map[string]Strategy, len(strategies)),
	}

	for _, s := range strategies {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, ok := c.byName[s.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStrategy, s.Name)
		}
		s = s.clone()
		c.byName[s.Name] = s
		c.ordered = append(c.ordered, s)
	}

	slices.SortStableFunc(c.ordered, func(a, b Strategy) int {
		return priority(a.Name) - priority(b.Name)
	})

	return c, nil
}

// CatalogFromSource builds a catalog for the built-in strategies from src.
func CatalogFromSource(src Source) (*Catalog, error) {
	names := []string{Auth, Resume, Waitlist, Business}
	strategies := make([]Strategy, 0, len(names))
	for _, name := range names {
		capacity, window := src.Limit(name)
		strategies = append(strategies, Strategy{
			Name:     name,
			Capacity: capacity,
			Window:   window,
			Prefixes: src.Endpoints(name),
			Enabled:  src.IsEnabled(name),
		})
	}
	return NewCatalog(strategies...)
}

// Resolve returns the first strategy, in priority order, whose prefixes match path.
func (c *Catalog) Resolve(path string) (Strategy, bool) {
	for _, s := range c.ordered {
		if s.Matches(path) {
			return s, true
		}
	}
	return Strategy{}, false
}

// ResolveOrDefault resolves path and falls back to the BUSINESS strategy
// when nothing matches. The boolean is false only if BUSINESS is not configured.
func (c *Catalog) ResolveOrDefault(path string) (Strategy, bool) {
	if s, ok := c.Resolve(path); ok {
		return s, true
	}
	return c.Default()
}

// Default returns the BUSINESS strategy.
func (c *Catalog) Default() (Strategy, bool) {
	return c.Strategy(Business)
}

// Strategy looks a strategy up by name.
func (c *Catalog) Strategy(name string) (Strategy, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// IsEnabled reports whether the named strategy exists and is enabled.
func (c *Catalog) IsEnabled(name string) bool {
	s, ok := c.byName[name]
	return ok && s.Enabled
}

// Strategies returns the strategies in resolution order.
func (c *Catalog) Strategies() []Strategy {
	out := make([]Strategy, len(c.ordered))
	for i, s := range c.ordered {
		out[i] = s.clone()
	}
	return out
}

// Message returns the denial text for the named strategy.
func (c *Catalog) Message(name string) string {
	return DenialMessage(name)
}
