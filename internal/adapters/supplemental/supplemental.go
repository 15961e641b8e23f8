// Package supplemental overlays values from registered external sources
// (wearable imports, manual corrections) onto recorded weekly values
// before completion is computed. Sources are applied in registration
// order and override recorded values on metric id collision.
package supplemental

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/ascent/internal/domain/types"
)

// Source provides per-week metric values from one named origin.
type Source interface {
	// Name identifies the source. Names must be unique within a registry.
	Name() string

	// Values returns the source's values for the given user and week.
	// A nil or empty map means the source has nothing for that week.
	Values(ctx context.Context, userID string, week types.WeekKey) (map[string]float64, error)
}

// Registry holds named sources and implements the merge step of history
// regeneration. The zero value is not usable; call NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	sources []Source
	byName  map[string]struct{}
}

// NewRegistry creates a registry with the given initial sources.
// Duplicate names among the initial sources cause a panic, mirroring
// prometheus-style must-register semantics for boot-time wiring.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{
		byName: make(map[string]struct{}),
	}
	for _, src := range sources {
		if err := r.Register(src); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a source. Later-registered sources win on collision.
func (r *Registry) Register(src Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := src.Name()
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSource)
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, name)
	}
	r.byName[name] = struct{}{}
	r.sources = append(r.sources, src)
	return nil
}

// Names returns the registered source names in application order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for _, src := range r.sources {
		names = append(names, src.Name())
	}
	return names
}

// Merge overlays each source's values onto a copy of base. The input map
// is never mutated. A source error aborts the merge so regeneration does
// not silently proceed on partial data.
func (r *Registry) Merge(ctx context.Context, userID string, week types.WeekKey, base map[string]float64) (map[string]float64, error) {
	r.mu.RLock()
	sources := make([]Source, len(r.sources))
	copy(sources, r.sources)
	r.mu.RUnlock()

	merged := make(map[string]float64, len(base))
	for id, v := range base {
		merged[id] = v
	}

	for _, src := range sources {
		vals, err := src.Values(ctx, userID, week)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name(), err)
		}
		for id, v := range vals {
			merged[id] = v
		}
	}
	return merged, nil
}
