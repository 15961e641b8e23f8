package supplemental

import (
	"context"
	"sync"

	"github.com/okian/ascent/internal/domain/types"
)

// MapSource is an in-memory Source backed by explicit per-user, per-week
// value maps. It serves imported batches (e.g. a wearable export loaded
// at boot) and is the fixture source in tests.
type MapSource struct {
	name string

	mu     sync.RWMutex
	values map[string]map[types.WeekKey]map[string]float64
}

// NewMapSource creates an empty MapSource with the given name.
func NewMapSource(name string) *MapSource {
	return &MapSource{
		name:   name,
		values: make(map[string]map[types.WeekKey]map[string]float64),
	}
}

// Name identifies the source.
func (s *MapSource) Name() string {
	return s.name
}

// Put stores values for a user and week, replacing any previous batch
// for that week.
func (s *MapSource) Put(userID string, week types.WeekKey, vals map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	weeks, ok := s.values[userID]
	if !ok {
		weeks = make(map[types.WeekKey]map[string]float64)
		s.values[userID] = weeks
	}
	cp := make(map[string]float64, len(vals))
	for id, v := range vals {
		cp[id] = v
	}
	weeks[week] = cp
}

// Values returns the stored values for the user and week, or nil.
func (s *MapSource) Values(ctx context.Context, userID string, week types.WeekKey) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vals, ok := s.values[userID][week]
	if !ok {
		return nil, nil
	}
	cp := make(map[string]float64, len(vals))
	for id, v := range vals {
		cp[id] = v
	}
	return cp, nil
}
