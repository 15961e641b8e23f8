package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/ascent/internal/domain/types"
)

// MemoryStore is the mutex-guarded in-memory Store used when no Postgres
// DSN is configured, and by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	metrics map[string]map[string]types.MetricDefinition // userID -> metricID -> def
	weeks   map[string]map[types.WeekKey]types.WeeklyRecord
	states  map[string]types.RankState
	events  map[string][]types.RankChangeEvent
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		metrics: make(map[string]map[string]types.MetricDefinition),
		weeks:   make(map[string]map[types.WeekKey]types.WeeklyRecord),
		states:  make(map[string]types.RankState),
		events:  make(map[string][]types.RankChangeEvent),
	}
}

// UpsertMetric creates or replaces a metric definition.
func (s *MemoryStore) UpsertMetric(ctx context.Context, userID string, def types.MetricDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("%w: id must not be empty", ErrInvalidMetric)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metrics[userID] == nil {
		s.metrics[userID] = make(map[string]types.MetricDefinition)
	}
	s.metrics[userID][def.ID] = def
	return nil
}

// GetMetric returns one definition.
func (s *MemoryStore) GetMetric(ctx context.Context, userID, metricID string) (types.MetricDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	def, ok := s.metrics[userID][metricID]
	if !ok {
		return types.MetricDefinition{}, fmt.Errorf("%w: metric %s", ErrNotFound, metricID)
	}
	return def, nil
}

// ListMetrics returns all definitions for a user, ordered by id.
func (s *MemoryStore) ListMetrics(ctx context.Context, userID string) ([]types.MetricDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.MetricDefinition, 0, len(s.metrics[userID]))
	for _, def := range s.metrics[userID] {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ActiveMetrics returns only the active definitions, ordered by id.
func (s *MemoryStore) ActiveMetrics(ctx context.Context, userID string) ([]types.MetricDefinition, error) {
	defs, err := s.ListMetrics(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := defs[:0]
	for _, def := range defs {
		if def.Active {
			out = append(out, def)
		}
	}
	return out, nil
}

// PutWeek creates or replaces the record for its week key.
func (s *MemoryStore) PutWeek(ctx context.Context, userID string, rec types.WeeklyRecord) error {
	if !rec.WeekKey.Valid() {
		return fmt.Errorf("week %q: %w", rec.WeekKey, types.ErrInvalidWeekKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.weeks[userID] == nil {
		s.weeks[userID] = make(map[types.WeekKey]types.WeeklyRecord)
	}
	s.weeks[userID][rec.WeekKey] = rec.Clone()
	return nil
}

// GetWeek returns one week.
func (s *MemoryStore) GetWeek(ctx context.Context, userID string, week types.WeekKey) (types.WeeklyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.weeks[userID][week]
	if !ok {
		return types.WeeklyRecord{}, fmt.Errorf("%w: week %s", ErrNotFound, week)
	}
	return rec.Clone(), nil
}

// ListWeeks returns the full history ordered by week key ascending.
func (s *MemoryStore) ListWeeks(ctx context.Context, userID string) ([]types.WeeklyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.WeeklyRecord, 0, len(s.weeks[userID]))
	for _, rec := range s.weeks[userID] {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekKey.Before(out[j].WeekKey) })
	return out, nil
}

// GetState returns the current rank state.
func (s *MemoryStore) GetState(ctx context.Context, userID string) (types.RankState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[userID]
	if !ok {
		return types.RankState{}, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return state, nil
}

// SetState replaces the rank state for state.UserID.
func (s *MemoryStore) SetState(ctx context.Context, state types.RankState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.UserID] = state
	return nil
}

// AppendEvent appends one tier change event to the log.
func (s *MemoryStore) AppendEvent(ctx context.Context, event types.RankChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.UserID] = append(s.events[event.UserID], event)
	return nil
}

// ListEvents returns the event log ordered by week key ascending.
func (s *MemoryStore) ListEvents(ctx context.Context, userID string) ([]types.RankChangeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.RankChangeEvent, len(s.events[userID]))
	copy(out, s.events[userID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].WeekKey.Before(out[j].WeekKey) })
	return out, nil
}

// CommitAssessment writes the state and the optional tier change event
// under one lock acquisition, so a failed append can never leave the state
// ahead of the event log.
func (s *MemoryStore) CommitAssessment(ctx context.Context, state types.RankState, event *types.RankChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.UserID] = state
	if event != nil {
		s.events[state.UserID] = append(s.events[state.UserID], *event)
	}
	return nil
}

// CommitRegeneration atomically replaces the state and event log under one
// lock acquisition, so readers never observe a half-applied regeneration.
func (s *MemoryStore) CommitRegeneration(ctx context.Context, state types.RankState, events []types.RankChangeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.UserID] = state
	replacement := make([]types.RankChangeEvent, len(events))
	copy(replacement, events)
	s.events[state.UserID] = replacement
	return nil
}

// Count returns the number of users with a rank state.
func (s *MemoryStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
