package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/okian/ascent/internal/domain/types"
	"github.com/okian/ascent/pkg/metrics"
)

// Breaker defaults.
const (
	breakerMaxRequests  = 3
	breakerInterval     = 30 * time.Second
	breakerTimeout      = 10 * time.Second
	breakerMinRequests  = 10
	breakerFailureRatio = 0.6
)

// BreakerStore decorates a Store with a circuit breaker so a failing
// backend (typically Postgres) sheds load fast instead of piling up
// timed-out requests.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps a Store with a named circuit breaker.
func NewBreakerStore(name string, inner Store) *BreakerStore {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: breakerMaxRequests,
		Interval:    breakerInterval,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= breakerMinRequests && ratio >= breakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateBreakerState(name, int(to))
		},
		// Business misses must not trip the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
	}
	return &BreakerStore{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (s *BreakerStore) exec(op func() (interface{}, error)) (interface{}, error) {
	out, err := s.cb.Execute(op)
	if err != nil && !errors.Is(err, ErrNotFound) {
		metrics.RecordStoreError()
	}
	return out, err
}

// UpsertMetric implements MetricStore.
func (s *BreakerStore) UpsertMetric(ctx context.Context, userID string, def types.MetricDefinition) error {
	_, err := s.exec(func() (interface{}, error) {
		return nil, s.inner.UpsertMetric(ctx, userID, def)
	})
	return err
}

// GetMetric implements MetricStore.
func (s *BreakerStore) GetMetric(ctx context.Context, userID, metricID string) (types.MetricDefinition, error) {
	out, err := s.exec(func() (interface{}, error) {
		return s.inner.GetMetric(ctx, userID, metricID)
	})
	if err != nil {
		return types.MetricDefinition{}, err
	}
	return out.(types.MetricDefinition), nil
}

// ListMetrics implements MetricStore.
func (s *BreakerStore) ListMetrics(ctx context.Context, userID string) ([]types.MetricDefinition, error) {
	out, err := s.exec(func() (interface{}, error) {
		return s.inner.ListMetrics(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return out.([]types.MetricDefinition), nil
}

// ActiveMetrics implements MetricStore.
func (s *BreakerStore) ActiveMetrics(ctx context.Context, userID string) ([]types.MetricDefinition, error) {
	out, err := s.exec(func() (interface{}, error) {
		return s.inner.ActiveMetrics(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return out.([]types.MetricDefinition), nil
}

// PutWeek implements WeeklyStore.
func (s *BreakerStore) PutWeek(ctx context.Context, userID string, rec types.WeeklyRecord) error {
	_, err := s.exec(func() (interface{}, error) {
		return nil, s.inner.PutWeek(ctx, userID, rec)
	})
	return err
}

// GetWeek implements WeeklyStore.
func (s *BreakerStore) GetWeek(ctx context.Context, userID string, week types.WeekKey) (types.WeeklyRecord, error) {
	out, err := s.exec(func() (interface{}, error) {
		return s.inner.GetWeek(ctx, userID, week)
	})
	if err != nil {
		return types.WeeklyRecord{}, err
	}
	return out.(types.WeeklyRecord), nil
}

// ListWeeks implements WeeklyStore.
func (s *BreakerStore) ListWeeks(ctx context.Context, userID string) ([]types.WeeklyRecord, error) {
	out, err := s.exec(func() (interface{}, error) {
		return s.inner.ListWeeks(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return out.([]types.WeeklyRecord), nil
}

// GetState implements RankStore.
func (s *BreakerStore) GetState(ctx context.Context, userID string) (types.RankState, error) {
	out, err := s.exec(func() (interface{}, error) {
		return s.inner.GetState(ctx, userID)
	})
	if err != nil {
		return types.RankState{}, err
	}
	return out.(types.RankState), nil
}

// SetState implements RankStore.
func (s *BreakerStore) SetState(ctx context.Context, state types.RankState) error {
	_, err := s.exec(func() (interface{}, error) {
		return nil, s.inner.SetState(ctx, state)
	})
	return err
}

// AppendEvent implements RankStore.
func (s *BreakerStore) AppendEvent(ctx context.Context, event types.RankChangeEvent) error {
	_, err := s.exec(func() (interface{}, error) {
		return nil, s.inner.AppendEvent(ctx, event)
	})
	return err
}

// ListEvents implements RankStore.
func (s *BreakerStore) ListEvents(ctx context.Context, userID string) ([]types.RankChangeEvent, error) {
	out, err := s.exec(func() (interface{}, error) {
		return s.inner.ListEvents(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	return out.([]types.RankChangeEvent), nil
}

// CommitAssessment implements RankStore.
func (s *BreakerStore) CommitAssessment(ctx context.Context, state types.RankState, event *types.RankChangeEvent) error {
	_, err := s.exec(func() (interface{}, error) {
		return nil, s.inner.CommitAssessment(ctx, state, event)
	})
	return err
}

// CommitRegeneration implements RankStore.
func (s *BreakerStore) CommitRegeneration(ctx context.Context, state types.RankState, events []types.RankChangeEvent) error {
	_, err := s.exec(func() (interface{}, error) {
		return nil, s.inner.CommitRegeneration(ctx, state, events)
	})
	return err
}

// Count implements RankStore. Counting is a cheap read; it bypasses the
// breaker.
func (s *BreakerStore) Count(ctx context.Context) int {
	return s.inner.Count(ctx)
}
