// Package repository defines the persistence interfaces and the in-memory
// and leaderboard stores backing them.
package repository

import (
	"context"

	"github.com/okian/ascent/internal/domain/types"
)

// MetricStore manages per-user metric definitions.
type MetricStore interface {
	// UpsertMetric creates or replaces a metric definition.
	UpsertMetric(ctx context.Context, userID string, def types.MetricDefinition) error

	// GetMetric returns one definition. Returns ErrNotFound if unknown.
	GetMetric(ctx context.Context, userID, metricID string) (types.MetricDefinition, error)

	// ListMetrics returns all definitions for a user, ordered by id.
	ListMetrics(ctx context.Context, userID string) ([]types.MetricDefinition, error)

	// ActiveMetrics returns only the active definitions, ordered by id.
	ActiveMetrics(ctx context.Context, userID string) ([]types.MetricDefinition, error)
}

// WeeklyStore persists raw weekly records per user.
type WeeklyStore interface {
	// PutWeek creates or replaces the record for its week key.
	PutWeek(ctx context.Context, userID string, rec types.WeeklyRecord) error

	// GetWeek returns one week. Returns ErrNotFound if absent.
	GetWeek(ctx context.Context, userID string, week types.WeekKey) (types.WeeklyRecord, error)

	// ListWeeks returns the full history ordered by week key ascending.
	ListWeeks(ctx context.Context, userID string) ([]types.WeeklyRecord, error)
}

// RankStore persists rank state and the tier change event log.
type RankStore interface {
	// GetState returns the current rank state. Returns ErrNotFound for
	// users that were never assessed.
	GetState(ctx context.Context, userID string) (types.RankState, error)

	// SetState replaces the rank state for state.UserID.
	SetState(ctx context.Context, state types.RankState) error

	// AppendEvent appends one tier change event to the log.
	AppendEvent(ctx context.Context, event types.RankChangeEvent) error

	// ListEvents returns the event log ordered by week key ascending.
	ListEvents(ctx context.Context, userID string) ([]types.RankChangeEvent, error)

	// CommitAssessment atomically persists one assessment outcome: the new
	// rank state plus, when event is non-nil, the tier change event. Either
	// both land or neither does.
	CommitAssessment(ctx context.Context, state types.RankState, event *types.RankChangeEvent) error

	// CommitRegeneration atomically replaces the state and the whole event
	// log for state.UserID with the regenerated versions.
	CommitRegeneration(ctx context.Context, state types.RankState, events []types.RankChangeEvent) error

	// Count returns the number of users with a rank state.
	Count(ctx context.Context) int
}

// Store aggregates everything the service persists.
type Store interface {
	MetricStore
	WeeklyStore
	RankStore
}

// Leaderboard is the points-ordered cross-user read path.
type Leaderboard interface {
	// Update sets the user's points and tier, inserting on first sight.
	Update(ctx context.Context, userID string, tier types.Tier, points int) error

	// Rank returns the current rank entry for a user.
	// Returns ErrNotFound if the user is unknown.
	Rank(ctx context.Context, userID string) (types.Entry, error)

	// TopN returns the top-N entries ordered by points desc.
	TopN(ctx context.Context, n int) ([]types.Entry, error)

	// Count returns the number of users tracked in the leaderboard.
	Count(ctx context.Context) int
}
