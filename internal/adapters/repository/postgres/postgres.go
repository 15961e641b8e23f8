// Package postgres implements the repository interfaces on PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/okian/ascent/internal/adapters/repository"
	"github.com/okian/ascent/internal/domain/types"
	"github.com/okian/ascent/pkg/metrics"
)

// Connection defaults.
const (
	defaultMaxOpenConns    = 20
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
)

const schema = `
CREATE TABLE IF NOT EXISTS metric_definitions (
	user_id    TEXT NOT NULL,
	id         TEXT NOT NULL,
	name       TEXT NOT NULL,
	target     DOUBLE PRECISION NOT NULL,
	min_target DOUBLE PRECISION,
	category   TEXT NOT NULL DEFAULT '',
	mode       TEXT NOT NULL,
	weight     DOUBLE PRECISION NOT NULL DEFAULT 0,
	active     BOOLEAN NOT NULL DEFAULT TRUE,
	PRIMARY KEY (user_id, id)
);

CREATE TABLE IF NOT EXISTS weekly_records (
	user_id    TEXT NOT NULL,
	week_key   TEXT NOT NULL,
	vals       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, week_key)
);

CREATE TABLE IF NOT EXISTS rank_states (
	user_id        TEXT PRIMARY KEY,
	tier           SMALLINT NOT NULL,
	points         BIGINT NOT NULL,
	weeks_assessed INT NOT NULL,
	current_streak INT NOT NULL,
	best_streak    INT NOT NULL,
	assessed_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS rank_events (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	week_key    TEXT NOT NULL,
	from_tier   SMALLINT NOT NULL,
	to_tier     SMALLINT NOT NULL,
	from_points BIGINT NOT NULL,
	to_points   BIGINT NOT NULL,
	completion  INT NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS rank_events_user_week_idx
	ON rank_events (user_id, week_key);
`

// Store implements repository.Store on PostgreSQL.
type Store struct {
	db *sqlx.DB
}

// New connects, applies the schema and returns a ready Store.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type metricRow struct {
	UserID    string          `db:"user_id"`
	ID        string          `db:"id"`
	Name      string          `db:"name"`
	Target    float64         `db:"target"`
	MinTarget sql.NullFloat64 `db:"min_target"`
	Category  string          `db:"category"`
	Mode      string          `db:"mode"`
	Weight    float64         `db:"weight"`
	Active    bool            `db:"active"`
}

func (r metricRow) toDomain() types.MetricDefinition {
	def := types.MetricDefinition{
		ID:       r.ID,
		Name:     r.Name,
		Target:   r.Target,
		Category: r.Category,
		Mode:     types.ScoringMode(r.Mode),
		Weight:   r.Weight,
		Active:   r.Active,
	}
	if r.MinTarget.Valid {
		v := r.MinTarget.Float64
		def.MinTarget = &v
	}
	return def
}

// UpsertMetric creates or replaces a metric definition.
func (s *Store) UpsertMetric(ctx context.Context, userID string, def types.MetricDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("%w: id must not be empty", repository.ErrInvalidMetric)
	}
	var minTarget sql.NullFloat64
	if def.MinTarget != nil {
		minTarget = sql.NullFloat64{Float64: *def.MinTarget, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metric_definitions (user_id, id, name, target, min_target, category, mode, weight, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, id) DO UPDATE SET
			name = EXCLUDED.name,
			target = EXCLUDED.target,
			min_target = EXCLUDED.min_target,
			category = EXCLUDED.category,
			mode = EXCLUDED.mode,
			weight = EXCLUDED.weight,
			active = EXCLUDED.active`,
		userID, def.ID, def.Name, def.Target, minTarget, def.Category, string(def.Mode), def.Weight, def.Active)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("upsert metric %s: %w", def.ID, err)
	}
	return nil
}

// GetMetric returns one definition.
func (s *Store) GetMetric(ctx context.Context, userID, metricID string) (types.MetricDefinition, error) {
	var row metricRow
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, id, name, target, min_target, category, mode, weight, active
		FROM metric_definitions WHERE user_id = $1 AND id = $2`, userID, metricID)
	if errors.Is(err, sql.ErrNoRows) {
		return types.MetricDefinition{}, fmt.Errorf("%w: metric %s", repository.ErrNotFound, metricID)
	}
	if err != nil {
		metrics.RecordStoreError()
		return types.MetricDefinition{}, fmt.Errorf("get metric %s: %w", metricID, err)
	}
	return row.toDomain(), nil
}

// ListMetrics returns all definitions for a user, ordered by id.
func (s *Store) ListMetrics(ctx context.Context, userID string) ([]types.MetricDefinition, error) {
	return s.selectMetrics(ctx, `
		SELECT user_id, id, name, target, min_target, category, mode, weight, active
		FROM metric_definitions WHERE user_id = $1 ORDER BY id`, userID)
}

// ActiveMetrics returns only the active definitions, ordered by id.
func (s *Store) ActiveMetrics(ctx context.Context, userID string) ([]types.MetricDefinition, error) {
	return s.selectMetrics(ctx, `
		SELECT user_id, id, name, target, min_target, category, mode, weight, active
		FROM metric_definitions WHERE user_id = $1 AND active ORDER BY id`, userID)
}

func (s *Store) selectMetrics(ctx context.Context, query, userID string) ([]types.MetricDefinition, error) {
	var rows []metricRow
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	out := make([]types.MetricDefinition, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

type weekRow struct {
	UserID    string    `db:"user_id"`
	WeekKey   string    `db:"week_key"`
	Vals      []byte    `db:"vals"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r weekRow) toDomain() (types.WeeklyRecord, error) {
	rec := types.WeeklyRecord{
		WeekKey:   types.WeekKey(r.WeekKey),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal(r.Vals, &rec.Values); err != nil {
		return types.WeeklyRecord{}, fmt.Errorf("decode values for %s: %w", r.WeekKey, err)
	}
	return rec, nil
}

// PutWeek creates or replaces the record for its week key.
func (s *Store) PutWeek(ctx context.Context, userID string, rec types.WeeklyRecord) error {
	if !rec.WeekKey.Valid() {
		return fmt.Errorf("week %q: %w", rec.WeekKey, types.ErrInvalidWeekKey)
	}
	vals, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("encode values for %s: %w", rec.WeekKey, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO weekly_records (user_id, week_key, vals, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, week_key) DO UPDATE SET
			vals = EXCLUDED.vals,
			updated_at = EXCLUDED.updated_at`,
		userID, string(rec.WeekKey), vals, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("put week %s: %w", rec.WeekKey, err)
	}
	return nil
}

// GetWeek returns one week.
func (s *Store) GetWeek(ctx context.Context, userID string, week types.WeekKey) (types.WeeklyRecord, error) {
	var row weekRow
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, week_key, vals, created_at, updated_at
		FROM weekly_records WHERE user_id = $1 AND week_key = $2`, userID, string(week))
	if errors.Is(err, sql.ErrNoRows) {
		return types.WeeklyRecord{}, fmt.Errorf("%w: week %s", repository.ErrNotFound, week)
	}
	if err != nil {
		metrics.RecordStoreError()
		return types.WeeklyRecord{}, fmt.Errorf("get week %s: %w", week, err)
	}
	return row.toDomain()
}

// ListWeeks returns the full history ordered by week key ascending.
func (s *Store) ListWeeks(ctx context.Context, userID string) ([]types.WeeklyRecord, error) {
	var rows []weekRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, week_key, vals, created_at, updated_at
		FROM weekly_records WHERE user_id = $1 ORDER BY week_key`, userID)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	out := make([]types.WeeklyRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

type stateRow struct {
	UserID        string    `db:"user_id"`
	Tier          int       `db:"tier"`
	Points        int       `db:"points"`
	WeeksAssessed int       `db:"weeks_assessed"`
	CurrentStreak int       `db:"current_streak"`
	BestStreak    int       `db:"best_streak"`
	AssessedAt    time.Time `db:"assessed_at"`
}

func (r stateRow) toDomain() types.RankState {
	return types.RankState{
		UserID:        r.UserID,
		Tier:          types.Tier(r.Tier),
		Points:        r.Points,
		WeeksAssessed: r.WeeksAssessed,
		CurrentStreak: r.CurrentStreak,
		BestStreak:    r.BestStreak,
		AssessedAt:    r.AssessedAt,
	}
}

// GetState returns the current rank state.
func (s *Store) GetState(ctx context.Context, userID string) (types.RankState, error) {
	var row stateRow
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, tier, points, weeks_assessed, current_streak, best_streak, assessed_at
		FROM rank_states WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return types.RankState{}, fmt.Errorf("%w: user %s", repository.ErrNotFound, userID)
	}
	if err != nil {
		metrics.RecordStoreError()
		return types.RankState{}, fmt.Errorf("get state for %s: %w", userID, err)
	}
	return row.toDomain(), nil
}

// SetState replaces the rank state for state.UserID.
func (s *Store) SetState(ctx context.Context, state types.RankState) error {
	return s.upsertState(ctx, s.db, state)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *Store) upsertState(ctx context.Context, ex execer, state types.RankState) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO rank_states (user_id, tier, points, weeks_assessed, current_streak, best_streak, assessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			points = EXCLUDED.points,
			weeks_assessed = EXCLUDED.weeks_assessed,
			current_streak = EXCLUDED.current_streak,
			best_streak = EXCLUDED.best_streak,
			assessed_at = EXCLUDED.assessed_at`,
		state.UserID, int(state.Tier), state.Points, state.WeeksAssessed,
		state.CurrentStreak, state.BestStreak, state.AssessedAt)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("set state for %s: %w", state.UserID, err)
	}
	return nil
}

// AppendEvent appends one tier change event to the log.
func (s *Store) AppendEvent(ctx context.Context, event types.RankChangeEvent) error {
	return s.insertEvent(ctx, s.db, event)
}

func (s *Store) insertEvent(ctx context.Context, ex execer, event types.RankChangeEvent) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO rank_events (id, user_id, week_key, from_tier, to_tier, from_points, to_points, completion, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.UserID, string(event.WeekKey), int(event.FromTier), int(event.ToTier),
		event.FromPoints, event.ToPoints, event.Completion, event.At)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("append event %s: %w", event.ID, err)
	}
	return nil
}

type eventRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	WeekKey    string    `db:"week_key"`
	FromTier   int       `db:"from_tier"`
	ToTier     int       `db:"to_tier"`
	FromPoints int       `db:"from_points"`
	ToPoints   int       `db:"to_points"`
	Completion int       `db:"completion"`
	OccurredAt time.Time `db:"occurred_at"`
}

// ListEvents returns the event log ordered by week key ascending.
func (s *Store) ListEvents(ctx context.Context, userID string) ([]types.RankChangeEvent, error) {
	var rows []eventRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, week_key, from_tier, to_tier, from_points, to_points, completion, occurred_at
		FROM rank_events WHERE user_id = $1 ORDER BY week_key`, userID)
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]types.RankChangeEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.RankChangeEvent{
			ID:         row.ID,
			UserID:     row.UserID,
			WeekKey:    types.WeekKey(row.WeekKey),
			FromTier:   types.Tier(row.FromTier),
			ToTier:     types.Tier(row.ToTier),
			FromPoints: row.FromPoints,
			ToPoints:   row.ToPoints,
			Completion: row.Completion,
			At:         row.OccurredAt,
		})
	}
	return out, nil
}

// CommitAssessment persists the new state and the optional tier change
// event inside one transaction.
func (s *Store) CommitAssessment(ctx context.Context, state types.RankState, event *types.RankChangeEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("begin assessment tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.upsertState(ctx, tx, state); err != nil {
		return err
	}
	if event != nil {
		if err := s.insertEvent(ctx, tx, *event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("commit assessment tx: %w", err)
	}
	return nil
}

// CommitRegeneration atomically replaces the state and the whole event log
// for state.UserID inside one transaction.
func (s *Store) CommitRegeneration(ctx context.Context, state types.RankState, events []types.RankChangeEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("begin regeneration tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.upsertState(ctx, tx, state); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rank_events WHERE user_id = $1`, state.UserID); err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("clear events for %s: %w", state.UserID, err)
	}
	for _, event := range events {
		if err := s.insertEvent(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("commit regeneration tx: %w", err)
	}
	return nil
}

// Count returns the number of users with a rank state.
func (s *Store) Count(ctx context.Context) int {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM rank_states`); err != nil {
		metrics.RecordStoreError()
		return 0
	}
	return n
}
