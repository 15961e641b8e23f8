// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ascent/internal/adapters/cache"
	submissionqueue "github.com/okian/ascent/internal/adapters/mq/queue"
	workerpool "github.com/okian/ascent/internal/adapters/mq/worker"
	repository "github.com/okian/ascent/internal/adapters/repository"
	"github.com/okian/ascent/internal/domain/completion"
	"github.com/okian/ascent/internal/domain/dedupe"
	"github.com/okian/ascent/internal/domain/rank"
	"github.com/okian/ascent/internal/domain/replay"
	"github.com/okian/ascent/internal/domain/types"
	"github.com/okian/ascent/pkg/logger"
	"github.com/okian/ascent/pkg/metrics"
)

// Service wires stores, engines, the submission queue and the worker pool
// into the operations the HTTP API exposes.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	board       repository.Leaderboard
	snapshots   *cache.SnapshotCache
	deduper     dedupe.Deduper
	queue       submissionqueue.Queue
	workerPool  *workerpool.Pool
	calc        completion.Calculator
	engine      *rank.Engine
	regenerator *replay.Regenerator
	merger      replay.Merger

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	maxLeaderboard int
	gamification   bool

	// Per-user serialization for the assessment write path.
	userMu    sync.Mutex
	userLocks map[string]*sync.Mutex

	// Time source for submission and assessment timestamps.
	now func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the persistence backend. Defaults to the in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLeaderboard sets the leaderboard backend.
func WithLeaderboard(board repository.Leaderboard) Option {
	return func(s *Service) {
		if board != nil {
			s.board = board
		}
	}
}

// WithSnapshotCache sets the optional analytics summary cache.
func WithSnapshotCache(c *cache.SnapshotCache) Option {
	return func(s *Service) {
		s.snapshots = c
	}
}

// WithMerger sets the supplemental source merger used by regeneration.
func WithMerger(m replay.Merger) Option {
	return func(s *Service) {
		s.merger = m
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the submission queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxLeaderboardLimit caps the page size of leaderboard reads.
func WithMaxLeaderboardLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxLeaderboard = limit
		}
	}
}

// WithGamification toggles the critical-hit and streak bonus layer on the
// live assessment path. Replay always runs the deterministic base engine.
func WithGamification(enabled bool) Option {
	return func(s *Service) {
		s.gamification = enabled
	}
}

// WithClock sets the time source used to stamp submissions, rank states
// and tier change events. Defaults to time.Now; tests and replays inject a
// fixed clock for reproducible assessments.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 10,
		queueSize:      100000,
		dedupeSize:     50000,
		maxLeaderboard: 100,
		gamification:   true,
		userLocks:      make(map[string]*sync.Mutex),
		now:            time.Now,
		logger:         nil, // will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting tracker service...")

	if s.store == nil {
		s.store = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	if s.board == nil {
		s.board = repository.NewTreapBoard(ctx)
		s.logger.Info(ctx, "using treap leaderboard")
	}
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.queue = submissionqueue.NewInMemoryQueue(
		submissionqueue.WithCapacity(s.queueSize),
		submissionqueue.WithBufferSize(s.queueSize),
	)

	engineOpts := []rank.Option{}
	if s.gamification {
		engineOpts = append(engineOpts, rank.WithGamification(rank.NewGamification()))
	}
	s.calc = completion.NewStandardCalculator()
	s.engine = rank.NewEngine(engineOpts...)

	regenOpts := []replay.Option{replay.WithCalculator(s.calc)}
	if s.merger != nil {
		regenOpts = append(regenOpts, replay.WithMerger(s.merger))
	}
	s.regenerator = replay.NewRegenerator(s.store, s.store, s.store, regenOpts...)

	// Create and start the worker pool; workers feed submissions back into
	// Assess via the Assessor interface.
	s.workerPool = workerpool.NewPool(s.workerCount, s.queue, s)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "tracker service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Bool("gamification", s.gamification),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping tracker service...")

	if s.workerPool != nil {
		_ = s.workerPool.Shutdown(ctx)
	}

	if closer, ok := s.board.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
	if s.snapshots != nil {
		_ = s.snapshots.Close()
	}

	s.started = false
	s.logger.Info(ctx, "tracker service stopped")
}

// SubmitWeek validates a weekly submission and queues it for asynchronous
// assessment. Duplicate submission IDs are dropped without error; the
// returned flag reports whether the submission was such a duplicate.
func (s *Service) SubmitWeek(ctx context.Context, sub types.WeeklySubmission) (bool, error) {
	if sub.UserID == "" {
		return false, fmt.Errorf("%w: empty user id", types.ErrInvalidValue)
	}
	if _, err := types.ParseWeekKey(sub.WeekKey.String()); err != nil {
		return false, err
	}
	for id, v := range sub.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false, fmt.Errorf("%w: metric %s", types.ErrInvalidValue, id)
		}
	}

	if sub.SubmissionID == "" {
		// Deterministic fallback so retries of the same week dedupe.
		sub.SubmissionID = sub.UserID + "/" + sub.WeekKey.String()
	}
	if sub.TS.IsZero() {
		sub.TS = s.now().UTC()
	}

	if s.deduper.SeenAndRecord(ctx, sub.SubmissionID) {
		metrics.RecordSubmissionDuplicate()
		s.logger.Debug(ctx, "duplicate submission dropped",
			logger.String("submissionID", sub.SubmissionID),
			logger.String("userID", sub.UserID),
		)
		return true, nil
	}

	if !s.queue.Enqueue(ctx, sub) {
		// Allow the client to retry once there is room again.
		s.deduper.Unrecord(ctx, sub.SubmissionID)
		return false, fmt.Errorf("%w: submission %s", submissionqueue.ErrQueueFull, sub.SubmissionID)
	}
	return false, nil
}

// Assess persists the submitted weekly record and advances the user's rank
// state. It implements worker.Assessor and also serves as the synchronous
// path for the simulator.
func (s *Service) Assess(ctx context.Context, sub types.WeeklySubmission) error {
	lock := s.lockFor(sub.UserID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	defer func() {
		metrics.RecordAssessmentLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := s.putWeek(ctx, sub); err != nil {
		return err
	}

	defs, err := s.store.ActiveMetrics(ctx, sub.UserID)
	if err != nil {
		return fmt.Errorf("load metric definitions: %w", err)
	}
	if len(defs) == 0 {
		return fmt.Errorf("%w: user %s", rank.ErrNoActiveMetrics, sub.UserID)
	}

	score := s.calc.Complete(ctx, sub.Values, defs)

	state, err := s.store.GetState(ctx, sub.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		state = rank.NewState(sub.UserID)
	} else if err != nil {
		return fmt.Errorf("load rank state: %w", err)
	}

	now := s.now().UTC()
	var (
		next       types.RankState
		assessment types.WeeklyAssessment
	)
	if s.gamification {
		next, assessment = s.engine.StepWithGamification(state, sub.WeekKey, score.Completion, state.CurrentStreak, now)
	} else {
		next, assessment = s.engine.Step(state, sub.WeekKey, score.Completion, now)
	}

	var event *types.RankChangeEvent
	if assessment.TierChanged() {
		e := rank.NewChangeEvent(sub.UserID, state, assessment, now)
		event = &e
	}
	// State and event must land together or not at all.
	if err := s.store.CommitAssessment(ctx, next, event); err != nil {
		return fmt.Errorf("persist assessment: %w", err)
	}
	if assessment.TierChanged() {
		direction := "up"
		if assessment.TierAfter < assessment.TierBefore {
			direction = "down"
		}
		metrics.RecordTierChange(direction)
	}

	if err := s.board.Update(ctx, sub.UserID, next.Tier, next.Points); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	metrics.RecordSubmissionProcessed()
	metrics.RecordRankUpdate()
	if assessment.CriticalHit {
		metrics.RecordCriticalHit()
	}
	s.invalidateSummary(ctx, sub.UserID)

	s.logger.Debug(ctx, "assessed weekly submission",
		logger.String("userID", sub.UserID),
		logger.String("week", sub.WeekKey.String()),
		logger.Int("completion", assessment.Completion),
		logger.Int("delta", assessment.Delta),
		logger.Int("points", assessment.PointsAfter),
	)
	return nil
}

// putWeek stores the raw record, preserving CreatedAt on resubmission.
func (s *Service) putWeek(ctx context.Context, sub types.WeeklySubmission) error {
	rec := types.WeeklyRecord{
		WeekKey:   sub.WeekKey,
		Values:    sub.Values,
		CreatedAt: sub.TS,
		UpdatedAt: sub.TS,
	}
	if prev, err := s.store.GetWeek(ctx, sub.UserID, sub.WeekKey); err == nil {
		rec.CreatedAt = prev.CreatedAt
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("load weekly record: %w", err)
	}
	if err := s.store.PutWeek(ctx, sub.UserID, rec); err != nil {
		return fmt.Errorf("persist weekly record: %w", err)
	}
	return nil
}

// Regenerate rebuilds the user's rank history from the stored records and
// refreshes the leaderboard from the regenerated state.
func (s *Service) Regenerate(ctx context.Context, userID string) (replay.Result, error) {
	start := time.Now()
	res, err := s.regenerator.Regenerate(ctx, userID)
	if err != nil {
		if errors.Is(err, replay.ErrRegenerationInProgress) {
			metrics.RecordRegenerationConflict()
		}
		return replay.Result{}, err
	}
	metrics.RecordRegenerationDuration(float64(time.Since(start).Milliseconds()))

	if err := s.board.Update(ctx, userID, res.State.Tier, res.State.Points); err != nil {
		return replay.Result{}, fmt.Errorf("update leaderboard: %w", err)
	}
	s.invalidateSummary(ctx, userID)
	return res, nil
}

// UpsertMetric creates or replaces a metric definition, assigning an ID to
// new definitions.
func (s *Service) UpsertMetric(ctx context.Context, userID string, def types.MetricDefinition) (types.MetricDefinition, error) {
	if userID == "" {
		return types.MetricDefinition{}, fmt.Errorf("%w: empty user id", types.ErrInvalidValue)
	}
	if def.Name == "" {
		return types.MetricDefinition{}, fmt.Errorf("%w: empty metric name", types.ErrInvalidValue)
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if err := s.store.UpsertMetric(ctx, userID, def); err != nil {
		return types.MetricDefinition{}, err
	}
	s.invalidateSummary(ctx, userID)
	return def, nil
}

// GetMetric returns one metric definition.
func (s *Service) GetMetric(ctx context.Context, userID, metricID string) (types.MetricDefinition, error) {
	return s.store.GetMetric(ctx, userID, metricID)
}

// ListMetrics returns all metric definitions for a user.
func (s *Service) ListMetrics(ctx context.Context, userID string) ([]types.MetricDefinition, error) {
	return s.store.ListMetrics(ctx, userID)
}

// GetState returns the user's current rank state.
func (s *Service) GetState(ctx context.Context, userID string) (types.RankState, error) {
	return s.store.GetState(ctx, userID)
}

// ListEvents returns the user's tier change history.
func (s *Service) ListEvents(ctx context.Context, userID string) ([]types.RankChangeEvent, error) {
	return s.store.ListEvents(ctx, userID)
}

// ListWeeks returns the user's raw weekly records.
func (s *Service) ListWeeks(ctx context.Context, userID string) ([]types.WeeklyRecord, error) {
	return s.store.ListWeeks(ctx, userID)
}

// TopN returns the top N leaderboard entries, capped by the configured
// maximum page size.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if n > s.maxLeaderboard {
		n = s.maxLeaderboard
	}
	return s.board.TopN(ctx, n)
}

// Rank returns the leaderboard entry for one user.
func (s *Service) Rank(ctx context.Context, userID string) (types.Entry, error) {
	return s.board.Rank(ctx, userID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"dedupeSize":   s.dedupeSize,
		"gamification": s.gamification,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		totalUsers := s.board.Count(ctx)

		stats["queueLength"] = queueLen
		stats["totalUsers"] = totalUsers

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalUsers(totalUsers)
	}

	return stats
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

func (s *Service) lockFor(userID string) *sync.Mutex {
	s.userMu.Lock()
	defer s.userMu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}
