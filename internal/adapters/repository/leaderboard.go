package repository

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/ascent/internal/domain/types"
	"github.com/okian/ascent/pkg/metrics"
)

// Treap-based, in-memory Leaderboard implementation.
//
// Ordering: points DESC, then userID ASC (deterministic).
// The BST comparator treats "less" as "ranks earlier", so an in-order
// traversal produces the leaderboard from best to worst.

// record stores the points plus tier for a user's current standing.
type record struct {
	points int
	tier   types.Tier
}

// Snapshot is an immutable view of the leaderboard state published
// periodically for O(1) reads.
type Snapshot struct {
	RankByUser   map[string]int
	PointsByUser map[string]int

	// Fast Top-K cache, sorted descending.
	TopCache []types.Entry
}

// treap node
type node struct {
	id     string
	points int
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aPoints, aID) should appear before (bPoints, bID)
// in the leaderboard (higher ranks first).
func less(aPoints int, aID string, bPoints int, bID string) bool {
	if aPoints != bPoints {
		return aPoints > bPoints // more points ranks earlier
	}
	return aID < bID // tie-breaker by id asc
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// pointsToPriority keeps higher-point nodes nearer the treap root.
// Points are never negative, so the int to uint64 conversion is safe.
func pointsToPriority(points int) uint64 {
	return uint64(points)
}

func insert(n *node, id string, points int) *node {
	if n == nil {
		return &node{id: id, points: points, prio: pointsToPriority(points), size: 1}
	}
	if less(points, id, n.points, n.id) {
		n.left = insert(n.left, id, points)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, points)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, points int) *node {
	if n == nil {
		return nil
	}
	if points == n.points && id == n.id {
		// Merge children by rotating highest priority up until leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, points)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, points)
		}
	} else if less(points, id, n.points, n.id) {
		n.left = deleteNode(n.left, id, points)
	} else {
		n.right = deleteNode(n.right, id, points)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order (highest points first).
func collectTopN(n *node, limit int, records map[string]record, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}

	collectTopN(n.left, limit, records, out)

	if len(*out) < limit {
		if rec, exists := records[n.id]; exists {
			*out = append(*out, types.Entry{UserID: n.id, Tier: rec.tier.String(), Points: rec.points})
		}
	}

	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

// TreapBoard is the concurrent treap-backed Leaderboard.
type TreapBoard struct {
	mu               sync.RWMutex
	root             *node
	byID             map[string]record
	snapshotInterval time.Duration
	topCacheSize     int
	metricsInterval  time.Duration

	snapshot atomic.Pointer[Snapshot]

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewTreapBoard constructs a leaderboard with configuration options.
func NewTreapBoard(ctx context.Context, opts ...Option) *TreapBoard {
	b := &TreapBoard{
		snapshotInterval: 1 * time.Second,
		topCacheSize:     500,
		metricsInterval:  5 * time.Second,
		byID:             make(map[string]record),
	}

	for _, opt := range opts {
		opt(b)
	}

	b.stopChan = make(chan struct{})
	b.startPeriodicSnapshots(ctx)
	b.startMetricsUpdater(ctx)

	return b
}

// startPeriodicSnapshots publishes snapshots at the configured interval.
func (b *TreapBoard) startPeriodicSnapshots(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopChan:
				return
			case <-ticker.C:
				b.publishSnapshot()
			}
		}
	}()
}

// publishSnapshot rebuilds and publishes a new snapshot.
func (b *TreapBoard) publishSnapshot() {
	b.mu.RLock()
	b.publishSnapshotInternal()
	b.mu.RUnlock()
}

// Close gracefully shuts down the background goroutines.
func (b *TreapBoard) Close() error {
	select {
	case <-b.stopChan:
		// already closed
	default:
		close(b.stopChan)
	}
	b.wg.Wait()
	return nil
}

// Update sets the user's points and tier, inserting on first sight.
// Unlike a high-watermark scoreboard, points can go down.
func (b *TreapBoard) Update(ctx context.Context, userID string, tier types.Tier, points int) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	b.mu.Lock()
	if old, ok := b.byID[userID]; ok {
		if old.points == points && old.tier == tier {
			b.mu.Unlock()
			return nil
		}
		b.root = deleteNode(b.root, userID, old.points)
	}
	b.byID[userID] = record{points: points, tier: tier}
	b.root = insert(b.root, userID, points)
	total := len(b.byID)
	b.mu.Unlock()

	metrics.UpdateTotalUsers(total)
	return nil
}

// Rank returns the current rank entry for a user in O(n log n).
func (b *TreapBoard) Rank(ctx context.Context, userID string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, ok := b.byID[userID]; !ok {
		return types.Entry{}, ErrNotFound
	}

	allEntries := make([]types.Entry, 0, len(b.byID))
	collectAll(b.root, b.byID, &allEntries)
	sortEntries(allEntries)
	assignRanksWithTies(allEntries)

	for _, entry := range allEntries {
		if entry.UserID == userID {
			return entry, nil
		}
	}

	return types.Entry{}, ErrNotFound
}

// TopN returns the top N entries ordered by points desc.
func (b *TreapBoard) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		return nil, ErrInvalidLimit
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]types.Entry, 0, n)
	collectTopN(b.root, n, b.byID, &out)
	assignRanksWithTies(out)
	return out, nil
}

// LatestSnapshot returns the most recently published snapshot, or nil if
// none has been published yet.
func (b *TreapBoard) LatestSnapshot() *Snapshot {
	return b.snapshot.Load()
}

// Count returns the total number of users tracked.
func (b *TreapBoard) Count(ctx context.Context) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byID)
}

// publishSnapshotInternal rebuilds the snapshot (assumes lock is held).
func (b *TreapBoard) publishSnapshotInternal() {
	topCache := make([]types.Entry, 0, b.topCacheSize)
	collectTopN(b.root, b.topCacheSize, b.byID, &topCache)

	rankByUser := make(map[string]int, len(b.byID))
	pointsByUser := make(map[string]int, len(b.byID))

	allEntries := make([]types.Entry, 0, len(b.byID))
	collectAll(b.root, b.byID, &allEntries)
	assignRanksWithTies(allEntries)

	for _, entry := range allEntries {
		rankByUser[entry.UserID] = entry.Rank
		pointsByUser[entry.UserID] = entry.Points
	}

	for i := range topCache {
		if rank, exists := rankByUser[topCache[i].UserID]; exists {
			topCache[i].Rank = rank
		}
	}

	b.snapshot.Store(&Snapshot{
		RankByUser:   rankByUser,
		PointsByUser: pointsByUser,
		TopCache:     topCache,
	})
}

// startMetricsUpdater refreshes gauges at the configured interval.
func (b *TreapBoard) startMetricsUpdater(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.metricsInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopChan:
				return
			case <-ticker.C:
				b.mu.RLock()
				total := len(b.byID)
				b.mu.RUnlock()
				metrics.UpdateTotalUsers(total)
			}
		}
	}()
}

// collectAll appends all entries in rank order (highest points first).
func collectAll(n *node, byID map[string]record, out *[]types.Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, byID, out)
	if rec, ok := byID[n.id]; ok {
		*out = append(*out, types.Entry{
			UserID: n.id,
			Tier:   rec.tier.String(),
			Points: rec.points,
		})
	}
	collectAll(n.right, byID, out)
}

// sortEntries sorts by points (descending) then userID (ascending) to match
// the treap comparator.
func sortEntries(entries []types.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}
		return entries[i].UserID < entries[j].UserID
	})
}

// assignRanksWithTies assigns ranks with tie handling. Users with the same
// points share a rank; the next distinct points value takes the next
// consecutive rank.
func assignRanksWithTies(entries []types.Entry) {
	if len(entries) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank

		sameCount := 1
		for j := i + 1; j < len(entries) && entries[j].Points == entries[i].Points; j++ {
			entries[j].Rank = currentRank
			sameCount++
		}

		currentRank++
		i += sameCount - 1
	}
}
