package repository

import "time"

// Option applies a configuration option to the TreapBoard.
type Option func(*TreapBoard)

// WithSnapshotInterval sets how often the leaderboard snapshot is rebuilt.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(b *TreapBoard) {
		if interval > 0 {
			b.snapshotInterval = interval
		}
	}
}

// WithTopCacheSize sets the number of entries kept in the snapshot top cache.
func WithTopCacheSize(size int) Option {
	return func(b *TreapBoard) {
		if size > 0 {
			b.topCacheSize = size
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(b *TreapBoard) {
		if interval > 0 {
			b.metricsInterval = interval
		}
	}
}
