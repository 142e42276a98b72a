package appcron

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/creatorstation/dashboard/internal/analytics"
	"go.uber.org/zap"
)

// PairLister lists every influencer/platform pair worth refreshing.
type PairLister interface {
	ListLinkedPairs(ctx context.Context) ([]analytics.Pair, error)
}

// Resolver produces merged analytics views.
type Resolver interface {
	ResolveAnalytics(ctx context.Context, influencerID string, platform analytics.Platform) (*analytics.Result, error)
}

// RefreshSummary reports what a refresh run did.
type RefreshSummary struct {
	Checked     int  `json:"checked"`
	Fresh       int  `json:"fresh"`
	Refreshed   int  `json:"refreshed"`
	Failed      int  `json:"failed"`
	RateLimited bool `json:"rate_limited"`
	Skipped     bool `json:"skipped"`
}

// RefreshJob walks all linked pairs through the engine so stale snapshots are
// refreshed ahead of user requests. Pairs are processed one at a time.
type RefreshJob struct {
	pairs    PairLister
	resolver Resolver
	delay    time.Duration
	logger   *zap.Logger
	running  atomic.Bool
}

// NewRefreshJob builds a job that waits delay after every pair that cost a
// provider call.
func NewRefreshJob(pairs PairLister, resolver Resolver, delay time.Duration, logger *zap.Logger) *RefreshJob {
	return &RefreshJob{
		pairs:    pairs,
		resolver: resolver,
		delay:    delay,
		logger:   logger,
	}
}

// Running reports whether a run is in progress.
func (j *RefreshJob) Running() bool {
	return j.running.Load()
}

// Run refreshes every pair. It stops at the first rate-limited result and
// skips entirely when another run is still in progress.
func (j *RefreshJob) Run(ctx context.Context) RefreshSummary {
	var summary RefreshSummary

	if !j.running.CompareAndSwap(false, true) {
		j.logger.Info("refresh job already running, skipping")
		summary.Skipped = true
		return summary
	}
	defer j.running.Store(false)

	j.logger.Info("starting analytics refresh job")

	pairs, err := j.pairs.ListLinkedPairs(ctx)
	if err != nil {
		j.logger.Error("error listing linked pairs", zap.Error(err))
		return summary
	}

	j.logger.Info("found pairs to check", zap.Int("count", len(pairs)))

	for _, pair := range pairs {
		if ctx.Err() != nil {
			break
		}
		summary.Checked++

		result, err := j.resolver.ResolveAnalytics(ctx, pair.InfluencerID, pair.Platform)
		if err != nil {
			summary.Failed++
			j.logger.Warn("error resolving analytics",
				zap.String("influencer_id", pair.InfluencerID),
				zap.String("platform", pair.Platform.String()),
				zap.Error(err))
			continue
		}

		switch {
		case result.Err == analytics.KindRateLimited:
			summary.RateLimited = true
			j.logger.Warn("provider rate limit reached, stopping refresh run",
				zap.String("influencer_id", pair.InfluencerID),
				zap.Duration("retry_after", result.RetryAfter))
		case result.Err != analytics.KindNone:
			summary.Failed++
		case result.Calls == 0:
			summary.Fresh++
		default:
			summary.Refreshed++
		}

		if summary.RateLimited {
			break
		}
		if result.Calls > 0 && !sleep(ctx, j.delay) {
			break
		}
	}

	j.logger.Info("analytics refresh job completed",
		zap.Int("checked", summary.Checked),
		zap.Int("fresh", summary.Fresh),
		zap.Int("refreshed", summary.Refreshed),
		zap.Int("failed", summary.Failed),
		zap.Bool("rate_limited", summary.RateLimited))

	return summary
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
