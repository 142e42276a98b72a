package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Store is the identity store as seen by the engine.
type Store interface {
	SnapshotWriter
	GetInfluencer(ctx context.Context, influencerID string) (*InfluencerRecord, error)
}

// EngineConfig wires an Engine. Writer defaults to a SyncWriter whose dedup
// window equals the TTL.
type EngineConfig struct {
	TTL    time.Duration
	Writer *SyncWriter
	Now    func() time.Time
	Logger *zap.Logger
}

// Result is what the view layer receives for one influencer and platform.
type Result struct {
	Data          MergedView    `json:"data"`
	Stale         bool          `json:"stale"`
	Err           ErrorKind     `json:"error,omitempty"`
	Message       string        `json:"message,omitempty"`
	LastRefreshed *time.Time    `json:"last_refreshed,omitempty"`
	RetryAfter    time.Duration `json:"-"`
	// Calls is the number of provider calls made for this result.
	Calls int `json:"-"`
}

// Engine resolves merged analytics views: cache gate first, then the tiered
// provider fetch, then write-back and merge.
type Engine struct {
	store    Store
	gate     *CacheGate
	resolver *Resolver
	writer   *SyncWriter
	now      func() time.Time
	logger   *zap.Logger
}

func NewEngine(store Store, gateway Gateway, cfg EngineConfig) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	gate := NewCacheGate(cfg.TTL, cfg.Now)
	writer := cfg.Writer
	if writer == nil {
		writer = NewSyncWriter(store, SyncWriterConfig{
			Window: gate.TTL(),
			Now:    cfg.Now,
			Logger: cfg.Logger.Named("sync"),
		})
	}

	return &Engine{
		store:    store,
		gate:     gate,
		resolver: NewResolver(gateway, cfg.Logger.Named("resolver")),
		writer:   writer,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
}

// ResolveAnalytics returns the merged view for the influencer on platform.
// Provider failures never produce an error here; they are reported through
// Result.Err with the last known snapshot attached. The returned error is
// reserved for unknown influencers, unknown platforms and store failures.
func (e *Engine) ResolveAnalytics(ctx context.Context, influencerID string, platform Platform) (*Result, error) {
	platform, err := NormalizePlatform(string(platform))
	if err != nil {
		return nil, err
	}

	rec, err := e.store.GetInfluencer(ctx, influencerID)
	if err != nil {
		if errors.Is(err, ErrInfluencerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load influencer %s: %w", influencerID, err)
	}
	if rec == nil {
		return nil, ErrInfluencerNotFound
	}

	identity := rec.Identity
	snapshot, hasSnapshot := rec.Snapshots[platform]
	if hasSnapshot && e.gate.IsFresh(&snapshot) {
		return &Result{
			Data:          Merge(identity, snapshot.Payload),
			LastRefreshed: timePtr(snapshot.LastRefreshed),
		}, nil
	}

	link, linked := rec.Links[platform]
	if !linked {
		return e.staleResult(identity, snapshot, hasSnapshot, &ResolutionError{Kind: KindNotConfigured}, 0), nil
	}
	link.Platform = platform

	res, err := e.resolver.Resolve(ctx, link)
	if err != nil {
		e.logger.Info("analytics resolution failed",
			zap.String("influencer_id", influencerID),
			zap.String("platform", platform.String()),
			zap.Int("calls", res.Calls),
			zap.Error(err))
		return e.staleResult(identity, snapshot, hasSnapshot, err, res.Calls), nil
	}

	if res.StaleExternalID && IsPlausibleExternalID(link.ExternalID) {
		e.logger.Warn("provider rejected stored external id",
			zap.String("influencer_id", influencerID),
			zap.String("platform", platform.String()),
			zap.String("external_id", link.ExternalID))
	}

	refreshed := e.writer.Persist(ctx, influencerID, link, res.Payload)
	if refreshed.IsZero() {
		refreshed = e.now().Truncate(time.Millisecond)
	}

	return &Result{
		Data:          Merge(identity, res.Payload),
		LastRefreshed: timePtr(refreshed),
		Calls:         res.Calls,
	}, nil
}

func (e *Engine) staleResult(identity Identity, snapshot Snapshot, hasSnapshot bool, err error, calls int) *Result {
	result := &Result{
		Stale:   true,
		Err:     KindOf(err),
		Message: userMessage(KindOf(err)),
		Calls:   calls,
	}

	var re *ResolutionError
	if errors.As(err, &re) {
		result.RetryAfter = re.RetryAfter
	}

	if hasSnapshot {
		result.Data = Merge(identity, snapshot.Payload)
		result.LastRefreshed = timePtr(snapshot.LastRefreshed)
	} else {
		result.Data = Merge(identity, nil)
	}
	return result
}

func userMessage(kind ErrorKind) string {
	switch kind {
	case KindRateLimited:
		return "The analytics provider is rate limiting requests. Showing the last known data; try again in a few minutes."
	case KindNotConfigured:
		return "No linked account for this platform."
	case KindTransient:
		return "Analytics are temporarily unavailable. Showing the last known data."
	default:
		return ""
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
