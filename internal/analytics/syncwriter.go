package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const persistTimeout = 10 * time.Second

// SnapshotWriter is the write side of the identity store used by SyncWriter.
type SnapshotWriter interface {
	UpdatePlatformLink(ctx context.Context, influencerID string, platform Platform, update LinkUpdate) error
	WriteAnalyticsSnapshot(ctx context.Context, influencerID string, platform Platform, payload Payload, at time.Time) error
}

// SyncWriterConfig configures a SyncWriter. Zero values are usable.
type SyncWriterConfig struct {
	// Memory remembers the last key written per pair. Defaults to an LRU of
	// DefaultDedupCapacity entries.
	Memory DedupMemory
	// Window limits how long a remembered key suppresses identical writes.
	// Zero means forever.
	Window time.Duration
	Now    func() time.Time
	Logger *zap.Logger
}

// SyncWriter persists freshly fetched analytics into the snapshot slot. It is
// the only component that writes snapshots.
type SyncWriter struct {
	store  SnapshotWriter
	memory DedupMemory
	locks  pairLocks
	window time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func NewSyncWriter(store SnapshotWriter, cfg SyncWriterConfig) *SyncWriter {
	w := &SyncWriter{
		store:  store,
		memory: cfg.Memory,
		window: cfg.Window,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
	if w.memory == nil {
		w.memory = NewLRUMemory(DefaultDedupCapacity)
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	return w
}

// DedupKey fingerprints the parts of a payload that matter for deciding
// whether a write would change anything.
func DedupKey(influencerID string, platform Platform, link PlatformLink, payload Payload) string {
	identifier := payload.ExternalID()
	if identifier == "" {
		identifier = NormalizeUsername(link.Username)
	}
	return fmt.Sprintf("%s|%s|%s|%g|%g|%g",
		influencerID, platform, identifier,
		payload.Followers(), payload.EngagementRate(), payload.AvgViews())
}

// Persist writes payload as the snapshot for the influencer on link.Platform
// and returns the last_refreshed time now stored for the pair. A zero time
// means nothing was stored. Writes for the same pair are serialized so the
// stored timestamp only moves forward. A newly discovered external id is
// stored when link has none or holds an implausible one. Failures are logged
// and swallowed.
func (w *SyncWriter) Persist(ctx context.Context, influencerID string, link PlatformLink, payload Payload) time.Time {
	if payload.IsEmpty() {
		return time.Time{}
	}

	platform := link.Platform
	pair := Pair{InfluencerID: influencerID, Platform: platform}.key()
	key := DedupKey(influencerID, platform, link, payload)

	unlock := w.locks.lock(pair)
	defer unlock()

	at := w.now().Truncate(time.Millisecond)

	prev, seen := w.memory.Get(pair)
	if seen && prev.Key == key && (w.window <= 0 || at.Sub(prev.WrittenAt) < w.window) {
		w.logger.Debug("skipping duplicate snapshot write",
			zap.String("influencer_id", influencerID),
			zap.String("platform", platform.String()))
		return prev.WrittenAt
	}
	if seen && !at.After(prev.WrittenAt) {
		at = prev.WrittenAt.Add(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	written := at
	switch err := w.store.WriteAnalyticsSnapshot(ctx, influencerID, platform, payload, at); {
	case err == nil:
		w.memory.Put(pair, WriteRecord{Key: key, WrittenAt: at})
	case errors.Is(err, ErrSnapshotSuperseded):
		w.logger.Debug("newer snapshot already stored",
			zap.String("influencer_id", influencerID),
			zap.String("platform", platform.String()))
		written = time.Time{}
	default:
		w.logFailure(influencerID, platform, "write snapshot", err)
		written = time.Time{}
	}

	w.storeExternalID(ctx, influencerID, link, payload.ExternalID())
	return written
}

func (w *SyncWriter) storeExternalID(ctx context.Context, influencerID string, link PlatformLink, externalID string) {
	if !IsPlausibleExternalID(externalID) || externalID == link.ExternalID {
		return
	}
	if link.ExternalID != "" && IsPlausibleExternalID(link.ExternalID) {
		return
	}

	platform := link.Platform
	update := LinkUpdate{ExternalID: externalID, Replaces: link.ExternalID}
	err := w.store.UpdatePlatformLink(ctx, influencerID, platform, update)
	switch {
	case errors.Is(err, ErrExternalIDAlreadySet):
		w.logger.Debug("external id already stored",
			zap.String("influencer_id", influencerID),
			zap.String("platform", platform.String()))
		return
	case err != nil:
		w.logFailure(influencerID, platform, "store external id", err)
		return
	}
	w.logger.Info("stored provider external id",
		zap.String("influencer_id", influencerID),
		zap.String("platform", platform.String()),
		zap.String("external_id", externalID),
		zap.String("replaced", link.ExternalID))
}

func (w *SyncWriter) logFailure(influencerID string, platform Platform, op string, err error) {
	w.logger.Warn("analytics persistence failed",
		zap.String("kind", string(KindPersistenceFailure)),
		zap.String("op", op),
		zap.String("influencer_id", influencerID),
		zap.String("platform", platform.String()),
		zap.Error(err))
}

// pairLocks hands out one mutex per pair and drops it once nobody holds or
// waits for it.
type pairLocks struct {
	mu    sync.Mutex
	locks map[string]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func (l *pairLocks) lock(pair string) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[string]*pairLock{}
	}
	pl, ok := l.locks[pair]
	if !ok {
		pl = &pairLock{}
		l.locks[pair] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()

		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, pair)
		}
		l.mu.Unlock()
	}
}
