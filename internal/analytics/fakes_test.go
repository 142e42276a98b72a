package analytics

import (
	"context"
	"sync"
	"time"
)

type fakeGateway struct {
	mu sync.Mutex

	ByExternalIDFunc func(ctx context.Context, externalID string, platform Platform) (Payload, error)
	ByUsernameFunc   func(ctx context.Context, username string, platform Platform) (Payload, error)

	externalIDCalls []string
	usernameCalls   []string
}

func (g *fakeGateway) FetchByExternalID(ctx context.Context, externalID string, platform Platform) (Payload, error) {
	g.mu.Lock()
	g.externalIDCalls = append(g.externalIDCalls, externalID)
	g.mu.Unlock()
	if g.ByExternalIDFunc != nil {
		return g.ByExternalIDFunc(ctx, externalID, platform)
	}
	return nil, &ProviderError{Status: 404, Message: "not found"}
}

func (g *fakeGateway) FetchByUsername(ctx context.Context, username string, platform Platform) (Payload, error) {
	g.mu.Lock()
	g.usernameCalls = append(g.usernameCalls, username)
	g.mu.Unlock()
	if g.ByUsernameFunc != nil {
		return g.ByUsernameFunc(ctx, username, platform)
	}
	return nil, &ProviderError{Status: 404, Message: "not found"}
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.externalIDCalls) + len(g.usernameCalls)
}

type snapshotWrite struct {
	InfluencerID string
	Platform     Platform
	Payload      Payload
	At           time.Time
}

type linkWrite struct {
	InfluencerID string
	Platform     Platform
	Update       LinkUpdate
}

// memoryStore is an in-memory Store holding a single influencer per id.
type memoryStore struct {
	mu sync.Mutex

	records map[string]*InfluencerRecord

	snapshotWrites []snapshotWrite
	linkWrites     []linkWrite

	WriteSnapshotErr error
	UpdateLinkErr    error
	GetErr           error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]*InfluencerRecord{}}
}

func (s *memoryStore) put(rec *InfluencerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Links == nil {
		rec.Links = map[Platform]PlatformLink{}
	}
	if rec.Snapshots == nil {
		rec.Snapshots = map[Platform]Snapshot{}
	}
	s.records[rec.Identity.ID] = rec
}

func (s *memoryStore) GetInfluencer(_ context.Context, influencerID string) (*InfluencerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	rec, ok := s.records[influencerID]
	if !ok {
		return nil, ErrInfluencerNotFound
	}

	out := &InfluencerRecord{
		Identity:  rec.Identity,
		Links:     map[Platform]PlatformLink{},
		Snapshots: map[Platform]Snapshot{},
	}
	for k, v := range rec.Links {
		out.Links[k] = v
	}
	for k, v := range rec.Snapshots {
		out.Snapshots[k] = Snapshot{Payload: v.Payload.Clone(), LastRefreshed: v.LastRefreshed}
	}
	return out, nil
}

func (s *memoryStore) UpdatePlatformLink(_ context.Context, influencerID string, platform Platform, update LinkUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.linkWrites = append(s.linkWrites, linkWrite{InfluencerID: influencerID, Platform: platform, Update: update})
	if s.UpdateLinkErr != nil {
		return s.UpdateLinkErr
	}
	if rec, ok := s.records[influencerID]; ok {
		link := rec.Links[platform]
		if link.ExternalID != "" && link.ExternalID != update.Replaces {
			return ErrExternalIDAlreadySet
		}
		link.Platform = platform
		link.ExternalID = update.ExternalID
		rec.Links[platform] = link
	}
	return nil
}

func (s *memoryStore) WriteAnalyticsSnapshot(_ context.Context, influencerID string, platform Platform, payload Payload, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotWrites = append(s.snapshotWrites, snapshotWrite{InfluencerID: influencerID, Platform: platform, Payload: payload, At: at})
	if s.WriteSnapshotErr != nil {
		return s.WriteSnapshotErr
	}
	if rec, ok := s.records[influencerID]; ok {
		if cur, ok := rec.Snapshots[platform]; ok && !cur.LastRefreshed.Before(at) {
			return ErrSnapshotSuperseded
		}
		rec.Snapshots[platform] = Snapshot{Payload: payload.Clone(), LastRefreshed: at}
	}
	return nil
}

func (s *memoryStore) link(influencerID string, platform Platform) PlatformLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[influencerID].Links[platform]
}

func (s *memoryStore) snapshot(influencerID string, platform Platform) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.records[influencerID].Snapshots[platform]
	return snap, ok
}

// testClock is a settable clock.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
