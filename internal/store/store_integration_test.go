package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/creatorstation/dashboard/internal/analytics"
	"github.com/creatorstation/dashboard/internal/db"
	"github.com/creatorstation/dashboard/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newIntegrationStore connects to real databases named by
// STORE_TEST_POSTGRES_DSN and STORE_TEST_MONGO_URI.
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("STORE_TEST_POSTGRES_DSN")
	mongoURI := os.Getenv("STORE_TEST_MONGO_URI")
	if dsn == "" || mongoURI == "" {
		t.Skip("STORE_TEST_POSTGRES_DSN and STORE_TEST_MONGO_URI not set")
	}

	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	pg, err := db.ConnectPostgres(dsn, logger)
	require.NoError(t, err)

	database := "dashboard_it_" + uuid.NewString()[:8]
	mdb, err := db.ConnectMongo(ctx, mongoURI, database)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mdb.Drop(context.Background())
		_ = mdb.Client().Disconnect(context.Background())
	})

	s := New(pg, mdb, logger)
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	inf := models.Influencer{
		ID:          uuid.NewString(),
		DisplayName: "Alice",
		Labels:      []string{"vip"},
		Links:       []models.PlatformLink{{Platform: "instagram", Username: "@alice_ig"}},
	}
	require.NoError(t, s.db.Create(&inf).Error)
	t.Cleanup(func() {
		s.db.Where("influencer_id = ?", inf.ID).Delete(&models.PlatformLink{})
		s.db.Delete(&models.Influencer{}, "id = ?", inf.ID)
	})

	at := time.Now().Truncate(time.Millisecond)
	payload := analytics.Payload{"followers": 1000, "audience": map[string]any{"female": 0.6}}
	require.NoError(t, s.WriteAnalyticsSnapshot(ctx, inf.ID, analytics.Instagram, payload, at))
	require.NoError(t, s.WriteAnalyticsSnapshot(ctx, inf.ID, analytics.Instagram, analytics.Payload{"followers": 1001}, at.Add(time.Millisecond)))
	require.NoError(t, s.UpdatePlatformLink(ctx, inf.ID, analytics.Instagram, analytics.LinkUpdate{ExternalID: "abc123"}))

	count, err := s.snapshots.CountDocuments(ctx, map[string]any{"influencer_id": inf.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	rec, err := s.GetInfluencer(ctx, inf.ID)
	require.NoError(t, err)

	assert.Equal(t, "Alice", rec.Identity.DisplayName)
	assert.Equal(t, []analytics.Platform{analytics.Instagram}, rec.Identity.Platforms)
	assert.Equal(t, "abc123", rec.Links[analytics.Instagram].ExternalID)
	assert.Equal(t, 1001.0, rec.Snapshots[analytics.Instagram].Payload.Followers())
	assert.True(t, rec.Snapshots[analytics.Instagram].LastRefreshed.Equal(at.Add(time.Millisecond)))

	pairs, err := s.ListLinkedPairs(ctx)
	require.NoError(t, err)
	assert.Contains(t, pairs, analytics.Pair{InfluencerID: inf.ID, Platform: analytics.Instagram})
}

func TestStoreRejectsOlderSnapshot(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()
	influencerID := uuid.NewString()
	at := time.Now().Truncate(time.Millisecond)

	require.NoError(t, s.WriteAnalyticsSnapshot(ctx, influencerID, analytics.TikTok, analytics.Payload{"followers": 2}, at))

	err := s.WriteAnalyticsSnapshot(ctx, influencerID, analytics.TikTok, analytics.Payload{"followers": 1}, at.Add(-time.Second))
	assert.ErrorIs(t, err, analytics.ErrSnapshotSuperseded)
	err = s.WriteAnalyticsSnapshot(ctx, influencerID, analytics.TikTok, analytics.Payload{"followers": 1}, at)
	assert.ErrorIs(t, err, analytics.ErrSnapshotSuperseded)

	var doc struct {
		Payload       map[string]any `bson:"payload"`
		LastRefreshed time.Time      `bson:"last_refreshed"`
	}
	require.NoError(t, s.snapshots.FindOne(ctx, map[string]any{"influencer_id": influencerID}).Decode(&doc))
	assert.EqualValues(t, 2, doc.Payload["followers"])
	assert.True(t, doc.LastRefreshed.Equal(at))
}

func TestStoreExternalIDCompareAndSet(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	inf := models.Influencer{
		ID:    uuid.NewString(),
		Links: []models.PlatformLink{{Platform: "youtube", Username: "alice"}},
	}
	require.NoError(t, s.db.Create(&inf).Error)
	t.Cleanup(func() {
		s.db.Where("influencer_id = ?", inf.ID).Delete(&models.PlatformLink{})
		s.db.Delete(&models.Influencer{}, "id = ?", inf.ID)
	})

	require.NoError(t, s.UpdatePlatformLink(ctx, inf.ID, analytics.YouTube, analytics.LinkUpdate{ExternalID: "UC111"}))
	err := s.UpdatePlatformLink(ctx, inf.ID, analytics.YouTube, analytics.LinkUpdate{ExternalID: "UC222"})
	assert.ErrorIs(t, err, analytics.ErrExternalIDAlreadySet)
	require.NoError(t, s.UpdatePlatformLink(ctx, inf.ID, analytics.YouTube, analytics.LinkUpdate{ExternalID: "UC333", Replaces: "UC111"}))

	err = s.UpdatePlatformLink(ctx, inf.ID, analytics.TikTok, analytics.LinkUpdate{ExternalID: "tt1"})
	assert.ErrorIs(t, err, errLinkNotFound)

	rec, err := s.GetInfluencer(ctx, inf.ID)
	require.NoError(t, err)
	assert.Equal(t, "UC333", rec.Links[analytics.YouTube].ExternalID)
}

func TestStoreGetInfluencerNotFound(t *testing.T) {
	s := newIntegrationStore(t)

	_, err := s.GetInfluencer(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, analytics.ErrInfluencerNotFound)

	_, err = s.GetInfluencer(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, analytics.ErrInfluencerNotFound)
}
