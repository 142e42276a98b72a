package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creatorstation/dashboard/internal/analytics"
	"github.com/creatorstation/dashboard/internal/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const snapshotCollection = "analytics_snapshots"

// Store is the identity store. Identity, CRM fields and platform links live
// in Postgres; analytics snapshots live in MongoDB, one document per
// influencer and platform.
type Store struct {
	db        *gorm.DB
	snapshots *mongo.Collection
	logger    *zap.Logger
}

var (
	_ analytics.Store = (*Store)(nil)

	errLinkNotFound = errors.New("platform link not found")
)

func New(db *gorm.DB, mongoDB *mongo.Database, logger *zap.Logger) *Store {
	return &Store{
		db:        db,
		snapshots: mongoDB.Collection(snapshotCollection),
		logger:    logger,
	}
}

// EnsureSchema migrates the Postgres tables and creates the unique snapshot
// index that keeps one snapshot per influencer and platform.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&models.Influencer{}, &models.PlatformLink{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.snapshots.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "influencer_id", Value: 1}, {Key: "platform", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("influencer_platform_unique"),
	})
	if err != nil {
		return fmt.Errorf("create snapshot index: %w", err)
	}
	return nil
}

// GetInfluencer loads identity, links and cached snapshots for one influencer.
func (s *Store) GetInfluencer(ctx context.Context, influencerID string) (*analytics.InfluencerRecord, error) {
	if _, err := uuid.Parse(influencerID); err != nil {
		return nil, analytics.ErrInfluencerNotFound
	}

	var inf models.Influencer
	err := s.db.WithContext(ctx).Preload("Links").First(&inf, "id = ?", influencerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, analytics.ErrInfluencerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query influencer: %w", err)
	}

	rec := &analytics.InfluencerRecord{
		Identity: analytics.Identity{
			ID:          inf.ID,
			DisplayName: inf.DisplayName,
			Assignee:    inf.Assignee,
			Labels:      inf.Labels,
			Notes:       inf.Notes,
		},
		Links:     map[analytics.Platform]analytics.PlatformLink{},
		Snapshots: map[analytics.Platform]analytics.Snapshot{},
	}

	for _, row := range inf.Links {
		platform, err := analytics.NormalizePlatform(row.Platform)
		if err != nil {
			s.logger.Warn("ignoring link with unsupported platform",
				zap.String("influencer_id", inf.ID), zap.String("platform", row.Platform))
			continue
		}
		link := analytics.PlatformLink{Platform: platform, Username: row.Username}
		if row.ExternalID != nil {
			link.ExternalID = *row.ExternalID
		}
		rec.Links[platform] = link
		rec.Identity.Platforms = append(rec.Identity.Platforms, platform)
	}

	if err := s.loadSnapshots(ctx, inf.ID, rec.Snapshots); err != nil {
		return nil, err
	}

	if inf.LegacyNotes != nil && *inf.LegacyNotes != "" {
		notes, legacy := SplitLegacyNotes(*inf.LegacyNotes)
		if rec.Identity.Notes == "" {
			rec.Identity.Notes = notes
		}
		for platform, snap := range legacy {
			if _, ok := rec.Snapshots[platform]; !ok {
				rec.Snapshots[platform] = snap
			}
		}
	}

	return rec, nil
}

func (s *Store) loadSnapshots(ctx context.Context, influencerID string, into map[analytics.Platform]analytics.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cursor, err := s.snapshots.Find(ctx, bson.M{"influencer_id": influencerID})
	if err != nil {
		return fmt.Errorf("find snapshots: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return fmt.Errorf("decode snapshots: %w", err)
	}

	for _, doc := range docs {
		name, _ := doc["platform"].(string)
		platform, err := analytics.NormalizePlatform(name)
		if err != nil {
			continue
		}
		into[platform] = analytics.Snapshot{
			Payload:       toPayload(doc["payload"]),
			LastRefreshed: parseRefreshed(doc["last_refreshed"]),
		}
	}
	return nil
}

func toPayload(v any) analytics.Payload {
	switch p := v.(type) {
	case bson.M:
		return analytics.Payload(p)
	case map[string]any:
		return analytics.Payload(p)
	case bson.D:
		out := make(analytics.Payload, len(p))
		for _, e := range p {
			out[e.Key] = e.Value
		}
		return out
	default:
		return nil
	}
}

// UpdatePlatformLink sets the provider external id on an existing link. The
// update only applies while the link holds no id or the id named in
// update.Replaces, so concurrent syncs store at most one id.
func (s *Store) UpdatePlatformLink(ctx context.Context, influencerID string, platform analytics.Platform, update analytics.LinkUpdate) error {
	pairQuery := s.db.WithContext(ctx).
		Model(&models.PlatformLink{}).
		Where("influencer_id = ? AND platform = ?", influencerID, platform.String()).
		Session(&gorm.Session{})

	result := pairQuery.
		Where("external_id IS NULL OR external_id = '' OR external_id = ?", update.Replaces).
		Update("external_id", update.ExternalID)
	if result.Error != nil {
		return fmt.Errorf("update platform link: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := pairQuery.Count(&count).Error; err != nil {
		return fmt.Errorf("count platform link: %w", err)
	}
	if count == 0 {
		return errLinkNotFound
	}
	return analytics.ErrExternalIDAlreadySet
}

// WriteAnalyticsSnapshot replaces the snapshot for the pair unless the stored
// one is at least as recent as at.
func (s *Store) WriteAnalyticsSnapshot(ctx context.Context, influencerID string, platform analytics.Platform, payload analytics.Payload, at time.Time) error {
	stamp := primitive.NewDateTimeFromTime(at)
	filter := bson.M{
		"influencer_id":  influencerID,
		"platform":       platform.String(),
		"last_refreshed": bson.M{"$not": bson.M{"$gte": stamp}},
	}
	update := bson.M{"$set": bson.M{
		"payload":        bson.M(payload),
		"last_refreshed": stamp,
	}}

	_, err := s.snapshots.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// The filter missed an existing document, so it is newer.
		return analytics.ErrSnapshotSuperseded
	}
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// ListLinkedPairs returns every influencer/platform pair that has either a
// username or an external id to resolve with.
func (s *Store) ListLinkedPairs(ctx context.Context) ([]analytics.Pair, error) {
	var rows []models.PlatformLink
	err := s.db.WithContext(ctx).
		Select("influencer_id", "platform").
		Where("username <> '' OR (external_id IS NOT NULL AND external_id <> '')").
		Order("influencer_id, platform").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list platform links: %w", err)
	}

	pairs := make([]analytics.Pair, 0, len(rows))
	for _, row := range rows {
		platform, err := analytics.NormalizePlatform(row.Platform)
		if err != nil {
			continue
		}
		pairs = append(pairs, analytics.Pair{InfluencerID: row.InfluencerID, Platform: platform})
	}
	return pairs, nil
}

// MigrateLegacyNotes moves every remaining legacy blob into the typed
// columns and snapshot documents. Existing typed data is never overwritten.
// It returns the number of influencers migrated.
func (s *Store) MigrateLegacyNotes(ctx context.Context) (int, error) {
	var rows []models.Influencer
	err := s.db.WithContext(ctx).
		Where("legacy_notes IS NOT NULL AND legacy_notes <> ''").
		Find(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("query legacy notes: %w", err)
	}

	migrated := 0
	for _, row := range rows {
		if err := s.migrateOne(ctx, row); err != nil {
			s.logger.Error("legacy notes migration failed", zap.String("influencer_id", row.ID), zap.Error(err))
			continue
		}
		migrated++
	}

	s.logger.Info("legacy notes migration finished", zap.Int("found", len(rows)), zap.Int("migrated", migrated))
	return migrated, nil
}

func (s *Store) migrateOne(ctx context.Context, row models.Influencer) error {
	notes, snapshots := SplitLegacyNotes(*row.LegacyNotes)

	for platform, snap := range snapshots {
		filter := bson.M{"influencer_id": row.ID, "platform": platform.String()}
		insert := bson.M{"payload": bson.M(snap.Payload)}
		if !snap.LastRefreshed.IsZero() {
			insert["last_refreshed"] = primitive.NewDateTimeFromTime(snap.LastRefreshed)
		}
		_, err := s.snapshots.UpdateOne(ctx, filter, bson.M{"$setOnInsert": insert}, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("insert legacy snapshot for %s: %w", platform, err)
		}
	}

	updates := map[string]any{"legacy_notes": nil}
	if row.Notes == "" {
		updates["notes"] = notes
	}
	return s.db.WithContext(ctx).Model(&models.Influencer{}).Where("id = ?", row.ID).Updates(updates).Error
}
