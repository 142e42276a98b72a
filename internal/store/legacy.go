package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/creatorstation/dashboard/internal/analytics"
)

// legacyBlob is the old single-column shape that mixed CRM notes with the
// analytics cache.
type legacyBlob struct {
	Notes          *string                    `json:"notes"`
	AnalyticsCache map[string]legacyCacheItem `json:"analytics_cache"`
}

type legacyCacheItem struct {
	Data          map[string]any `json:"data"`
	LastRefreshed any            `json:"last_refreshed"`
}

// SplitLegacyNotes separates a legacy notes blob into CRM notes and typed
// snapshots. Blobs that are not JSON objects are plain notes. Snapshots whose
// timestamp cannot be parsed keep a zero LastRefreshed and so always read as
// stale.
func SplitLegacyNotes(blob string) (string, map[analytics.Platform]analytics.Snapshot) {
	snapshots := map[analytics.Platform]analytics.Snapshot{}

	trimmed := strings.TrimSpace(blob)
	if !strings.HasPrefix(trimmed, "{") {
		return blob, snapshots
	}

	var parsed legacyBlob
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return blob, snapshots
	}
	if parsed.Notes == nil && parsed.AnalyticsCache == nil {
		return blob, snapshots
	}

	notes := ""
	if parsed.Notes != nil {
		notes = *parsed.Notes
	}

	for name, item := range parsed.AnalyticsCache {
		platform, err := analytics.NormalizePlatform(name)
		if err != nil || len(item.Data) == 0 {
			continue
		}
		snapshots[platform] = analytics.Snapshot{
			Payload:       analytics.Payload(item.Data),
			LastRefreshed: parseRefreshed(item.LastRefreshed),
		}
	}

	return notes, snapshots
}

// parseRefreshed reads a refresh timestamp in any shape it has been stored
// in. Anything unrecognised yields the zero time.
func parseRefreshed(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case interface{ Time() time.Time }:
		return t.Time()
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, strings.TrimSpace(t)); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}
