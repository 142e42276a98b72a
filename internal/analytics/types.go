package analytics

import "time"

// Identity is the CRM-owned part of an influencer. Analytics refreshes never
// modify it.
type Identity struct {
	ID          string
	DisplayName string
	Platforms   []Platform
	Assignee    string
	Labels      []string
	Notes       string
}

// PlatformLink connects an influencer to one account on a platform.
type PlatformLink struct {
	Platform   Platform
	Username   string
	ExternalID string
}

// Snapshot is the cached analytics payload for one influencer and platform.
// A zero LastRefreshed means the timestamp is missing or could not be parsed.
type Snapshot struct {
	Payload       Payload
	LastRefreshed time.Time
}

// InfluencerRecord is everything the store knows about one influencer.
type InfluencerRecord struct {
	Identity  Identity
	Links     map[Platform]PlatformLink
	Snapshots map[Platform]Snapshot
}

// LinkUpdate carries the platform link fields an analytics sync may set.
type LinkUpdate struct {
	ExternalID string
	// Replaces is the implausible id being overwritten, if any. Stores only
	// apply the update while the link holds no id or exactly this value.
	Replaces string
}

// Pair identifies one influencer on one platform.
type Pair struct {
	InfluencerID string
	Platform     Platform
}

func (p Pair) key() string {
	return p.InfluencerID + "|" + string(p.Platform)
}
