package analytics

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Provider payload keys the engine reads. Everything else in a payload is
// passed through untouched.
const (
	KeyExternalID     = "user_id"
	KeyUsername       = "username"
	KeyFollowers      = "followers"
	KeyEngagementRate = "engagement_rate"
	KeyAvgViews       = "avg_views"
	KeyAvgLikes       = "avg_likes"
	KeyAvgComments    = "avg_comments"
	KeyPicture        = "picture"
	KeyBio            = "bio"
	KeyURL            = "url"
)

// Payload is the opaque, provider-shaped analytics document for one account.
type Payload map[string]any

// IsEmpty reports whether the payload carries no data at all.
func (p Payload) IsEmpty() bool {
	return len(p) == 0
}

// ExternalID returns the provider-issued id carried by the payload, if any.
func (p Payload) ExternalID() string {
	return p.String(KeyExternalID)
}

func (p Payload) Followers() float64 {
	return p.Number(KeyFollowers)
}

func (p Payload) EngagementRate() float64 {
	return p.Number(KeyEngagementRate)
}

func (p Payload) AvgViews() float64 {
	return p.Number(KeyAvgViews)
}

func (p Payload) Picture() string {
	return p.String(KeyPicture)
}

// String reads key as a string. Numeric ids are formatted without exponent.
func (p Payload) String(key string) string {
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// Number reads key as a float64. Missing or non-numeric values read as zero.
// Documents decoded from BSON carry int32/int64, JSON ones float64.
func (p Payload) Number(key string) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
