package influencers

import (
	"strings"

	"github.com/creatorstation/dashboard/internal/analytics"
	v "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type AnalyticsParams struct {
	InfluencerID string `params:"id"`
	Platform     string `params:"platform"`
}

func (p *AnalyticsParams) Normalize() {
	p.InfluencerID = strings.TrimSpace(p.InfluencerID)
	p.Platform = strings.ToLower(strings.TrimSpace(p.Platform))
}

func (p AnalyticsParams) Validate() error {
	return v.ValidateStruct(&p,
		v.Field(&p.InfluencerID, v.Required, is.UUID),
		v.Field(&p.Platform, v.Required, v.In(analytics.PlatformNames()...)),
	)
}

type ValidateExternalIDBody struct {
	Value *string `json:"value"`
}

func (b ValidateExternalIDBody) Validate() error {
	return v.ValidateStruct(&b,
		v.Field(&b.Value, v.NotNil),
	)
}
