package analytics

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Gateway is the third-party analytics provider. Implementations return a
// *ProviderError for every failed call.
type Gateway interface {
	FetchByExternalID(ctx context.Context, externalID string, platform Platform) (Payload, error)
	FetchByUsername(ctx context.Context, username string, platform Platform) (Payload, error)
}

// OutcomeKind tags the result of one tier.
type OutcomeKind int

const (
	// OutcomeFallThrough hands over to the next tier.
	OutcomeFallThrough OutcomeKind = iota
	// OutcomeSuccess ends the chain with a payload.
	OutcomeSuccess
	// OutcomeAbort ends the chain with a terminal error. No later tier runs.
	OutcomeAbort
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeAbort:
		return "abort"
	default:
		return "fall_through"
	}
}

// Outcome is what a single tier produced.
type Outcome struct {
	Kind    OutcomeKind
	Payload Payload
	Err     *ResolutionError
	// Called is false when the tier decided without touching the gateway.
	Called bool
}

// Tier is one resolution strategy. A tier performs at most one gateway call.
type Tier interface {
	Name() string
	Attempt(ctx context.Context, gw Gateway, link PlatformLink, res *Resolution) Outcome
}

// Resolution describes a finished resolution attempt.
type Resolution struct {
	Payload Payload
	// Tier is the name of the tier that produced Payload.
	Tier string
	// Calls counts gateway calls made.
	Calls int
	// DiscoveredExternalID is the provider id returned by a username lookup.
	DiscoveredExternalID string
	// StaleExternalID is set when the stored external id was implausible or
	// rejected by the provider for this platform. Only implausible ids are
	// ever replaced in storage.
	StaleExternalID bool
}

// Resolver runs an ordered tier chain against the gateway. Tiers run strictly
// one after another; an abort at any tier ends the chain.
type Resolver struct {
	gateway Gateway
	tiers   []Tier
	logger  *zap.Logger
}

// NewResolver builds the default chain: external id first, then username.
func NewResolver(gateway Gateway, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		gateway: gateway,
		tiers:   []Tier{ExternalIDTier{}, UsernameTier{}},
		logger:  logger,
	}
}

// Resolve fetches a fresh payload for link. The returned Resolution is never
// nil, so callers can inspect the call count on failure too.
func (r *Resolver) Resolve(ctx context.Context, link PlatformLink) (*Resolution, error) {
	res := &Resolution{}

	for _, tier := range r.tiers {
		out := tier.Attempt(ctx, r.gateway, link, res)
		if out.Called {
			res.Calls++
		}

		r.logger.Debug("resolution tier finished",
			zap.String("tier", tier.Name()),
			zap.String("platform", link.Platform.String()),
			zap.Stringer("outcome", out.Kind),
			zap.Bool("called", out.Called))

		switch out.Kind {
		case OutcomeSuccess:
			res.Payload = out.Payload
			res.Tier = tier.Name()
			return res, nil
		case OutcomeAbort:
			return res, out.Err
		}
	}

	return res, &ResolutionError{Kind: KindNotConfigured, Err: errors.New("no tier could resolve the account")}
}

// ExternalIDTier queries the provider by its own id. A rejected id falls
// through to the username tier; everything else is terminal.
type ExternalIDTier struct{}

func (ExternalIDTier) Name() string { return "external_id" }

func (t ExternalIDTier) Attempt(ctx context.Context, gw Gateway, link PlatformLink, res *Resolution) Outcome {
	if link.ExternalID == "" {
		return Outcome{Kind: OutcomeFallThrough}
	}
	if !IsPlausibleExternalID(link.ExternalID) {
		res.StaleExternalID = true
		return Outcome{Kind: OutcomeFallThrough}
	}

	payload, err := gw.FetchByExternalID(ctx, link.ExternalID, link.Platform)
	if err == nil {
		return succeed(t.Name(), payload)
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.InvalidIdentifier() {
		res.StaleExternalID = true
		return Outcome{Kind: OutcomeFallThrough, Called: true}
	}
	return abort(t.Name(), err)
}

// UsernameTier queries the provider by the normalized username and surfaces
// the provider id it returns.
type UsernameTier struct{}

func (UsernameTier) Name() string { return "username" }

func (t UsernameTier) Attempt(ctx context.Context, gw Gateway, link PlatformLink, res *Resolution) Outcome {
	username := NormalizeUsername(link.Username)
	if username == "" {
		return Outcome{
			Kind: OutcomeAbort,
			Err:  &ResolutionError{Kind: KindNotConfigured, Tier: t.Name(), Err: errors.New("no username linked")},
		}
	}

	payload, err := gw.FetchByUsername(ctx, username, link.Platform)
	if err != nil {
		return abort(t.Name(), err)
	}

	out := succeed(t.Name(), payload)
	if out.Kind == OutcomeSuccess {
		if id := payload.ExternalID(); IsPlausibleExternalID(id) {
			res.DiscoveredExternalID = id
		}
	}
	return out
}

func succeed(tier string, payload Payload) Outcome {
	if payload.IsEmpty() {
		return Outcome{
			Kind:   OutcomeAbort,
			Called: true,
			Err:    &ResolutionError{Kind: KindTransient, Tier: tier, Err: errors.New("provider returned an empty profile")},
		}
	}
	return Outcome{Kind: OutcomeSuccess, Payload: payload, Called: true}
}

// abort classifies a failed gateway call. Rate limits are terminal for the
// whole chain, as is every other failure reaching this point.
func abort(tier string, err error) Outcome {
	re := &ResolutionError{Kind: KindTransient, Tier: tier, Err: err}

	var pe *ProviderError
	if errors.As(err, &pe) {
		re.Status = pe.Status
		if pe.RateLimited() {
			re.Kind = KindRateLimited
			re.RetryAfter = pe.RetryAfter
		}
	}

	return Outcome{Kind: OutcomeAbort, Err: re, Called: true}
}
