package influencers

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/creatorstation/dashboard/internal/analytics"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const defaultRetryAfter = time.Minute

// Resolver produces merged analytics views.
type Resolver interface {
	ResolveAnalytics(ctx context.Context, influencerID string, platform analytics.Platform) (*analytics.Result, error)
}

// MediaFetcher downloads remote media such as profile pictures.
type MediaFetcher func(ctx context.Context, mediaURI string) ([]byte, error)

type Controller struct {
	resolver   Resolver
	fetchMedia MediaFetcher
	logger     *zap.Logger
}

func NewController(resolver Resolver, fetchMedia MediaFetcher, logger *zap.Logger) *Controller {
	return &Controller{resolver: resolver, fetchMedia: fetchMedia, logger: logger}
}

func MountController(router fiber.Router, ctrl *Controller) {
	router.Get("/influencers/:id/analytics/:platform", ctrl.GetAnalytics)
	router.Get("/influencers/:id/avatar/:platform", ctrl.GetAvatar)
	router.Post("/links/external-id/validate", ctrl.ValidateExternalID)
}

func (ctrl *Controller) GetAnalytics(c *fiber.Ctx) error {
	result, status, err := ctrl.resolve(c)
	if err != nil {
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if result.Err == analytics.KindRateLimited {
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds(result.RetryAfter))
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

func (ctrl *Controller) ValidateExternalID(c *fiber.Ctx) error {
	var body ValidateExternalIDBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := body.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"plausible": analytics.IsPlausibleExternalID(*body.Value),
	})
}

// resolve validates the route params and runs the engine. The returned
// status is only meaningful together with a non-nil error.
func (ctrl *Controller) resolve(c *fiber.Ctx) (*analytics.Result, int, error) {
	var params AnalyticsParams
	if err := c.ParamsParser(&params); err != nil {
		return nil, fiber.StatusBadRequest, err
	}
	params.Normalize()

	if err := params.Validate(); err != nil {
		return nil, fiber.StatusBadRequest, err
	}

	result, err := ctrl.resolver.ResolveAnalytics(c.UserContext(), params.InfluencerID, analytics.Platform(params.Platform))
	switch {
	case errors.Is(err, analytics.ErrInfluencerNotFound):
		return nil, fiber.StatusNotFound, err
	case errors.Is(err, analytics.ErrUnsupportedPlatform):
		return nil, fiber.StatusBadRequest, err
	case err != nil:
		ctrl.logger.Error("resolve analytics failed",
			zap.String("influencer_id", params.InfluencerID),
			zap.String("platform", params.Platform),
			zap.Error(err))
		return nil, fiber.StatusInternalServerError, errors.New("failed to load influencer")
	}

	return result, fiber.StatusOK, nil
}

func retryAfterSeconds(d time.Duration) string {
	if d <= 0 {
		d = defaultRetryAfter
	}
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}
