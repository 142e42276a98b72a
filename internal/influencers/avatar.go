package influencers

import (
	"github.com/creatorstation/dashboard/pkg/convert/img"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// avatarMaxMPXS caps avatar thumbnails at roughly 320x320 pixels.
const avatarMaxMPXS = 0.1

// GetAvatar serves the profile picture from the merged view as a JPEG
// thumbnail. A stale view still has a usable picture.
func (ctrl *Controller) GetAvatar(c *fiber.Ctx) error {
	result, status, err := ctrl.resolve(c)
	if err != nil {
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	picture := result.Data.Picture()
	if picture == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "no profile picture available",
			"details": result.Err,
		})
	}

	original, err := ctrl.fetchMedia(c.UserContext(), picture)
	if err != nil {
		ctrl.logger.Warn("fetch profile picture failed", zap.String("url", picture), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	thumbnail, err := img.Downscale(original, avatarMaxMPXS)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set(fiber.HeaderCacheControl, "private, max-age=3600")
	c.Context().SetContentType("image/jpeg")
	return c.Status(fiber.StatusOK).Send(thumbnail)
}
