package appcron

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// LegacyMigrator moves legacy notes blobs into typed storage.
type LegacyMigrator interface {
	MigrateLegacyNotes(ctx context.Context) (int, error)
}

// SetupRefreshCron schedules the refresh job and starts the scheduler.
func SetupRefreshCron(job *RefreshJob, schedule string, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(schedule, func() {
		job.Run(context.Background())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add refresh cron job: %w", err)
	}

	c.Start()
	logger.Info("analytics refresh cron job scheduled", zap.String("schedule", schedule))
	return c, nil
}

// MountController mounts the admin routes that trigger background work.
func MountController(router fiber.Router, job *RefreshJob, migrator LegacyMigrator) {
	router.Post("/refresh/run", func(c *fiber.Ctx) error {
		if job.Running() {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "analytics refresh job already running",
			})
		}

		go job.Run(context.Background())
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message": "Analytics refresh job started",
		})
	})

	router.Post("/migrate-legacy-notes", func(c *fiber.Ctx) error {
		migrated, err := migrator.MigrateLegacyNotes(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"migrated": migrated,
		})
	})
}
