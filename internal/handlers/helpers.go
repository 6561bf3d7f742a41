package handlers

import (
	"github.com/authgate/backend/pkg/logger"
	"github.com/authgate/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// storeError hides credential-store detail from the caller. Store failures
// are request-fatal here; retry policy, if any, belongs to the caller.
func storeError(c *fiber.Ctx, err error) error {
	logger.Error("credential_store_failure", err, map[string]interface{}{
		"path": c.Path(),
	})
	return utils.Error(c, fiber.StatusInternalServerError, "service temporarily unavailable")
}
