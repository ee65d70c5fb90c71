package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/divyanshu1906/FreelancingFuel/internal/models"
	"github.com/divyanshu1906/FreelancingFuel/internal/services/token"
	"github.com/divyanshu1906/FreelancingFuel/internal/utils"
)

// RequireAuth resolves the Authorization bearer token to a user. It fails
// closed on a missing/malformed header, a revoked token, a bad signature or
// expiry, and on a token whose user no longer exists.
func RequireAuth(secret string, db *gorm.DB, blacklist *token.BlacklistService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "No token provided",
			})
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "No token provided",
			})
		}

		revoked, err := blacklist.IsRevoked(c.Context(), tokenStr)
		if err != nil {
			log.Error().Err(err).Msg("token revocation lookup failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Internal server error",
			})
		}
		if revoked {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Token expired or invalid",
			})
		}

		claims, err := utils.ParseJWT(secret, tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Invalid token",
			})
		}

		var user models.User
		if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "User not found",
			})
		}

		c.Locals("userId", user.ID.String())
		c.Locals("role", string(user.Role))
		c.Locals("user", &user)
		c.Locals("token", tokenStr)
		c.Locals("claims", claims)

		return c.Next()
	}
}
