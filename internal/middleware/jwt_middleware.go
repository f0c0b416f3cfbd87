package middleware

import (
	"log/slog"
	"strings"

	"bookshelf/internal/apperror"
	"bookshelf/internal/security"

	"github.com/gofiber/fiber/v2"
)

const identityKey = "identity"

// AuthRequired is a Fiber middleware to check for a valid JWT token. The
// resolved identity is stored in the request locals.
func AuthRequired(verifier security.TokenVerifier, logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return apperror.Authentication("Authorization header is required")
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return apperror.Authentication("Authorization header format must be 'Bearer <token>'")
		}

		identity, err := verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			logger.Debug("JWT validation failed", "path", c.Path(), "error", err)
			return apperror.AuthenticationWrap("Invalid or expired token", err)
		}

		c.Locals(identityKey, identity)
		return c.Next()
	}
}

// IdentityFrom returns the identity stamped by AuthRequired, or the
// anonymous identity when the route is not guarded.
func IdentityFrom(c *fiber.Ctx) security.Identity {
	identity, _ := c.Locals(identityKey).(security.Identity)
	return identity
}
