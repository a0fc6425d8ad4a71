package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on
// endpoint. Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/healthz" || path == "/readyz":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache" // Metrics are real-time

		case strings.HasSuffix(path, "/graphql"):
			ttl = "private, max-age=0" // GraphQL varies wildly

		case strings.HasSuffix(path, "/detections"):
			ttl = "public, max-age=30" // Run history grows with every scan

		case strings.HasPrefix(path, "/api/v1/territories/"):
			ttl = "public, max-age=300" // Single territory, invalidated on delete

		case strings.HasPrefix(path, "/api/v1/"):
			ttl = "public, max-age=60" // Default for API endpoints
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}
