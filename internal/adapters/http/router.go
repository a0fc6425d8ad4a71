package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/lukagarbi/doorstep/internal/pkg/metrics"
)

// Detection routes get a longer budget than plain CRUD: one run may spend
// most of a minute on the geodata fetch and its retries.
const (
	crudTimeout   = 15 * time.Second
	detectTimeout = 60 * time.Second
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(429).JSON(fiber.Map{
				"error":   "rate limit exceeded",
				"message": "too many requests, please try again later",
			})
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/healthz", HealthHandler(deps))
	app.Get("/readyz", ReadyHandler(deps))

	// REST API
	api := app.Group("/api/v1")
	api.Post("/territories/detect", timeout.NewWithContext(DetectBuildingsHandler(deps), detectTimeout))
	api.Post("/territories", timeout.NewWithContext(CreateTerritoryHandler(deps), crudTimeout))
	api.Get("/territories", timeout.NewWithContext(ListTerritoriesHandler(deps), crudTimeout))
	api.Get("/territories/:id", timeout.NewWithContext(GetTerritoryHandler(deps), crudTimeout))
	api.Delete("/territories/:id", timeout.NewWithContext(DeleteTerritoryHandler(deps), crudTimeout))
	api.Post("/territories/:id/rescan", timeout.NewWithContext(RescanTerritoryHandler(deps), detectTimeout))
	api.Get("/territories/:id/detections", timeout.NewWithContext(TerritoryDetectionsHandler(deps), crudTimeout))
	api.Get("/stats", timeout.NewWithContext(CoverageStatsHandler(deps), crudTimeout))

	// GraphQL (GET carries the query in the URL, POST in the body)
	gql := GraphQLHandler(deps)
	api.Get("/graphql", gql)
	api.Post("/graphql", gql)

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket relay for detection events
	app.Use("/ws/detections", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/detections", websocket.New(DetectionStreamHandler(deps.NATS)))
}
