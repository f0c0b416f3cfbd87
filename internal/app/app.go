package app

import (
	"log/slog"
	"time"

	"bookshelf/internal/handlers"
	"bookshelf/internal/middleware"
	"bookshelf/internal/security"
	"bookshelf/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

const defaultBodyLimit = 10 << 20

// Deps are the collaborators the HTTP surface is assembled from.
type Deps struct {
	AuthService    *services.AuthService
	BookService    *services.BookService
	Tokens         security.TokenVerifier
	Logger         *slog.Logger
	UploadDir      string
	MaxUploadBytes int
	FrontendDomain string
	// AccessLog enables per-request logging.
	AccessLog bool
}

// New builds the Fiber app with its middleware chain and routes.
func New(deps Deps) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		AppName:      "bookshelf",
		BodyLimit:    deps.MaxUploadBytes,
		ErrorHandler: handlers.NewErrorHandler(deps.Logger),
	})

	// --- Middleware ---
	app.Use(recover.New())
	if deps.AccessLog {
		app.Use(logger.New())
	}
	if deps.FrontendDomain != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     deps.FrontendDomain,
			AllowMethods:     "GET,POST,PATCH,DELETE,OPTIONS",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			AllowCredentials: deps.FrontendDomain != "*",
		}))
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Welcome to E library"})
	})

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- API Routes ---
	api := app.Group("/api")
	guard := middleware.AuthRequired(deps.Tokens, deps.Logger)

	handlers.NewAuthHandler(deps.AuthService).RegisterRoutes(api)
	handlers.NewBookHandler(deps.BookService, deps.UploadDir, deps.Logger).RegisterRoutes(api, guard)

	return app
}
