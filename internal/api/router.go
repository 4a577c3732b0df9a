package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewApp builds the operator API. /metrics is served without auth.
func NewApp(cfg config.Config, s service.SchedulingService, o service.OutcomeService, gatherer prometheus.Gatherer) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "postflow",
	})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       3600,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	authMiddleware := middleware.NewAuthMiddleware(cfg)
	postHandler := handlers.NewPostHandler(s, o)

	apiGroup := app.Group("/api", authMiddleware.AuthMiddleware())

	posts := apiGroup.Group("/posts")
	posts.Post("/:id/schedule", postHandler.SchedulePost)
	posts.Post("/:id/cancel", postHandler.CancelPost)
	posts.Post("/:id/reschedule", postHandler.ReschedulePost)
	posts.Post("/:id/publish", postHandler.PublishNow)
	posts.Delete("/:id", postHandler.DeletePost)
	posts.Get("/:id/targets", postHandler.TargetResults)

	return app
}
