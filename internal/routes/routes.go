package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/mostrador/internal/config"
	"github.com/example/mostrador/internal/erp"
	"github.com/example/mostrador/internal/handlers"
	"github.com/example/mostrador/internal/middleware"
	"github.com/example/mostrador/internal/services"
	"github.com/example/mostrador/internal/session"
)

// Deps bundles everything the route tree needs.
type Deps struct {
	DB       *gorm.DB
	ERP      *erp.Client
	Store    session.Store
	Cfg      *config.Config
	Telegram *services.TelegramService
	Resync   *services.ResyncService
	Log      zerolog.Logger
}

// Register mounts all API routes on the app.
func Register(app *fiber.App, deps Deps) {
	authHandler := handlers.NewAuthHandler(deps.DB, deps.Cfg)
	catalogHandler := handlers.NewCatalogHandler(deps.ERP, deps.Log)
	clientHandler := handlers.NewClientHandler(deps.ERP, deps.Log)
	promotionHandler := handlers.NewPromotionHandler(deps.ERP, deps.Log)
	posHandler := handlers.NewPOSHandler(services.NewGormSubmissionLog(deps.DB), deps.ERP, deps.Store, deps.Cfg, deps.Telegram, deps.Resync, deps.Log)
	proxyHandler := handlers.NewProxyHandler(deps.ERP, deps.Log)

	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)

	protected := api.Group("", middleware.AuthMiddleware(deps.Cfg))

	catalog := protected.Group("/catalog")
	catalog.Get("/products", catalogHandler.ListProducts)
	catalog.Get("/products/:id", catalogHandler.GetProduct)
	catalog.Get("/categories", catalogHandler.ListCategories)
	catalog.Get("/categories/:code/subcategories", catalogHandler.ListSubcategories)

	protected.Get("/clients", clientHandler.Search)

	protected.Get("/promotions/active", promotionHandler.ActiveEvent)
	protected.Get("/parameters/:code", promotionHandler.GetParameter)

	pos := protected.Group("/pos")
	pos.Get("/session", posHandler.GetSession)
	pos.Post("/session/lines", posHandler.AddLine)
	pos.Delete("/session/lines/:productId", posHandler.DecrementLine)
	pos.Post("/session/reset", posHandler.Reset)
	pos.Put("/session/client", posHandler.SetClient)
	pos.Put("/session/pricing", posHandler.SetPricing)
	pos.Post("/session/refresh", posHandler.RefreshLines)
	pos.Post("/session/submit", posHandler.Submit)
	pos.Get("/orders/:id/edit", posHandler.LoadForEdit)
	pos.Get("/submissions", posHandler.ListSubmissions)

	protected.All("/erp/*", proxyHandler.Forward)
}
