package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-portal/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-portal/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health        *handlers.HealthHandler
	Session       *handlers.SessionHandler
	Tickets       *handlers.TicketsHandler
	Categories    *handlers.CategoriesHandler
	Blobs         *handlers.BlobsHandler
	Notifications *handlers.NotificationsHandler
	Sessions      *auth.SessionContext
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Get("/blobs/:key", cfg.Blobs.GetBlob)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Session.Register)
	authGroup.Post("/login", cfg.Session.Login)
	authGroup.Post("/anonymous", cfg.Session.Anonymous)

	session := authGroup.Group("", cfg.Sessions.Handle)
	session.Post("/signout", cfg.Session.SignOut)
	session.Get("/me", cfg.Session.Me)

	tickets := app.Group("/tickets", cfg.Sessions.Handle)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/watch", cfg.Tickets.Watch)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/comments", cfg.Tickets.AddComment)
	tickets.Patch("/:id/status", auth.RequireStaff(), cfg.Tickets.ChangeStatus)

	categories := app.Group("/categories", cfg.Sessions.Handle)
	categories.Get("/", cfg.Categories.ListCategories)
	categories.Post("/", auth.RequireAdmin(), cfg.Categories.CreateCategory)
	categories.Delete("/:id", auth.RequireAdmin(), cfg.Categories.DeleteCategory)

	app.Get("/notifications", cfg.Sessions.Handle, cfg.Notifications.ListNotifications)
}
