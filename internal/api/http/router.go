package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/maintenance-service/internal/api/http/handlers"
	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Materials      *handlers.MaterialsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)
	api.Get("/me", cfg.Auth.Me)
	api.Post("/operators", auth.RequireRole(domain.OperatorRoleAdmin), cfg.Auth.CreateOperator)

	tickets := api.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Delete("/:id", cfg.Tickets.Delete)
	tickets.Get("/:id/history", cfg.Tickets.History)
	tickets.Get("/:id/cost", cfg.Tickets.Cost)
	tickets.Post("/:id/approve", cfg.Tickets.Approve)
	tickets.Post("/:id/start", cfg.Tickets.Start)
	tickets.Post("/:id/hold", cfg.Tickets.Hold)
	tickets.Post("/:id/resume", cfg.Tickets.Resume)
	tickets.Post("/:id/complete", cfg.Tickets.Complete)
	tickets.Post("/:id/cancel", cfg.Tickets.Cancel)
	tickets.Put("/:id/assignee", cfg.Tickets.Assign)
	tickets.Patch("/:id/tasks/:taskId", cfg.Tickets.UpdateTask)
	tickets.Post("/:id/materials", cfg.Tickets.IssueMaterial)
	tickets.Post("/:id/labor", cfg.Tickets.RecordLabor)
	tickets.Put("/:id/charges", cfg.Tickets.RecordCharges)

	materials := api.Group("/materials")
	materials.Get("/", cfg.Materials.ListMaterials)
	materials.Post("/", auth.RequireCapability(domain.CapabilityManageCatalog), cfg.Materials.CreateMaterial)
	materials.Get("/:id", cfg.Materials.GetMaterial)
	materials.Post("/:id/receipts", auth.RequireCapability(domain.CapabilityManageStock), cfg.Materials.ReceiveStock)
	materials.Get("/:id/transactions", cfg.Materials.ListTransactions)
	materials.Get("/:id/reconciliation", cfg.Materials.Reconcile)

	stock := api.Group("/stock")
	stock.Get("/alerts", cfg.Materials.Alerts)
	stock.Get("/reconciliation", auth.RequireCapability(domain.CapabilityManageStock), cfg.Materials.ReconcileAll)
	stock.Get("/transactions/:id", cfg.Materials.GetTransaction)
	stock.Post("/transactions/:id/reverse", auth.RequireCapability(domain.CapabilityManageStock), cfg.Materials.ReverseTransaction)
}
