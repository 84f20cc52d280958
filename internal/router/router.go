package router // router wires handlers and middleware onto echo

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/erfan-mirasadi/menu-3d/internal/config"
	"github.com/erfan-mirasadi/menu-3d/internal/handler"
	"github.com/erfan-mirasadi/menu-3d/internal/middleware"
	"github.com/erfan-mirasadi/menu-3d/internal/model"
	"github.com/erfan-mirasadi/menu-3d/internal/service"
)

// Deps is everything the routes need.
type Deps struct {
	Auth      *handler.AuthHandler
	Ledger    *handler.LedgerHandler
	Stream    *handler.StreamHandler
	JWTSecret string
	RateLimit config.RateLimitConfig
	Redis     *redis.Client // nil disables rate limiting
}

var (
	staff    = []model.Role{model.RoleWaiter, model.RoleCashier, model.RoleKitchen, model.RoleAdmin}
	ordering = []model.Role{model.RoleWaiter, model.RoleCashier, model.RoleAdmin}
	money    = []model.Role{model.RoleCashier, model.RoleAdmin}
	tableful = []model.Role{model.RoleGuest, model.RoleWaiter, model.RoleCashier, model.RoleAdmin}
)

// RegisterRoutes registers unauthenticated routes: the health probe and
// the guest token a table QR code opens.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	limited := d.RateLimit
	limited.KeyStrategy = "ip_route"
	e.POST("/v1/tables/:id/guest-token", d.Auth.GuestToken, middleware.NewTokenBucket(limited, d.Redis))
}

// RegisterLedger registers the authenticated /v1 API. Route gates are
// coarse; the service checks the actor's rights on each row.
func RegisterLedger(e *echo.Echo, d Deps) {
	g := e.Group("/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
	)
	h := d.Ledger

	g.GET("/me", d.Auth.Me)

	g.POST("/sessions", h.OpenTable, middleware.RequireRole(ordering...))
	g.GET("/sessions/:id", h.GetSession)
	g.POST("/sessions/:id/close", h.CloseTable, middleware.RequireRole(ordering...))
	g.PUT("/sessions/:id/note", h.SetNote, middleware.RequireRole(staff...))
	g.GET("/sessions/:id/activity", h.Activity, middleware.RequireRole(staff...))
	g.POST("/sessions/:id/requests", h.RequestService)
	g.POST("/requests/:id/resolve", h.ResolveRequest, middleware.RequireRole(staff...))

	g.POST("/tables/:id/items", h.AddItemAtTable, middleware.RequireRole(tableful...))
	g.POST("/sessions/:id/items", h.AddItem, middleware.RequireRole(tableful...))
	g.GET("/sessions/:id/items", h.ListItems)
	g.POST("/sessions/:id/confirm", h.ConfirmOrder, middleware.RequireRole(ordering...))
	g.POST("/sessions/:id/edit", h.ApplyEdit, middleware.RequireRole(ordering...))
	g.PATCH("/items/:id", h.UpdateQuantity, middleware.RequireRole(tableful...))
	g.DELETE("/items/:id", h.DeleteItem, middleware.RequireRole(tableful...))
	g.POST("/items/:id/submit", h.Step((*service.Service).SubmitDraft), middleware.RequireRole(tableful...))
	g.POST("/items/:id/cancel", h.Step((*service.Service).CancelItem), middleware.RequireRole(tableful...))
	g.POST("/items/:id/start", h.Step((*service.Service).StartPreparing), middleware.RequireRole(staff...))
	g.POST("/items/:id/ready", h.Step((*service.Service).MarkReady), middleware.RequireRole(staff...))
	g.POST("/items/:id/undo-ready", h.Step((*service.Service).UndoReady), middleware.RequireRole(staff...))
	g.POST("/items/:id/serve", h.Step((*service.Service).Serve), middleware.RequireRole(staff...))
	g.POST("/items/:id/void", h.VoidItem, middleware.RequireRole(ordering...))
	g.POST("/items/:id/void-partial", h.VoidPartial, middleware.RequireRole(ordering...))

	g.GET("/sessions/:id/bill", h.GetBill)
	g.GET("/bills/:id/total", h.BillTotal)
	g.POST("/sessions/:id/bill/adjustments", h.AddAdjustment, middleware.RequireRole(money...))
	g.POST("/sessions/:id/bill/quote", h.Quote)
	g.POST("/sessions/:id/payments", h.ProcessPayment, middleware.RequireRole(ordering...))

	g.GET("/restaurants/:id/snapshot", d.Stream.Snapshot)
	g.GET("/restaurants/:id/stream", d.Stream.Stream)
}
