package routes

import (
	"fmt"
	"net/http"

	"papeleria/auth"
	"papeleria/livefeed"
	"papeleria/middleware"
	"papeleria/orders"
	"papeleria/products"
	"papeleria/ratelim"
	"papeleria/users"

	"github.com/julienschmidt/httprouter"
)

func Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

func AddAuthRoutes(router *httprouter.Router, svc *auth.Service, rateLimiter *ratelim.RateLimiter) {
	router.POST("/api/auth/register", rateLimiter.Limit(svc.Register))
	router.POST("/api/auth/login", rateLimiter.Limit(svc.Login))
}

func AddUserRoutes(router *httprouter.Router, h *users.Handler, gate *middleware.Gate) {
	router.GET("/api/users/me", gate.Authenticate(h.Me))
}

func AddProductRoutes(router *httprouter.Router, h *products.Handler, gate *middleware.Gate, rateLimiter *ratelim.RateLimiter) {
	router.GET("/api/products", h.ListProducts)
	router.GET("/api/products/:id", h.GetProduct)

	admin := middleware.Chain(rateLimiter.Limit, gate.Authenticate, middleware.RequireAdmin)
	router.POST("/api/admin/products", admin(h.CreateProduct))
	router.PUT("/api/admin/products/:id", admin(h.UpdateProduct))
	router.DELETE("/api/admin/products/:id", admin(h.DeleteProduct))
}

func AddOrderRoutes(router *httprouter.Router, h *orders.Handler, gate *middleware.Gate, rateLimiter *ratelim.RateLimiter) {
	router.POST("/api/orders",
		middleware.Chain(
			rateLimiter.Limit,
			gate.Authenticate,
		)(h.CreateOrder),
	)
	router.GET("/api/orders", gate.Authenticate(h.ListMine))
	router.GET("/api/orders/:id", gate.Authenticate(h.GetOrder))
	router.GET("/api/orders/:id/receipt", gate.Authenticate(h.Receipt))

	admin := middleware.Chain(rateLimiter.Limit, gate.Authenticate, middleware.RequireAdmin)
	router.GET("/api/admin/orders", admin(h.ListAll))
	router.PUT("/api/admin/orders/:id", admin(h.UpdateOrder))
	router.DELETE("/api/admin/orders/:id", admin(h.DeleteOrder))
}

// AddLiveRoutes exposes the order websocket feed. Admins follow every order,
// customers only their own.
func AddLiveRoutes(router *httprouter.Router, hub *livefeed.Hub, gate *middleware.Gate) {
	router.GET("/api/live/orders", gate.Authenticate(hub.Handler()))
}
