package routes

import (
	"papeleria/auth"
	"papeleria/livefeed"
	"papeleria/middleware"
	"papeleria/orders"
	"papeleria/products"
	"papeleria/ratelim"
	"papeleria/users"

	"github.com/julienschmidt/httprouter"
)

type Services struct {
	Auth     *auth.Service
	Users    *users.Handler
	Products *products.Handler
	Orders   *orders.Handler
	Live     *livefeed.Hub
}

func RoutesWrapper(router *httprouter.Router, gate *middleware.Gate, rateLimiter *ratelim.RateLimiter, s Services) {
	router.GET("/health", Index)
	AddAuthRoutes(router, s.Auth, rateLimiter)
	AddUserRoutes(router, s.Users, gate)
	AddProductRoutes(router, s.Products, gate, rateLimiter)
	AddOrderRoutes(router, s.Orders, gate, rateLimiter)
	if s.Live != nil {
		AddLiveRoutes(router, s.Live, gate)
	}
}
