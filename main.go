package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papeleria/auth"
	"papeleria/config"
	"papeleria/db"
	"papeleria/globals"
	"papeleria/livefeed"
	"papeleria/middleware"
	"papeleria/mq"
	"papeleria/orders"
	"papeleria/products"
	"papeleria/ratelim"
	"papeleria/rdx"
	"papeleria/routes"
	"papeleria/users"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		globals.Log.Fatal().Err(err).Msg("load config")
	}
	globals.SetLogLevel(cfg.LogLevel)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	if err := db.Connect(startCtx, cfg.MongoURI, cfg.MongoDB); err != nil {
		globals.Log.Fatal().Err(err).Msg("connect mongo")
	}
	if err := db.CreateIndexes(startCtx); err != nil {
		globals.Log.Fatal().Err(err).Msg("create indexes")
	}
	if err := rdx.Connect(startCtx, cfg.RedisAddr); err != nil {
		globals.Log.Fatal().Err(err).Msg("connect redis")
	}
	cancelStart()

	userStore := users.NewMongoStore(db.UserCollection)
	orderStore := orders.NewMongoStore(db.Client, db.OrderCollection, userStore)
	productStore := products.NewCachedStore(products.NewMongoStore(db.ProductCollection), rdx.Cache{})

	orderSvc := orders.NewService(orderStore, mq.NewEmitter(rdx.Conn), cfg.CheckoutMode == config.ModeTransaction)
	gate := middleware.NewGate([]byte(cfg.JWTSecret), userStore)

	rateLimiter := ratelim.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopJanitor := make(chan struct{})
	go rateLimiter.Janitor(time.Minute, stopJanitor)

	hub := livefeed.NewHub()
	go hub.Run()
	relayCtx, stopRelay := context.WithCancel(context.Background())
	go livefeed.Relay(relayCtx, rdx.Conn, hub)

	router := httprouter.New()
	routes.RoutesWrapper(router, gate, rateLimiter, routes.Services{
		Auth:     auth.NewService(userStore, []byte(cfg.JWTSecret), cfg.TokenTTL),
		Users:    users.NewHandler(userStore),
		Products: products.NewHandler(productStore),
		Orders:   orders.NewHandler(orderSvc, orders.NewRedisIdempotency(rdx.Conn)),
		Live:     hub,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		ExposedHeaders:   []string{"Idempotent-Replayed"},
		AllowCredentials: true,
	}).Handler(router)

	handler := middleware.Logging(middleware.SecurityHeaders(middleware.Recover(corsHandler)))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		globals.Log.Info().Msg("stopping live order feed")
		stopRelay()
		hub.Stop()
		close(stopJanitor)
	})

	go func() {
		globals.Log.Info().Str("addr", cfg.Port).Str("checkoutMode", cfg.CheckoutMode).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			globals.Log.Fatal().Err(err).Msg("listen")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	globals.Log.Info().Msg("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		globals.Log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := rdx.Close(); err != nil {
		globals.Log.Warn().Err(err).Msg("close redis")
	}
	if err := db.Disconnect(ctx); err != nil {
		globals.Log.Warn().Err(err).Msg("disconnect mongo")
	}
	globals.Log.Info().Msg("server stopped")
}
