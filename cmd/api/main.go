package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"thriftmarket/internal/api"
	"thriftmarket/internal/config"
	"thriftmarket/internal/handler"
	"thriftmarket/internal/payment"
	"thriftmarket/internal/service"
	"thriftmarket/internal/store"

	"github.com/redis/go-redis/v9"
)

type application struct {
	config         *config.Config
	logger         *log.Logger
	redisClient    *redis.Client
	paymentService *service.PaymentService
	server         *http.Server
	shutdownChan   chan struct{}
	reaperDone     chan struct{}
}

func main() {
	logger := log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	redisClient, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Printf("Error closing Redis client: %v", err)
		}
	}()

	redisStore := store.NewRedisStore(redisClient)

	backendClient := api.NewClient(cfg.BackendBaseURL, cfg.HTTPTimeout, logger)
	gatewayClient := api.NewClient(cfg.GatewayBaseURL, cfg.HTTPTimeout, logger)

	authAPI := api.NewAuthAPI(backendClient)
	catalogAPI := api.NewCatalogAPI(backendClient)
	orderAPI := api.NewOrderAPI(backendClient)
	paymentAPI := api.NewPaymentAPI(gatewayClient)
	adminAPI := api.NewAdminAPI(backendClient)

	sessionService := service.NewSessionService(logger, redisStore, authAPI, cfg.SessionTTL)
	backendClient.OnUnauthorized(sessionService.Invalidate)

	cartService := service.NewCartService(logger, redisStore, cfg.SessionTTL)
	checkoutService := service.NewCheckoutService(logger, cartService, orderAPI)

	flowCfg := payment.Config{
		CountdownSeconds: cfg.PaymentCountdownSeconds,
		TickInterval:     time.Second,
		PollInterval:     cfg.PaymentPollInterval,
	}
	paymentService := service.NewPaymentService(logger, paymentAPI, orderAPI, cartService, redisStore, flowCfg, cfg.PaymentSessionTTL)

	// A session that ends takes its live payment flows down with it.
	sessionService.Subscribe(func(ev service.SessionEvent) {
		if ev.Type == service.SessionLoggedOut || ev.Type == service.SessionInvalidated {
			paymentService.TeardownSession(ev.Session.ID)
		}
	})

	adminService := service.NewAdminService(logger, adminAPI, cfg.Pages)

	app := &application{
		config:         cfg,
		logger:         logger,
		redisClient:    redisClient,
		paymentService: paymentService,
		shutdownChan:   make(chan struct{}),
		reaperDone:     make(chan struct{}),
	}

	go app.runPaymentReaper()

	mw := handler.NewMiddleware(logger, sessionService)

	mux := http.NewServeMux()
	mux.Handle("/auth/", mw.WithSession(handler.NewAuthHandler(logger, sessionService, cartService)))
	catalogHandler := handler.NewCatalogHandler(logger, catalogAPI, cfg.Pages.Products)
	mux.Handle("/products", mw.WithSession(catalogHandler))
	mux.Handle("/products/", mw.WithSession(catalogHandler))
	mux.Handle("/cart", mw.WithSession(handler.NewCartHandler(logger, cartService)))
	mux.Handle("/cart/", mw.WithSession(handler.NewCartHandler(logger, cartService)))
	mux.Handle("/checkout", mw.WithSession(handler.NewCheckoutHandler(logger, checkoutService)))
	mux.Handle("/payment/", mw.WithSession(handler.NewPaymentHandler(logger, paymentService)))
	mux.Handle("/admin/", mw.WithSession(mw.RequireAdminArea(handler.NewAdminHandler(logger, adminService, cfg.Pages))))

	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      mux,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     logger,
	}

	app.serve()
}

func (app *application) serve() {
	app.logger.Printf("Starting server on %s", app.server.Addr)

	errChan := make(chan error)
	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		app.logger.Fatalf("Server error: %v", err)
	case sig := <-quit:
		app.logger.Printf("Received signal %s. Shutting down server...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app.logger.Println("Signaling payment reaper to stop...")
	close(app.shutdownChan)
	select {
	case <-app.reaperDone:
		app.logger.Println("Payment reaper stopped.")
	case <-time.After(10 * time.Second):
		app.logger.Println("Payment reaper did not stop in time.")
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Printf("Graceful server shutdown failed: %v", err)
	} else {
		app.logger.Println("Server gracefully stopped.")
	}

	app.logger.Println("Application shut down complete.")
}

// runPaymentReaper periodically expires stale non-terminal payment sessions
// whose flow no longer exists, e.g. after a restart.
func (app *application) runPaymentReaper() {
	defer close(app.reaperDone)

	ticker := time.NewTicker(app.config.PaymentReapInterval)
	defer ticker.Stop()

	app.logger.Printf("Payment reaper started. Will run every %s.", app.config.PaymentReapInterval.String())

	for {
		select {
		case <-ticker.C:
			if err := app.paymentService.ReapStale(context.Background()); err != nil {
				app.logger.Printf("Reaper: Error expiring stale payment sessions: %v", err)
			}
		case <-app.shutdownChan:
			app.logger.Println("Reaper: Received shutdown signal. Stopping...")
			return
		}
	}
}
