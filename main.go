package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"bastaku-campaign-api/cache"
	"bastaku-campaign-api/config"
	"bastaku-campaign-api/database"
	"bastaku-campaign-api/handlers"
	"bastaku-campaign-api/logger"
	"bastaku-campaign-api/middleware"
	"bastaku-campaign-api/queue"
	"bastaku-campaign-api/services/auth"
	"bastaku-campaign-api/services/campaign"
	"bastaku-campaign-api/worker"
)

const jobQueueName = "campaign_jobs"

func connectDatabase(cfg database.DatabaseConfig) (*database.Connection, error) {
	var (
		db  *database.Connection
		err error
	)
	for retries := 0; retries < 5; retries++ {
		db, err = database.NewConnection(cfg)
		if err == nil {
			return db, nil
		}
		retryDelay := time.Duration(retries+1) * time.Second
		logger.Get().Warnw("failed to connect to database",
			"attempt", retries+1, "retry_in", retryDelay.String(), "error", err)
		time.Sleep(retryDelay)
	}
	return nil, err
}

func main() {
	defer logger.Sync()
	log := logger.Get()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	db, err := connectDatabase(cfg.Database)
	if err != nil {
		log.Fatalw("failed to connect to database after retries", "error", err)
	}
	log.Infow("connected to database", "host", cfg.Database.Host)

	jobQueue, err := queue.NewQueue(cfg.Redis.URL, jobQueueName)
	if err != nil {
		log.Fatalw("failed to connect to redis", "error", err)
	}
	log.Infow("connected to redis")
	redisClient := jobQueue.Client()

	campaignCache := cache.NewRedisCampaignCache(redisClient, cfg.Campaign.CacheTTL)

	authService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TokenTTL, db)
	campaignService := campaign.NewService(db, campaignCache, jobQueue, cfg.Campaign.Duration)

	campaignWorker := worker.NewWorker(jobQueue, db, campaignCache, cfg.Campaign.ExpirySweep)
	campaignWorker.Start(cfg.Redis.WorkerConcurrency)
	log.Infow("started campaign worker", "concurrency", cfg.Redis.WorkerConcurrency)

	carts := handlers.NewCookieCartStore(cfg.Session.Secret, cfg.Session.Domain, cfg.Session.MaxAge, cfg.Session.Secure)

	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(db)
	pricingHandler := handlers.NewPricingHandler()
	campaignHandler := handlers.NewCampaignHandler(campaignService)
	cartHandler := handlers.NewCartHandler(db, carts)
	orderHandler := handlers.NewOrderHandler(db, db, carts)
	profileHandler := handlers.NewProfileHandler(db)
	pingRedis := func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	}
	healthHandler := handlers.NewHealthHandler(map[string]handlers.HealthCheck{
		"database": db.Ping,
		"redis":    pingRedis,
	})

	rateLimiter := middleware.NewRateLimiter(redisClient)

	router := mux.NewRouter()
	router.Use(middleware.CORS)
	router.Use(middleware.SecurityHeaders)
	router.Use(middleware.Logging)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(rateLimiter.RateLimitMiddleware())

	api.HandleFunc("/health", healthHandler.Health).Methods("GET")

	api.HandleFunc("/register", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/login", authHandler.Login).Methods("POST", "OPTIONS")

	api.HandleFunc("/products", productHandler.ListProducts).Methods("GET", "OPTIONS")
	api.HandleFunc("/products/{id:[0-9]+}", productHandler.GetProduct).Methods("GET", "OPTIONS")
	api.HandleFunc("/pricing/quote", pricingHandler.Quote).Methods("POST", "OPTIONS")

	api.HandleFunc("/cart", cartHandler.GetCart).Methods("GET", "OPTIONS")
	api.HandleFunc("/cart", cartHandler.AddToCart).Methods("POST", "OPTIONS")
	api.HandleFunc("/cart", cartHandler.UpdateCart).Methods("PUT", "OPTIONS")
	api.HandleFunc("/cart/remove", cartHandler.RemoveFromCart).Methods("POST", "OPTIONS")

	api.HandleFunc("/campaigns", campaignHandler.ListCampaigns).Methods("GET", "OPTIONS")
	api.HandleFunc("/campaigns/{id:[0-9]+}", campaignHandler.GetCampaign).Methods("GET", "OPTIONS")

	// Routes below need a bearer token.
	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware(authService))

	retailOnly := middleware.RequireRetail()
	protected.Handle("/campaigns/start", retailOnly(http.HandlerFunc(campaignHandler.StartCampaign))).Methods("POST", "OPTIONS")
	protected.Handle("/campaigns/{id:[0-9]+}/join", retailOnly(http.HandlerFunc(campaignHandler.JoinCampaign))).Methods("POST", "OPTIONS")
	protected.HandleFunc("/campaigns/{id:[0-9]+}/cancel", campaignHandler.CancelCampaign).Methods("POST", "OPTIONS")
	protected.HandleFunc("/user/campaigns", campaignHandler.UserCampaigns).Methods("GET", "OPTIONS")
	protected.HandleFunc("/user/details", profileHandler.GetProfile).Methods("GET", "OPTIONS")
	protected.HandleFunc("/user/profile", profileHandler.UpdateProfile).Methods("PATCH", "OPTIONS")
	protected.HandleFunc("/orders", orderHandler.Checkout).Methods("POST", "OPTIONS")
	protected.HandleFunc("/orders", orderHandler.ListOrders).Methods("GET", "OPTIONS")

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Infow("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("server forced to shutdown", "error", err)
	}

	// Stop consuming before the stores go away.
	campaignWorker.Stop()

	if err := db.Close(); err != nil {
		log.Warnw("failed to close database", "error", err)
	}
	if err := jobQueue.Close(); err != nil {
		log.Warnw("failed to close redis", "error", err)
	}

	log.Infow("server exited")
}
