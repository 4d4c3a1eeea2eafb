package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carshot/backend/internal/config"
	"github.com/carshot/backend/internal/handlers"
	"github.com/carshot/backend/internal/middleware"
	"github.com/carshot/backend/internal/models"
	"github.com/carshot/backend/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg := config.New()

	// Initialize database
	db, err := models.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Run migrations
	if err := models.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Redis
	redisClient := models.InitRedis(cfg)
	defer redisClient.Close()
	kv := services.NewRedisKV(redisClient)

	// Initialize services
	authService := services.NewAuthService(db, redisClient, cfg)
	userService := services.NewUserService(db)
	storageService := services.NewStorageService(cfg)
	s3Service, err := services.NewS3Service(cfg)
	if err != nil {
		log.Fatalf("Failed to init S3 service: %v", err)
	}
	if s3Service == nil {
		log.Println("Object storage not configured, gallery assets stay on local disk")
	}

	angleService := services.NewAngleService()
	stripeProvider := services.NewStripeProvider(cfg, db)
	creditService := services.NewCreditService(kv, services.NewGormLedger(db), stripeProvider, db, cfg)
	galleryService := services.NewGalleryService(db, kv, s3Service, storageService, cfg)
	backgroundService := services.NewBackgroundService(kv, s3Service, storageService, cfg)
	remover := services.NewBackgroundRemover(cfg, storageService)
	sessionService := services.NewSessionService(kv, angleService, creditService, galleryService, remover)

	// Background removal worker: sweeps active sessions for raw captures
	if cfg.RemoveBgWorkerEnabled {
		go func() {
			// Initial delay to let the server start first
			time.Sleep(10 * time.Second)
			for {
				sessionService.ProcessPendingRemovals(context.Background())
				time.Sleep(cfg.RemoveBgPollInterval)
			}
		}()
	}

	// Periodic cleanup of expired refresh tokens
	go func() {
		for {
			if err := authService.CleanupExpiredTokens(); err != nil {
				log.Printf("Refresh token cleanup error: %v", err)
			}
			time.Sleep(1 * time.Hour)
		}
	}()

	// Setup Gin router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimiter(redisClient, cfg))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userService)
	sessionHandler := handlers.NewSessionHandler(sessionService, angleService, storageService, cfg)
	galleryHandler := handlers.NewGalleryHandler(galleryService, storageService, cfg)
	creditHandler := handlers.NewCreditHandler(creditService)
	backgroundHandler := handlers.NewBackgroundHandler(backgroundService, cfg)
	editorHandler := handlers.NewEditorHandler(backgroundService, cfg)
	stripeHandler := handlers.NewStripeHandler(creditService, cfg)

	// Health check outside API group (no /api/v1 prefix)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Setup routes
	api := router.Group("/api/v1")
	{
		// Health check also available under /api/v1/health for compatibility
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		// Catch-all OPTIONS handler for CORS preflight requests
		api.OPTIONS("/*path", func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.POST("/logout", middleware.Auth(authService), authHandler.Logout)
		}

		// User routes
		user := api.Group("/user")
		user.Use(middleware.Auth(authService))
		{
			user.GET("/profile", authHandler.Me)
			user.PUT("/profile", authHandler.UpdateProfile)

			// Angle catalog
			user.GET("/angles", sessionHandler.ListAngles)

			// Photo sessions
			user.POST("/sessions", sessionHandler.CreateSession)
			user.GET("/sessions/active", sessionHandler.GetActiveSession)
			user.GET("/sessions/completed", sessionHandler.ListCompletedSessions)
			user.POST("/sessions/active/photos", sessionHandler.AddPhoto)
			user.PATCH("/sessions/active/photos/:photoId", sessionHandler.UpdatePhoto)
			user.GET("/sessions/active/angles/:angleId/photos", sessionHandler.GetPhotosForAngle)
			user.POST("/sessions/active/backgrounds", sessionHandler.ApplyBackgrounds)
			user.POST("/sessions/active/complete", sessionHandler.CompleteSession)

			// Gallery
			user.GET("/gallery/images", galleryHandler.ListImages)
			user.POST("/gallery/images", galleryHandler.UploadImage)
			user.DELETE("/gallery/images/:imageId", galleryHandler.DeleteImage)
			user.GET("/gallery/images/:imageId/download", galleryHandler.DownloadImage)
			user.GET("/gallery/folders", galleryHandler.ListFolders)
			user.GET("/gallery/folders/:folderId/images", galleryHandler.ListFolderImages)
			user.POST("/gallery/refresh", galleryHandler.RefreshGallery)

			// Credits
			user.GET("/credits", creditHandler.GetCredits)
			user.POST("/credits/use", creditHandler.UseCredit)
			user.POST("/credits/checkout", creditHandler.CreateCheckout)

			// Backgrounds
			user.GET("/backgrounds", backgroundHandler.ListBackgrounds)
			user.POST("/backgrounds", backgroundHandler.AddCustomBackground)
			user.PUT("/backgrounds/selected", backgroundHandler.SelectBackground)

			// Editor
			user.GET("/editor/config", editorHandler.GetConfig)
			user.POST("/editor/simulate", editorHandler.SimulateGesture)
			user.POST("/editor/composite", editorHandler.Composite)
		}

		// Admin routes
		admin := api.Group("/admin")
		admin.Use(middleware.Auth(authService))
		admin.Use(middleware.AdminOnly())
		{
			admin.GET("/users", authHandler.ListUsers)
			admin.PUT("/users/:userId/active", authHandler.SetUserActive)
			admin.POST("/credits/add", creditHandler.AddCredits)
			admin.POST("/credits/skip-check", creditHandler.ToggleSkipCreditCheck)
			admin.POST("/credits/reset", creditHandler.ResetCredits)
		}

		// Payment webhooks
		api.POST("/stripe/webhook", stripeHandler.HandleWebhook)
	}

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  120 * time.Second, // 2 min for large image uploads
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
