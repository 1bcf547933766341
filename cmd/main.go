package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"referral-program/internal/auth"
	"referral-program/internal/config"
	"referral-program/internal/database"
	"referral-program/internal/handlers"
	"referral-program/internal/jobs"
	"referral-program/internal/repository"
	"referral-program/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize JWT
	auth.InitJWT(cfg.App.JWTSecret)

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize repository
	repo := repository.NewRepository(database.GetDB())

	// Initialize services
	authService := services.NewAuthService(database.GetDB())
	userService := services.NewUserService(database.GetDB(), repo)
	commissionService := services.NewCommissionService(database.GetDB(), cfg)
	withdrawalService := services.NewWithdrawalService(database.GetDB(), cfg)
	leaderboardService := services.NewLeaderboardService(database.GetDB(), repo, cfg)
	adminService := services.NewAdminService(database.GetDB(), cfg)

	// Seed the admin account if configured
	if err := authService.EnsureAdmin(cfg.App.AdminEmail, cfg.App.AdminPassword); err != nil {
		log.Printf("Warning: failed to seed admin account: %v", err)
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	requestHandler := handlers.NewRequestHandler(commissionService)
	withdrawalHandler := handlers.NewWithdrawalHandler(withdrawalService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	adminHandler := handlers.NewAdminHandler(adminService, commissionService, withdrawalService, userService, leaderboardService)

	// Start leaderboard aggregation job
	leaderboardJob := jobs.NewLeaderboardJob(leaderboardService, cfg)
	leaderboardJob.Start()

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000", // Local development
		"http://localhost:3001",
		"http://localhost:5173", // Vite dev server
		"http://127.0.0.1:3000",
		"http://127.0.0.1:3001",
		"http://127.0.0.1:5173",
	}
	// Add additional frontend URL from environment if provided
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		allowedOrigins = append(allowedOrigins, frontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	// Authenticated /auth/me route
	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", authHandler.GetMe)
	}

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// User endpoints
		userRoutes := api.Group("/user")
		{
			userRoutes.GET("/profile", userHandler.GetProfile)
			userRoutes.GET("/referrals", userHandler.GetReferrals)
			userRoutes.GET("/ledger", userHandler.GetLedger)
		}

		// Activation and upgrade request endpoints
		api.POST("/requests/activation", requestHandler.CreateActivation)
		api.POST("/requests/upgrade", requestHandler.CreateUpgrade)
		api.POST("/requests/upgrade/:id/sponsor-approve", requestHandler.SponsorApproveUpgrade)
		api.GET("/requests/mine", requestHandler.GetMyRequests)

		// Withdrawal endpoints
		api.POST("/withdrawals", withdrawalHandler.CreateWithdrawal)
		api.GET("/withdrawals/mine", withdrawalHandler.GetMyWithdrawals)

		// Leaderboard endpoints
		api.GET("/leaderboard/:period", leaderboardHandler.GetLeaderboard)
	}

	// Admin routes (protected + admin only)
	admin := router.Group("/api/admin")
	admin.Use(auth.AuthMiddleware())
	admin.Use(adminHandler.AdminMiddleware())
	{
		admin.GET("/dashboard", adminHandler.GetDashboard)
		admin.GET("/revenue", adminHandler.GetRevenue)

		// User management
		admin.GET("/users", adminHandler.GetUsers)
		admin.POST("/users/:id/reconcile", adminHandler.ReconcileUser)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)

		// Activation request management
		admin.GET("/requests/activations", adminHandler.ListActivations)
		admin.POST("/requests/activations/:id/approve", adminHandler.ApproveActivation)
		admin.POST("/requests/activations/:id/reject", adminHandler.RejectActivation)

		// Upgrade request management
		admin.GET("/requests/upgrades", adminHandler.ListUpgrades)
		admin.POST("/requests/upgrades/:id/approve", adminHandler.ApproveUpgrade)
		admin.POST("/requests/upgrades/:id/reject", adminHandler.RejectUpgrade)

		// Withdrawal management
		admin.GET("/withdrawals", adminHandler.ListWithdrawals)
		admin.POST("/withdrawals/:id/approve", adminHandler.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", adminHandler.RejectWithdrawal)

		// Leaderboard management
		admin.POST("/leaderboard/recompute", adminHandler.RecomputeLeaderboard)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)
		log.Printf("Register: POST http://localhost:%s/auth/register", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop the aggregation job before closing the server
	leaderboardJob.Stop()

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
