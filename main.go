package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"jobpilot/config"
	"jobpilot/controllers"
	"jobpilot/database"
	"jobpilot/middleware"
	"jobpilot/models"
	"jobpilot/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.GetAppConfig()
	heuristics := config.LoadHeuristics(cfg.HeuristicsPath)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer db.Close()
	if err := database.InitSchema(db); err != nil {
		log.Fatalf("Schema initialization failed: %v", err)
	}

	// Models
	userModel := models.NewUserModel(db)
	profileModel := models.NewProfileModel(db)
	jobModel := models.NewJobModel(db)
	appModel := models.NewApplicationModel(db)

	// Engine services
	retry := services.NewRetryPolicy(cfg.Automation.MaxAttempts, cfg.Automation.BaseDelay)
	sessions := services.NewSessionService(cfg.Automation, retry)

	s3Service, err := services.NewS3Service()
	if err != nil {
		log.Printf("⚠️ S3 disabled: %v (debug artifacts stay local)", err)
		s3Service = nil
	}
	artifacts := services.NewArtifactService(cfg.Automation.DebugDir, s3Service)
	resolver := services.NewResolverService(heuristics, artifacts)
	sentinel := services.NewSentinelService(heuristics.RateLimitPhrases, cfg.Automation.CooldownMinutes)
	listings := services.NewListingService(sessions, resolver, sentinel)
	details := services.NewDetailService(sessions, sentinel)
	matcher := services.NewMatcherService(heuristics)
	applications := services.NewApplicationService(cfg.Automation, heuristics, sessions, resolver, sentinel)
	notifier := services.NewNotifierService(cfg.Notify)
	jwtService := services.NewJWTService(cfg.JWTSecret)

	runner := services.NewRunnerService(
		cfg.Automation, sessions, listings, details, matcher, applications, notifier,
		userModel, profileModel, jobModel, appModel,
	)

	// Controllers
	authController := controllers.NewAuthController(userModel, jwtService)
	profileController := controllers.NewProfileController(profileModel)
	jobController := controllers.NewJobController(jobModel, appModel)
	runController := controllers.NewRunController(runner)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(cors.Default())
	r.Use(middleware.MaxRequestSize(10 << 20))

	limiters := middleware.CreateRateLimiters()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	auth := r.Group("/api/auth", limiters["auth"].Limit(), middleware.ValidateJSON())
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
	}

	api := r.Group("/api", limiters["general"].Limit(), middleware.ValidateJSON(), middleware.Auth(jwtService))
	{
		api.GET("/profile", profileController.GetProfile)
		api.PUT("/profile", profileController.UpdateProfile)

		api.GET("/jobs", jobController.ListJobs)
		api.GET("/jobs/:id", jobController.GetJob)
		api.GET("/applications", jobController.ListApplications)
		api.GET("/platforms", jobController.GetSupportedPlatforms)

		api.POST("/runs", limiters["runs"].Limit(), runController.StartRun)
		api.GET("/runs/:id", runController.GetRun)
		api.DELETE("/runs/:id", runController.CancelRun)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("=== jobpilot API listening on :%s ===", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down: canceling active runs")
	runner.CancelAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Forced shutdown: %v", err)
	}
	log.Println("✓ Server stopped")
}
