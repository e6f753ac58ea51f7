// internal/router/router.go
package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/abc-portal/internship-credits/internal/config"
	"github.com/abc-portal/internship-credits/internal/handlers"
	"github.com/abc-portal/internship-credits/internal/middleware"
	"github.com/abc-portal/internship-credits/internal/services"
	"github.com/abc-portal/internship-credits/internal/utils"
	"github.com/abc-portal/internship-credits/internal/workflow"
)

// Initialize wires services, handlers and routes. The returned cleanup waits
// for pending audit writes and releases limiter resources.
func Initialize(db *gorm.DB, cfg *config.Config) (*gin.Engine, func(), error) {
	// Initialize services
	auditService := services.NewAuditService(db)
	notificationService := services.NewNotificationService(db, cfg.I18n.DefaultLocale)
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("storage: %w", err)
	}
	registryClient := services.NewRegistryClient(cfg.Registry)

	authService := services.NewAuthService(db, cfg)
	userService := services.NewUserService(db)
	internshipService := services.NewInternshipService(db, auditService)
	applicationService := services.NewApplicationService(db, notificationService, auditService, storageService)
	creditService := services.NewCreditService(db, registryClient, notificationService, auditService)
	reportService := services.NewReportService(db)
	adminService := services.NewAdminService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, userService)
	internshipHandler := handlers.NewInternshipHandler(internshipService)
	applicationHandler := handlers.NewApplicationHandler(applicationService)
	creditHandler := handlers.NewCreditHandler(creditService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	reportHandler := handlers.NewReportHandler(reportService)
	adminHandler := handlers.NewAdminHandler(adminService, userService, auditService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	general, auth, closeLimiters := buildLimiters(cfg)
	cleanup := func() {
		auditService.Wait()
		closeLimiters()
	}

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	if general != nil {
		r.Use(middleware.RateLimit(general))
	}
	r.Use(middleware.AuditLogMiddleware(auditService))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		status := "healthy"
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			status = "degraded"
		}
		c.JSON(http.StatusOK, gin.H{
			"status": status,
		})
	})

	// Authentication routes
	authGroup := r.Group("/auth")
	if auth != nil {
		authGroup.Use(middleware.RateLimit(auth))
	}
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/me", middleware.AuthRequired(), authHandler.Me)
		authGroup.PUT("/me", middleware.AuthRequired(), authHandler.UpdateProfile)
	}

	api := r.Group("")
	api.Use(middleware.AuthRequired())

	student := middleware.RoleRequired(workflow.RoleStudent)
	company := middleware.RoleRequired(workflow.RoleCompany)
	institute := middleware.RoleRequired(workflow.RoleInstitute)
	reviewer := middleware.RoleRequired(workflow.RoleInstitute, workflow.RoleAdmin)

	// Internships
	internships := api.Group("/internships")
	{
		internships.GET("", internshipHandler.List)
		internships.GET("/:id", internshipHandler.Get)
		internships.POST("", company, internshipHandler.Create)
		internships.PUT("/:id", company, internshipHandler.Update)
		internships.POST("/:id/toggle", company, internshipHandler.Toggle)
	}

	// Application lifecycle
	api.POST("/apply/:internshipId", student, applicationHandler.Apply)
	api.GET("/applications", applicationHandler.List)
	application := api.Group("/application/:id")
	{
		application.GET("", applicationHandler.Get)
		application.POST("/accept", company, applicationHandler.Transition(workflow.EventAccept))
		application.POST("/reject", company, applicationHandler.Transition(workflow.EventReject))
		application.POST("/complete", company, applicationHandler.Transition(workflow.EventComplete))
		application.POST("/approve-credits", institute, applicationHandler.Transition(workflow.EventApprove))
		application.POST("/reject-credits", institute, applicationHandler.Transition(workflow.EventRejectCredits))
		application.POST("/mark-exception", institute, applicationHandler.Transition(workflow.EventMarkException))
		application.POST("/proof", company, applicationHandler.UploadProof)
		application.GET("/proof", applicationHandler.ProofURL)
		application.GET("/proof/file", applicationHandler.ProofFile)
		application.POST("/push-to-registry", institute, creditHandler.PushToRegistry)
	}

	// Credits
	api.GET("/credits", creditHandler.List)
	api.GET("/credits/summary", student, creditHandler.Summary)

	// Notifications
	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.GET("/unread-count", notificationHandler.UnreadCount)
		notifications.POST("/mark-all-read", notificationHandler.MarkAllRead)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	// Reports
	api.GET("/reports/credits", reviewer, reportHandler.Credits)
	api.GET("/audit-logs/mine", middleware.RoleRequired(workflow.RoleCompany, workflow.RoleInstitute), adminHandler.GetAuditLogs)

	// Admin routes (read-only)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.GET("/stats", adminHandler.GetDashboardStats)
		admin.GET("/users", adminHandler.GetUsers)
		admin.GET("/applications", applicationHandler.List)
		admin.GET("/credits", creditHandler.List)
		admin.GET("/reports/credits", reportHandler.Credits)
		admin.GET("/audit-logs", adminHandler.GetAuditLogs)
	}

	return r, cleanup, nil
}

// buildLimiters returns the general and auth limiters, or nils when rate
// limiting is disabled. Redis backs both when configured.
func buildLimiters(cfg *config.Config) (middleware.Limiter, middleware.Limiter, func()) {
	if !cfg.RateLimit.Enabled {
		return nil, nil, func() {}
	}

	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		general := middleware.NewRedisLimiter(client, "general", cfg.RateLimit.RequestsPerMin, time.Minute)
		auth := middleware.NewRedisLimiter(client, "auth", cfg.RateLimit.AuthPerMin, time.Minute)
		return general, auth, func() { _ = client.Close() }
	}

	general := middleware.PerMinute(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.Burst)
	auth := middleware.PerMinute(cfg.RateLimit.AuthPerMin, cfg.RateLimit.AuthPerMin)
	return general, auth, func() {
		general.Close()
		auth.Close()
	}
}
