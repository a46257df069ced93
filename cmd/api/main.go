package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pipedesk/pipedesk/config"
	"github.com/pipedesk/pipedesk/pkg/activities"
	"github.com/pipedesk/pipedesk/pkg/api/handlers"
	custommw "github.com/pipedesk/pipedesk/pkg/api/middleware"
	"github.com/pipedesk/pipedesk/pkg/auth"
	"github.com/pipedesk/pipedesk/pkg/cache"
	"github.com/pipedesk/pipedesk/pkg/companies"
	"github.com/pipedesk/pipedesk/pkg/contacts"
	"github.com/pipedesk/pipedesk/pkg/database"
	"github.com/pipedesk/pipedesk/pkg/email"
	"github.com/pipedesk/pipedesk/pkg/expenses"
	"github.com/pipedesk/pipedesk/pkg/export"
	importpkg "github.com/pipedesk/pipedesk/pkg/import"
	"github.com/pipedesk/pipedesk/pkg/jobs"
	"github.com/pipedesk/pipedesk/pkg/leads"
	"github.com/pipedesk/pipedesk/pkg/metrics"
	custommiddleware "github.com/pipedesk/pipedesk/pkg/middleware"
	"github.com/pipedesk/pipedesk/pkg/opportunities"
	"github.com/pipedesk/pipedesk/pkg/settings"
	"github.com/pipedesk/pipedesk/pkg/users"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log.Printf("🔧 Configuration loaded (environment: %s)", cfg.APIEnvironment)

	// Initialize Sentry for error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("⚠️  Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s)", cfg.SentryEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		log.Printf("ℹ️  Sentry disabled (no DSN configured)")
	}

	// Initialize MongoDB
	db, err := database.NewClient(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = db.Close(ctx)
	}()

	{
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.EnsureIndexes(ctx); err != nil {
			cancel()
			log.Fatalf("❌ Failed to ensure indexes: %v", err)
		}
		cancel()
		log.Printf("✅ MongoDB indexes ensured")
	}

	// Initialize Redis cache
	redisClient, err := cache.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	// Initialize Prometheus metrics
	prometheusMetrics := metrics.New()
	log.Printf("✅ Prometheus metrics initialized")

	// Initialize JWT blacklist
	tokenBlacklist := auth.NewTokenBlacklist(redisClient)

	// Initialize email service
	emailService := email.NewService(
		cfg.EmailFrom,
		cfg.EmailFromName,
		cfg.FrontendURL,
		cfg.SendGridAPIKey,
	)
	// Service logs its own initialization status

	// Initialize services
	userService := users.NewService(db, redisClient, prometheusMetrics)
	contactService := contacts.NewService(db)
	companyService := companies.NewService(db)
	opportunityService := opportunities.NewService(db)
	activityService := activities.NewService(db)
	expenseService := expenses.NewService(db)
	leadService := leads.NewService(db)
	settingsService := settings.NewService(db)
	exportService := export.NewService(db, cfg.StorageLocalPath)
	importService := importpkg.NewService(contactService)

	// Initialize cron manager for background sweeps
	cronManager := jobs.NewCronManager(activityService, exportService, log.Default())
	if err := cronManager.SetupJobs(); err != nil {
		log.Fatalf("❌ Failed to setup cron jobs: %v", err)
	}
	cronManager.Start()
	log.Printf("✅ Cron jobs started successfully")

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, cfg, tokenBlacklist, redisClient, emailService, prometheusMetrics)
	contactHandler := handlers.NewContactHandler(contactService, prometheusMetrics)
	companyHandler := handlers.NewCompanyHandler(companyService, prometheusMetrics)
	opportunityHandler := handlers.NewOpportunityHandler(opportunityService, prometheusMetrics)
	activityHandler := handlers.NewActivityHandler(activityService, prometheusMetrics)
	expenseHandler := handlers.NewExpenseHandler(expenseService, prometheusMetrics)
	leadHandler := handlers.NewLeadHandler(leadService, prometheusMetrics)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	exportHandler := handlers.NewExportHandler(exportService, importService, prometheusMetrics)
	adminHandler := handlers.NewAdminHandler(userService, db)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Initialize rate limiters
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitMaxRequests, cfg.RateLimitWindowSeconds)
	authRateLimiter := custommiddleware.NewRateLimiter(10, 60) // login and register share a strict bucket

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[%s] %s - Status: %d", c.Request().Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	// Sentry error tracking middleware (if configured)
	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	// Prometheus metrics middleware
	e.Use(prometheusMetrics.Middleware())

	// CORS with restricted origins
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowCredentials: true,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())

	// Global rate limiting
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health check endpoints (public)
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"name":        "PipeDesk API",
			"version":     "1.0.0",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}
		if _, err := redisClient.Get(ctx, "health_check"); err != nil && err.Error() != "redis: nil" {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"cache":  "down",
			})
		}

		return c.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    "up",
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")

	// Authentication routes (public, strict rate limit on credentials)
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register, authRateLimiter.RateLimitMiddleware())
		authRoutes.POST("/login", authHandler.Login, authRateLimiter.RateLimitMiddleware())
		authRoutes.GET("/me", authHandler.Me, custommw.JWTMiddlewareWithBlacklist(cfg.JWTSecret, tokenBlacklist, userService))
		authRoutes.GET("/logout", authHandler.Logout, custommw.JWTMiddlewareWithBlacklist(cfg.JWTSecret, tokenBlacklist, userService))
		authRoutes.POST("/forgotpassword", authHandler.ForgotPassword)
		authRoutes.PUT("/resetpassword/:token", authHandler.ResetPassword)
	}

	// Protected routes (require JWT with blacklist validation)
	protected := api.Group("")
	protected.Use(custommw.JWTMiddlewareWithBlacklist(cfg.JWTSecret, tokenBlacklist, userService))
	{
		contactsGroup := protected.Group("/contacts")
		{
			contactsGroup.GET("", contactHandler.List)
			contactsGroup.POST("", contactHandler.Create)
			contactsGroup.POST("/import", contactHandler.ImportJSON)
			contactsGroup.GET("/company/:companyId", contactHandler.ByCompany)
			contactsGroup.GET("/:id", contactHandler.Get)
			contactsGroup.PUT("/:id", contactHandler.Update)
			contactsGroup.DELETE("/:id", contactHandler.Delete)
		}

		companiesGroup := protected.Group("/companies")
		{
			companiesGroup.GET("", companyHandler.List)
			companiesGroup.POST("", companyHandler.Create)
			companiesGroup.GET("/stats/overview", companyHandler.Stats)
			companiesGroup.GET("/:id", companyHandler.Get)
			companiesGroup.PUT("/:id", companyHandler.Update)
			companiesGroup.DELETE("/:id", companyHandler.Delete)
		}

		opportunitiesGroup := protected.Group("/opportunities")
		{
			opportunitiesGroup.GET("", opportunityHandler.List)
			opportunitiesGroup.POST("", opportunityHandler.Create)
			opportunitiesGroup.GET("/analytics/pipeline", opportunityHandler.Pipeline)
			opportunitiesGroup.GET("/analytics/forecast", opportunityHandler.Forecast)
			opportunitiesGroup.GET("/company/:id", opportunityHandler.ByCompany)
			opportunitiesGroup.GET("/:id", opportunityHandler.Get)
			opportunitiesGroup.PUT("/:id", opportunityHandler.Update)
			opportunitiesGroup.DELETE("/:id", opportunityHandler.Delete)
		}

		activitiesGroup := protected.Group("/activities")
		{
			activitiesGroup.GET("", activityHandler.List)
			activitiesGroup.POST("", activityHandler.Create)
			activitiesGroup.GET("/upcoming/list", activityHandler.Upcoming)
			activitiesGroup.GET("/overdue/list", activityHandler.Overdue)
			activitiesGroup.GET("/range/date", activityHandler.Range)
			activitiesGroup.GET("/:id", activityHandler.Get)
			activitiesGroup.PUT("/:id", activityHandler.Update)
			activitiesGroup.DELETE("/:id", activityHandler.Delete)
		}

		expensesGroup := protected.Group("/expenses")
		{
			expensesGroup.GET("", expenseHandler.List)
			expensesGroup.POST("", expenseHandler.Create)
			expensesGroup.GET("/analytics/summary", expenseHandler.Summary)
			expensesGroup.GET("/analytics/monthly", expenseHandler.Monthly)
			expensesGroup.GET("/category/:category", expenseHandler.ByCategory)
			expensesGroup.GET("/:id", expenseHandler.Get)
			expensesGroup.PUT("/:id", expenseHandler.Update)
			expensesGroup.DELETE("/:id", expenseHandler.Delete)
		}

		leadsGroup := protected.Group("/leads")
		{
			leadsGroup.GET("", leadHandler.List)
			leadsGroup.POST("", leadHandler.Create)
			leadsGroup.GET("/hot/list", leadHandler.Hot)
			leadsGroup.GET("/analytics/stats", leadHandler.Stats)
			leadsGroup.GET("/analytics/conversion", leadHandler.Conversion)
			leadsGroup.GET("/:id", leadHandler.Get)
			leadsGroup.PUT("/:id", leadHandler.Update)
			leadsGroup.DELETE("/:id", leadHandler.Delete)
			leadsGroup.POST("/:id/convert", leadHandler.Convert)
		}

		settingsGroup := protected.Group("/settings")
		{
			settingsGroup.GET("", settingsHandler.Get)
			settingsGroup.POST("", settingsHandler.Upsert)
			settingsGroup.PUT("", settingsHandler.Upsert)
		}

		// Multipart CSV/XLSX contact import, plus a dry-run variant
		protected.POST("/import", exportHandler.ImportFile)
		protected.POST("/import/validate", exportHandler.ImportValidate)

		exportsGroup := protected.Group("/export")
		{
			exportsGroup.POST("", exportHandler.Create)
			exportsGroup.GET("", exportHandler.List)
			exportsGroup.GET("/:id", exportHandler.Get)
		}

		// Admin routes (require admin role)
		adminGroup := protected.Group("/admin")
		adminGroup.Use(custommiddleware.RequireAdmin())
		{
			adminGroup.GET("/stats", adminHandler.Stats)
			adminGroup.GET("/users", adminHandler.ListUsers)
			adminGroup.GET("/users/:id", adminHandler.GetUser)
			adminGroup.PUT("/users/:id", adminHandler.UpdateUser)
			adminGroup.DELETE("/users/:id", adminHandler.DeleteUser)
		}
	}

	// Download links work from the browser, so the token may come from the
	// query string as well as the Authorization header
	api.GET("/export/:id/download", exportHandler.Download,
		custommw.JWTFromQueryOrHeader(cfg.JWTSecret, tokenBlacklist, userService))

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	log.Printf("🚀 PipeDesk API starting on %s", address)
	log.Printf("🔐 JWT expiration: %d hours", cfg.JWTExpirationHours)
	log.Printf("🛡️  Rate limiting: %d req / %ds window", cfg.RateLimitMaxRequests, cfg.RateLimitWindowSeconds)
	log.Printf("⏰ Cron jobs: hourly (mark overdue activities), daily 3AM (cleanup expired exports)")

	// Graceful shutdown
	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	cronManager.Stop()
	log.Println("✅ Cron jobs stopped")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server gracefully stopped")
}
