package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/riadtaziri/booking-backend/internal/config"
	"github.com/riadtaziri/booking-backend/internal/database"
	"github.com/riadtaziri/booking-backend/internal/handlers"
	"github.com/riadtaziri/booking-backend/internal/metrics"
	"github.com/riadtaziri/booking-backend/internal/middleware"
	"github.com/riadtaziri/booking-backend/internal/services"
	"github.com/riadtaziri/booking-backend/internal/utils"
	"github.com/riadtaziri/booking-backend/pkg/jwt"
	"github.com/riadtaziri/booking-backend/pkg/mailer"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting riad booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Redis is optional
	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			logger.WithError(err).Warn("Redis ping failed, continuing; rate limits fail open until it recovers")
		} else {
			logger.WithField("addr", cfg.Redis.Addr).Info("Redis connection established")
		}
		cancel()
		defer redisClient.Close()
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Repositories
	roomRepo := database.NewRoomRepository(db)
	reservationRepo := database.NewReservationRepository(db)
	settingsRepo := database.NewSettingsRepository(db)
	adminUserRepo := database.NewAdminUserRepository(db)
	notificationRepo := database.NewNotificationRepository(db)
	rateLimitRepo := database.NewRateLimitRepository(db)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	settingsResolver := services.NewSettingsResolver(settingsRepo, logger)
	if redisClient != nil {
		settingsResolver.UseRedisCache(redisClient, cfg.Redis.SettingsCacheTTL)
	}

	engine := services.NewBookingEngine(settingsResolver, roomRepo, reservationRepo, cfg.Booking.Currency, m, logger)
	renderer := services.NewNotificationRenderer(cfg.Email.OperatorEmail, cfg.Booking.PublicSiteURL, cfg.Booking.Currency)
	reservationService := services.NewReservationService(engine, renderer, cfg.Booking.ReferenceAttempts, m, logger)
	roomService := services.NewRoomService(roomRepo, logger)
	exportService := services.NewExportService(roomRepo, reservationRepo)
	adminAuthService := services.NewAdminAuthService(adminUserRepo, jwtService, cfg.Security.BcryptCost, logger)

	// Email gateway
	var emailSender mailer.Mailer
	if cfg.Email.APIKey != "" {
		emailSender = mailer.NewHTTPMailer(mailer.HTTPConfig{
			APIURL:  cfg.Email.APIURL,
			APIKey:  cfg.Email.APIKey,
			From:    fmt.Sprintf("%s <%s>", cfg.Email.FromName, cfg.Email.FromAddress),
			Timeout: cfg.Email.Timeout,
		})
	} else {
		logger.Warn("EMAIL_API_KEY not set, notifications will be logged and not sent")
		emailSender = mailer.NewNoopMailer(logger)
	}
	logger.WithField("mailer", emailSender.GetName()).Info("Email gateway configured")

	dispatcher := services.NewNotificationDispatcher(notificationRepo, emailSender, services.DispatcherConfig{
		BatchSize:   cfg.Notification.BatchSize,
		MaxAttempts: cfg.Notification.MaxAttempts,
		BaseBackoff: cfg.Notification.BaseBackoff,
		RatePerSec:  cfg.Notification.SendRatePerSec,
		Burst:       cfg.Notification.SendBurst,
	}, m, logger)
	reservationService.SetDispatcher(dispatcher)

	// Rate limiting: Redis when configured, otherwise database rows
	rules := map[string]services.RateLimitRule{
		services.RateScopeBooking: {
			Requests: cfg.RateLimit.BookingRequests,
			Window:   time.Duration(cfg.RateLimit.BookingWindowSeconds) * time.Second,
		},
		services.RateScopeQuery: {
			Requests: cfg.RateLimit.QueryRequests,
			Window:   time.Duration(cfg.RateLimit.QueryWindowSeconds) * time.Second,
		},
	}
	var limiter services.RateLimiter
	var limitCleaner services.RateLimitCleaner
	if redisClient != nil {
		limiter = services.NewRedisRateLimiter(redisClient, rules)
		logger.Info("Rate limiting backed by Redis")
	} else {
		dbLimiter := services.NewDBRateLimiter(rateLimitRepo, rules)
		limiter = dbLimiter
		limitCleaner = dbLimiter
		logger.Info("Rate limiting backed by the database")
	}

	// Background work: dispatcher loop and cron jobs
	bgCtx, stopBackground := context.WithCancel(context.Background())
	go dispatcher.Run(bgCtx)

	cronService := services.NewCronService(dispatcher, reservationService, limitCleaner, cfg.Notification.DispatchInterval, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Info("✓ Cron service started")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(engine, reservationService, logger)
	roomHandler := handlers.NewRoomHandler(roomService, logger)
	adminHandler := handlers.NewAdminHandler(reservationService, settingsResolver, exportService, logger)
	adminAuthHandler := handlers.NewAdminAuthHandler(adminAuthService, logger)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Metrics(m))
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	// CORS middleware
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db, redisClient))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/rooms", roomHandler.ListRooms)
		v1.GET("/rooms/:id", roomHandler.GetRoom)

		reservations := v1.Group("/reservations")
		reservations.Use(middleware.OptionalAuth(jwtService))
		{
			queryLimit := middleware.RateLimit(limiter, services.RateScopeQuery, m, logger)
			bookingLimit := middleware.RateLimit(limiter, services.RateScopeBooking, m, logger)

			reservations.POST("/availability", queryLimit, bookingHandler.CheckAvailability)
			reservations.POST("/pricing", queryLimit, bookingHandler.QuotePrice)
			reservations.GET("/reference/:reference", queryLimit, bookingHandler.LookupReservation)
			reservations.POST("", bookingLimit, bookingHandler.CreateReservation)
			reservations.PUT("/:id", middleware.RequireRole(jwt.RoleAdmin), adminHandler.UpdateReservation)
		}

		adminAuth := v1.Group("/admin/auth")
		{
			adminAuth.POST("/login", middleware.RateLimit(limiter, services.RateScopeBooking, m, logger), adminAuthHandler.Login)
			adminAuth.GET("/me", middleware.AuthMiddleware(jwtService), adminAuthHandler.Me)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService), middleware.RequireRole(jwt.RoleAdmin))
		{
			admin.PUT("/rooms/:id/status", roomHandler.UpdateRoomStatus)

			admin.POST("/reservations", bookingHandler.CreateReservation)
			admin.GET("/reservations", adminHandler.ListReservations)
			admin.GET("/reservations/export", adminHandler.ExportReservations)
			admin.GET("/reservations/:id", adminHandler.GetReservation)
			admin.PUT("/reservations/:id", adminHandler.UpdateReservation)
			admin.DELETE("/reservations/:id", adminHandler.DeleteReservation)

			admin.GET("/settings/booking", adminHandler.GetBookingSettings)
			admin.PUT("/settings/booking", adminHandler.UpdateBookingSettings)

			admin.GET("/jobs", func(c *gin.Context) {
				c.JSON(http.StatusOK, cronService.GetJobStatus())
			})
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Stopping background jobs...")
	cronService.Stop()
	stopBackground()

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		device := utils.ParseUserAgent(utils.GetUserAgent(c))
		fields := logrus.Fields{
			"status":      c.Writer.Status(),
			"method":      c.Request.Method,
			"path":        path,
			"query":       query,
			"ip":          utils.GetRealIP(c),
			"latency_ms":  time.Since(start).Milliseconds(),
			"device_type": device.DeviceType,
			"browser":     device.Browser,
			"has_auth":    c.GetHeader("Authorization") != "",
		}

		if user, ok := middleware.GetUserContext(c); ok {
			fields["user_id"] = user.UserID
			fields["roles"] = user.Roles
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		redisStatus := "disabled"
		if redisClient != nil {
			redisStatus = "healthy"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				redisStatus = "degraded"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"redis":     redisStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
