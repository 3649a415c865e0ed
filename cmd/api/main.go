package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"smartattend/internal/attendance"
	"smartattend/internal/auth"
	"smartattend/internal/config"
	"smartattend/internal/device"
	"smartattend/internal/handler"
	"smartattend/internal/httpmiddleware"
	"smartattend/internal/logging"
	"smartattend/internal/qrtoken"
	"smartattend/internal/queue"
	"smartattend/internal/selfie"
	"smartattend/internal/store"
	"smartattend/internal/user"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	// Requests carrying fields the API does not know are rejected rather
	// than silently trimmed.
	gin.EnableJsonDecoderDisallowUnknownFields()

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

// queuePublisher adapts the queue interface to the handler's notifier.
type queuePublisher struct {
	q queue.Queue
}

func (p queuePublisher) Publish(ctx context.Context, typ string, body []byte) error {
	return p.q.Publish(ctx, queue.Message{Type: typ, Body: body})
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	db, err := store.NewDB(cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "smartattend:marks")
	}

	users := user.NewService(user.NewRepository(db.Client))
	devices := device.NewRegistry(db.Client)
	qrIssuer := qrtoken.NewIssuer(cfg.QRSigningKey, cfg.JWTIssuer, cfg.QRTokenTTL)
	ledger := attendance.NewLedger(db.Client)
	verifier := selfie.New(cfg.SelfieServiceURL, !cfg.SelfieVerify)
	marks := attendance.NewService(users, devices, qrIssuer, ledger, verifier,
		cfg.SelfieVerify, time.Duration(cfg.GraceMinutes)*time.Minute, logger)

	h := handler.New(users, devices, qrIssuer, marks, ledger, queuePublisher{q},
		cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	api := r.Group("/api")
	api.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	authLimiter := httpmiddleware.NewRedisWindow(redisClient.Client, "smartattend:authlimit", cfg.AuthLimitPerMin, time.Minute)
	api.POST("/auth/register", authLimiter.GinMiddleware(), h.Register)
	api.POST("/auth/login", authLimiter.GinMiddleware(), h.Login)

	bearer := auth.Bearer(cfg.JWTSigningKey, cfg.JWTIssuer)
	elevated := auth.RequireRole(user.RoleTeacher, user.RoleAdmin)
	admin := auth.RequireRole(user.RoleAdmin)

	protected := api.Group("", bearer)
	protected.GET("/auth/profile", h.Profile)
	protected.POST("/devices/register", h.RegisterDevice)
	protected.POST("/qr/issue", elevated, h.IssueQR)

	protected.POST("/attendance/mark", h.Mark)
	protected.GET("/attendance", elevated, h.ListAttendance)
	protected.GET("/attendance/today", h.TodayAttendance)
	protected.GET("/attendance/user/:userId", h.UserAttendance)
	protected.GET("/attendance/:id", h.GetAttendance)
	protected.PUT("/attendance/:id", elevated, h.UpdateAttendance)
	protected.DELETE("/attendance/:id", elevated, h.DeleteAttendance)

	protected.GET("/users", admin, h.ListUsers)
	protected.GET("/users/:id", h.GetUser)
	protected.PUT("/users/:id", h.UpdateUser)
	protected.DELETE("/users/:id", admin, h.DeleteUser)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
