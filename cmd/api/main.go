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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"visitlog/internal/analytics"
	"visitlog/internal/auth"
	"visitlog/internal/config"
	"visitlog/internal/httpmiddleware"
	"visitlog/internal/recognition"
	"visitlog/internal/report"
	"visitlog/internal/store"
	"visitlog/internal/visitor"
)

var visitorOps = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "visitlog_visitor_operations_total",
	Help: "Visitor lifecycle operations by outcome.",
}, []string{"op", "outcome"})

func main() {
	cfg := config.Load()

	// Set Gin mode based on environment
	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(context.Background()); err != nil {
		return fmt.Errorf("schema setup failed: %w", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	recognizer := recognition.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OCRTimeout)
	if cfg.OpenAIAPIKey == "" {
		log.Println("OCR not configured (OPENAI_API_KEY not set); image captures will be rejected")
	}

	repo := visitor.NewPostgresRepository(db.Client)
	svc := visitor.NewService(repo, recognizer, cfg.OCRBestEffort)
	users := auth.NewUserRepository(db.Client)

	r := gin.New()

	// Recovery middleware
	r.Use(gin.Recovery())

	// Custom logger
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	// CORS middleware
	r.Use(corsMiddleware())

	// Security headers
	r.Use(securityHeaders())

	// Rate limiting
	r.Use(httpmiddleware.NewRedisWindow(redisClient, cfg.RateLimitPerMin).GinMiddleware())

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

	registerAuthRoutes(r, cfg, users)

	api := r.Group("/api", auth.SessionAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	api.GET("/visitors", func(c *gin.Context) {
		start, end, err := parseDateRange(c.Query("start"), c.Query("end"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		visitors, err := svc.List(c.Request.Context(), start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch visitors"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"visitors": visitors})
	})

	// Single entry point: creates when no id is supplied, updates otherwise.
	api.POST("/visitors", func(c *gin.Context) {
		var payload visitor.SavePayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		op := "create"
		if payload.ID != "" {
			op = "update"
		}

		rec, err := svc.Save(c.Request.Context(), payload)
		if err != nil {
			visitorOps.WithLabelValues(op, "error").Inc()
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		visitorOps.WithLabelValues(op, "ok").Inc()

		status := http.StatusOK
		if op == "create" {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"message": "visitor saved", "visitor": rec})
	})

	api.POST("/visitors/:id/checkout", func(c *gin.Context) {
		rec, err := svc.Checkout(c.Request.Context(), c.Param("id"))
		if err != nil {
			visitorOps.WithLabelValues("checkout", "error").Inc()
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		visitorOps.WithLabelValues("checkout", "ok").Inc()
		c.JSON(http.StatusOK, gin.H{"message": "visitor checked out", "visitor": rec})
	})

	api.DELETE("/visitors/:id", func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			visitorOps.WithLabelValues("delete", "error").Inc()
			c.JSON(statusForError(err), gin.H{"error": err.Error()})
			return
		}
		visitorOps.WithLabelValues("delete", "ok").Inc()
		c.JSON(http.StatusOK, gin.H{"message": "visitor deleted"})
	})

	api.GET("/analytics", func(c *gin.Context) {
		now := time.Now()
		// The projected range query keeps image blobs out of the fetch;
		// created_at matches checkin at creation and never moves.
		visitors, err := svc.List(c.Request.Context(), analytics.Cutoff(now), time.Time{})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch visitors"})
			return
		}
		windowed := analytics.Window(visitors, now)
		c.JSON(http.StatusOK, analytics.Summarize(windowed))
	})

	api.GET("/reports", func(c *gin.Context) {
		startStr, endStr := c.Query("start"), c.Query("end")
		if startStr == "" || endStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start and end dates are required"})
			return
		}
		start, end, err := parseDateRange(startStr, endStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if start.After(end) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start date cannot be after end date"})
			return
		}

		visitors, err := svc.List(c.Request.Context(), start, end)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch visitors"})
			return
		}
		if len(visitors) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "the selected period has no data"})
			return
		}

		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition",
			fmt.Sprintf(`attachment; filename="visitors_%s_%s.csv"`, startStr, endStr))
		if err := report.Write(c.Writer, visitors); err != nil {
			log.Printf("csv export failed: %v", err)
		}
	})

	// Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func registerAuthRoutes(r *gin.Engine, cfg config.App, users *auth.UserRepository) {
	r.POST("/api/auth/register", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
			Name     string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		existing, err := users.FindByUsername(c.Request.Context(), req.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user already exists"})
			return
		}

		if _, err := users.Create(c.Request.Context(), req.Username, req.Password, req.Name, auth.RoleUser); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "user created"})
	})

	r.POST("/api/auth/login", func(c *gin.Context) {
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		user, err := users.FindByUsername(c.Request.Context(), req.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if user == nil || !auth.VerifyPassword(req.Password, user.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, exp, err := auth.Issue(user.ID, user.Role, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.TokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}

		secure := gin.Mode() == gin.ReleaseMode
		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie("token", token, int(time.Until(exp).Seconds()), "/", "", secure, true)
		c.JSON(http.StatusOK, gin.H{"user": user})
	})

	// One-off bootstrap for the first privileged account, guarded by a shared
	// setup key so it cannot be hit from the open internet by accident.
	r.POST("/api/auth/superuser", func(c *gin.Context) {
		if cfg.SetupKey == "" || c.GetHeader("X-Setup-Key") != cfg.SetupKey {
			c.JSON(http.StatusForbidden, gin.H{"error": "setup key required"})
			return
		}
		var req struct {
			Username string `json:"username" binding:"required"`
			Password string `json:"password" binding:"required"`
			Name     string `json:"name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		existing, err := users.FindByUsername(c.Request.Context(), req.Username)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if existing != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user already exists"})
			return
		}

		if _, err := users.Create(c.Request.Context(), req.Username, req.Password, req.Name, auth.RoleSuperuser); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "superuser created"})
	})
}

// parseDateRange parses optional ISO dates; the end bound is stretched to the
// end of its day so the range is inclusive.
func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if startStr != "" {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", startStr)
		}
	}
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", endStr)
		}
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	return start, end, nil
}

// statusForError maps service error kinds to HTTP statuses.
func statusForError(err error) int {
	var vErr *visitor.ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest
	case errors.Is(err, visitor.ErrInvalidID):
		return http.StatusBadRequest
	case errors.Is(err, visitor.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, visitor.ErrDuplicateActiveVisit),
		errors.Is(err, visitor.ErrAlreadyCheckedOut):
		return http.StatusConflict
	case errors.Is(err, recognition.ErrInvalidDocument),
		errors.Is(err, recognition.ErrIncompleteExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, recognition.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CORS middleware for browser requests
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

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
