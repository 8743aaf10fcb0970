package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"classtrack/internal/attendance"
	"classtrack/internal/auth"
	"classtrack/internal/config"
	"classtrack/internal/httpmiddleware"
	"classtrack/internal/metrics"
	"classtrack/internal/queue"
	"classtrack/internal/roster"
	"classtrack/internal/scan"
	"classtrack/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	loc := cfg.Location()

	var db *store.DB
	var docs store.Documents
	if cfg.StoreBackend == "memory" {
		docs = store.NewMemoryDocuments()
		log.Println("using in-memory document store")
	} else {
		var err error
		db, err = store.NewDB(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		docs = store.NewPostgresDocuments(db.Client)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	var limiter httpmiddleware.Limiter
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
		limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "classtrack:records")
		limiter = httpmiddleware.NewRedisRateLimiter(redisClient.Client, cfg.RateLimitPerMin)
	}

	notifier := auth.NewNotifier()
	accounts := auth.NewAccounts(docs, notifier)
	ledgers := attendance.NewManager(docs, loc, nil)
	unwatch := ledgers.Watch(notifier)
	defer unwatch()
	guard := roster.NewGuard(docs)
	students := roster.NewService(docs)
	scans := scan.NewRegistry(guard, ledgers)

	ctx := context.Background()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.RateLimit(limiter))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db == nil || db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/register", func(c *gin.Context) {
		var req struct {
			FirstName  string `json:"firstName" binding:"required"`
			MiddleName string `json:"middleName"`
			LastName   string `json:"lastName" binding:"required"`
			Email      string `json:"email" binding:"required,email"`
			Password   string `json:"password" binding:"required,min=6"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profile, err := accounts.Register(c.Request.Context(), req.FirstName, req.MiddleName, req.LastName, req.Email, req.Password)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, auth.ErrEmailTaken) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"profile": profile})
	})

	r.POST("/v1/auth/login", func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		profile, err := accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed, try again"})
			return
		}
		token, exp, err := auth.Issue(profile.UID, profile.Email, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"access_token": token,
			"expires_at":   exp.Unix(),
			"profile":      profile,
		})
	})

	authGroup := r.Group("/v1", auth.TeacherAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/auth/logout", func(c *gin.Context) {
		claims := c.MustGet(auth.ClaimsKey).(auth.Claims)
		notifier.SignedOut(auth.Session{UserID: claims.Subject, Email: claims.Email})
		c.JSON(http.StatusOK, gin.H{"status": "signed out"})
	})

	authGroup.GET("/profile", func(c *gin.Context) {
		profile, err := accounts.Profile(c.Request.Context(), auth.TeacherID(c))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"profile": profile})
	})

	authGroup.POST("/students", func(c *gin.Context) {
		var req struct {
			Name      string `json:"name" binding:"required"`
			StudentID string `json:"studentId" binding:"required"`
			Section   string `json:"section" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		teacherID := auth.TeacherID(c)
		teacherName := ""
		if profile, err := accounts.Profile(c.Request.Context(), teacherID); err == nil {
			teacherName = profile.FullName
		}
		st, err := students.Add(c.Request.Context(), teacherID, teacherName, req.Name, req.StudentID, req.Section)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"student": st})
	})

	authGroup.GET("/students", func(c *gin.Context) {
		list, err := students.List(c.Request.Context(), auth.TeacherID(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": list})
	})

	authGroup.DELETE("/students/:id", func(c *gin.Context) {
		err := students.Remove(c.Request.Context(), auth.TeacherID(c), c.Param("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
				return
			}
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	// QR payload for a student; the client renders it as a code.
	authGroup.GET("/students/:id/qr", func(c *gin.Context) {
		doc, err := docs.Get(c.Request.Context(), store.CollectionStudents, c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		if doc.String("teacherId") != auth.TeacherID(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "student not in this teacher's roster"})
			return
		}
		payload, err := students.QRPayload(roster.Student{
			Name:      doc.String("name"),
			StudentID: doc.String("studentId"),
			Section:   doc.String("section"),
			TeacherID: doc.String("teacherId"),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"payload": string(payload)})
	})

	authGroup.POST("/scan", func(c *gin.Context) {
		var req struct {
			Payload string `json:"payload" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session := scans.ForTeacher(auth.TeacherID(c))
		pending, err := session.OnScan(c.Request.Context(), []byte(req.Payload))
		if err != nil {
			metrics.ScansTotal.WithLabelValues(scanOutcome(err)).Inc()
			c.JSON(scanStatus(err), gin.H{"error": err.Error()})
			return
		}
		metrics.ScansTotal.WithLabelValues("accepted").Inc()
		c.JSON(http.StatusOK, gin.H{"pending": pending})
	})

	authGroup.GET("/scan", func(c *gin.Context) {
		session := scans.ForTeacher(auth.TeacherID(c))
		pending, ok := session.Pending()
		resp := gin.H{"state": session.State()}
		if ok {
			resp["pending"] = pending
		}
		c.JSON(http.StatusOK, resp)
	})

	authGroup.POST("/scan/override", func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		session := scans.ForTeacher(auth.TeacherID(c))
		if err := session.Override(attendance.Status(req.Status)); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, scan.ErrNoPendingScan) {
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		pending, _ := session.Pending()
		c.JSON(http.StatusOK, gin.H{"pending": pending})
	})

	authGroup.POST("/scan/confirm", func(c *gin.Context) {
		session := scans.ForTeacher(auth.TeacherID(c))
		pending, ok := session.Pending()
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": scan.ErrNoPendingScan.Error()})
			return
		}
		id, err := session.Confirm(c.Request.Context())
		if err != nil {
			// Session stays in awaiting-confirmation; the teacher retries.
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		metrics.RecordsTotal.WithLabelValues(string(pending.Decision.Period), string(pending.Decision.Status)).Inc()
		publishRecord(ctx, q, recordEvent{
			ID:        id,
			TeacherID: auth.TeacherID(c),
			StudentID: pending.Student.StudentID,
			Period:    string(pending.Decision.Period),
			Status:    string(pending.Decision.Status),
		})
		c.JSON(http.StatusCreated, gin.H{"record_id": id, "decision": pending.Decision})
	})

	authGroup.POST("/scan/cancel", func(c *gin.Context) {
		scans.ForTeacher(auth.TeacherID(c)).Cancel()
		c.JSON(http.StatusOK, gin.H{"state": scan.StateIdle})
	})

	authGroup.GET("/period", func(c *gin.Context) {
		ledger := ledgers.ForTeacher(auth.TeacherID(c))
		c.JSON(http.StatusOK, gin.H{"period": ledger.CurrentPeriod()})
	})

	// Manual entry without a scan: mark a student absent, or back present,
	// for the current default period.
	authGroup.POST("/attendance/manual", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"studentId" binding:"required"`
			Status    string `json:"status" binding:"required"`
			Period    string `json:"period"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		status := attendance.Status(req.Status)
		if !attendance.ValidStatus(status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be present, late or absent"})
			return
		}
		teacherID := auth.TeacherID(c)
		ledger := ledgers.ForTeacher(teacherID)

		owned, err := guard.VerifyOwnership(c.Request.Context(), req.StudentID, teacherID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not verify student, try again"})
			return
		}
		if !owned {
			c.JSON(http.StatusForbidden, gin.H{"error": "student not in this teacher's roster"})
			return
		}

		period := attendance.Period(req.Period)
		if period == "" {
			period = ledger.CurrentPeriod()
		} else if period != attendance.PeriodMorning && period != attendance.PeriodAfternoon {
			c.JSON(http.StatusBadRequest, gin.H{"error": "period must be morning or afternoon"})
			return
		}

		id, err := ledger.Record(c.Request.Context(), req.StudentID, period, status)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		metrics.RecordsTotal.WithLabelValues(string(period), string(status)).Inc()
		publishRecord(ctx, q, recordEvent{
			ID:        id,
			TeacherID: teacherID,
			StudentID: req.StudentID,
			Period:    string(period),
			Status:    string(status),
		})
		c.JSON(http.StatusCreated, gin.H{"record_id": id, "period": period, "status": status})
	})

	authGroup.GET("/attendance", func(c *gin.Context) {
		ledger := ledgers.ForTeacher(auth.TeacherID(c))
		day, err := queryDate(c, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"records": ledger.RecordsForDate(day),
			"loading": ledger.Loading(),
		})
	})

	authGroup.GET("/attendance/stats", func(c *gin.Context) {
		ledger := ledgers.ForTeacher(auth.TeacherID(c))
		day, err := queryDate(c, loc)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": ledger.StatsForDate(day)})
	})

	authGroup.POST("/attendance/reload", func(c *gin.Context) {
		ledger := ledgers.ForTeacher(auth.TeacherID(c))
		ledger.LoadAll(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"count": ledger.Len(), "loading": ledger.Loading()})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced shutdown: %v", err)
	}

	log.Println("server exited")
	return nil
}

type recordEvent struct {
	ID        string `json:"id"`
	TeacherID string `json:"teacherId"`
	StudentID string `json:"studentId"`
	Period    string `json:"period"`
	Status    string `json:"status"`
}

// publishRecord fans a committed record out to the summary worker. Queue
// failures are logged, never surfaced: the record is already persisted.
func publishRecord(ctx context.Context, q queue.Queue, evt recordEvent) {
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("marshal record event failed: %v", err)
		return
	}
	if err := q.Publish(ctx, queue.Message{Type: "record", Body: body}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}

// queryDate parses an optional ?date=M/D/YYYY query, defaulting to today.
func queryDate(c *gin.Context, loc *time.Location) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return time.Now().In(loc), nil
	}
	day, err := time.ParseInLocation("1/2/2006", raw, loc)
	if err != nil {
		return time.Time{}, errors.New("date must be M/D/YYYY")
	}
	return day, nil
}

func scanOutcome(err error) string {
	switch {
	case errors.Is(err, roster.ErrUnrecognizedPayload):
		return "rejected"
	case errors.Is(err, scan.ErrAccessDenied):
		return "denied"
	case errors.Is(err, scan.ErrScanInProgress):
		return "latched"
	default:
		return "failed"
	}
}

func scanStatus(err error) int {
	switch {
	case errors.Is(err, roster.ErrUnrecognizedPayload):
		return http.StatusBadRequest
	case errors.Is(err, scan.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, scan.ErrScanInProgress):
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
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

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
