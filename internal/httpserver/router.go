package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"ventureops/internal/handler"
	"ventureops/pkg/otel"
)

// Pinger reports whether a dependency is ready to serve.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BrokerStatus reports the publisher connection state.
type BrokerStatus interface {
	IsConnected() bool
}

// Deps collects everything the router mounts. Admin, Idempotency and Broker
// are optional.
type Deps struct {
	Auth          *handler.AuthHandler
	Tasks         *handler.TaskHandler
	Analytics     *handler.AnalyticsHandler
	Users         *handler.UserHandler
	Ventures      *handler.VentureHandler
	Leaves        *handler.LeaveHandler
	Announcements *handler.AnnouncementHandler
	Admin         *handler.AdminHandler

	Authenticator Authenticator
	Idempotency   IdempotencyClaimer
	Store         Pinger
	Broker        BrokerStatus
	Logger        *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), AccessLogMiddleware(log))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if d.Store != nil {
			if err := d.Store.Ping(ctx); err != nil {
				c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
				return
			}
		}
		if d.Broker != nil && !d.Broker.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	v1 := r.Group("/api/v1")
	v1.POST("/login", d.Auth.Login)

	// Protected
	auth := v1.Group("/")
	auth.Use(AuthMiddleware(d.Authenticator, log))
	{
		auth.GET("/tasks", d.Tasks.List)
		auth.POST("/tasks", IdempotencyMiddleware(d.Idempotency, log), d.Tasks.Create)
		auth.GET("/tasks/:id", d.Tasks.Get)
		auth.PUT("/tasks/:id", d.Tasks.Update)
		auth.POST("/tasks/:id/timer/start", d.Tasks.StartTimer)
		auth.POST("/tasks/:id/timer/stop", d.Tasks.StopTimer)
		auth.GET("/tasks/:id/time-logs", d.Tasks.TimeLogs)
		auth.GET("/tasks/:id/activity", d.Tasks.Activity)

		auth.GET("/analytics/dashboard", d.Analytics.Dashboard)

		auth.GET("/users", d.Users.List)
		auth.POST("/users", d.Users.Create)
		auth.GET("/users/me", d.Users.Me)
		auth.GET("/users/:id", d.Users.Get)
		auth.PUT("/users/:id", d.Users.Update)

		auth.GET("/ventures", d.Ventures.List)
		auth.POST("/ventures", d.Ventures.Create)
		auth.GET("/ventures/:id", d.Ventures.Get)
		auth.PUT("/ventures/:id", d.Ventures.Update)

		auth.GET("/leaves", d.Leaves.List)
		auth.POST("/leaves", d.Leaves.Apply)
		auth.GET("/leaves/holidays", d.Leaves.Holidays)
		auth.POST("/leaves/holidays", d.Leaves.DeclareHoliday)
		auth.PUT("/leaves/:id/status", d.Leaves.Review)

		auth.GET("/announcements", d.Announcements.List)
		auth.POST("/announcements", d.Announcements.Create)
		auth.POST("/announcements/:id/acknowledge", d.Announcements.Acknowledge)
	}

	if d.Admin != nil {
		admin := r.Group("/admin")
		admin.Use(AuthMiddleware(d.Authenticator, log))
		admin.POST("/outbox/replay", d.Admin.ReplayOutboxEvent)
		admin.POST("/outbox/replay-failed", d.Admin.ReplayFailedEvents)
	}

	return r
}
