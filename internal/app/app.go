// Package app wires the services and HTTP handlers over a repository.Store.
package app

import (
	"time"

	"go.uber.org/zap"

	"ventureops/internal/handler"
	"ventureops/internal/httpserver"
	"ventureops/internal/repository"
	"ventureops/internal/service/analytics"
	"ventureops/internal/service/announcement"
	"ventureops/internal/service/auth"
	"ventureops/internal/service/leave"
	"ventureops/internal/service/ledger"
	"ventureops/internal/service/task"
	"ventureops/internal/service/user"
	"ventureops/internal/service/venture"
)

type Options struct {
	JWTSecret   string
	JWTTTL      time.Duration
	Idempotency httpserver.IdempotencyClaimer
	Replayer    handler.OutboxReplayer
	Broker      httpserver.BrokerStatus
	// Now overrides the wall clock; tests use it to drive timers.
	Now    func() time.Time
	Logger *zap.Logger
}

// NewDeps builds every service over store and returns the router inputs.
func NewDeps(store repository.Store, opts Options) httpserver.Deps {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	authSvc := auth.NewService(store, opts.JWTSecret, opts.JWTTTL, log).WithClock(now)
	taskSvc := task.NewService(store, store, store, log).WithClock(now)
	l := ledger.New(store, store)
	analyticsSvc := analytics.NewService(store, l).WithClock(now)
	userSvc := user.NewService(store, store, log)
	ventureSvc := venture.NewService(store)
	leaveSvc := leave.NewService(store, log).WithClock(now)
	announcementSvc := announcement.NewService(store).WithClock(now)

	deps := httpserver.Deps{
		Auth:          handler.NewAuthHandler(authSvc, log),
		Tasks:         handler.NewTaskHandler(taskSvc, l, log),
		Analytics:     handler.NewAnalyticsHandler(analyticsSvc, log),
		Users:         handler.NewUserHandler(userSvc, log),
		Ventures:      handler.NewVentureHandler(ventureSvc, log),
		Leaves:        handler.NewLeaveHandler(leaveSvc, log),
		Announcements: handler.NewAnnouncementHandler(announcementSvc, log),
		Authenticator: authSvc,
		Idempotency:   opts.Idempotency,
		Store:         store,
		Broker:        opts.Broker,
		Logger:        log,
	}
	if opts.Replayer != nil {
		deps.Admin = handler.NewAdminHandler(opts.Replayer, log)
	}
	return deps
}
