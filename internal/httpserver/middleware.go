package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ventureops/internal/handler"
	"ventureops/pkg/apperr"
	"ventureops/pkg/logger"
	"ventureops/pkg/metrics"
	"ventureops/pkg/rbac"
	"ventureops/pkg/trace"
	"ventureops/pkg/util"
)

const (
	TraceHeader       = "X-Trace-ID"
	IdempotencyHeader = "Idempotency-Key"
)

// Authenticator turns a bearer token into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (rbac.Principal, error)
}

// IdempotencyClaimer reserves a key; false means it was already taken.
// Release gives the key back after a request that did not succeed.
type IdempotencyClaimer interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// TraceMiddleware reuses the caller's X-Trace-ID or mints one, and echoes it
// on the response.
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if id := c.GetHeader(TraceHeader); id != "" {
			ctx = trace.WithContext(ctx, id)
		}
		ctx, traceID := trace.Ensure(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, traceID)
		c.Next()
	}
}

// AccessLogMiddleware logs each request and records its latency.
func AccessLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), latency)
		logger.WithTrace(c.Request.Context(), log).Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// AuthMiddleware resolves the bearer token against the current user record
// and stores the principal under handler.PrincipalKey.
func AuthMiddleware(auth Authenticator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := util.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			handler.RespondError(c, log, apperr.Unauthorized("missing token"))
			return
		}
		p, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			handler.RespondError(c, log, err)
			return
		}
		c.Set(handler.PrincipalKey, p)
		c.Next()
	}
}

// IdempotencyMiddleware rejects a replayed Idempotency-Key from the same
// principal with 409. Requests without the header pass through, and so do
// requests when the claim store is unreachable. A request that ends with a
// 4xx or 5xx frees its key so the client can retry with the same one.
func IdempotencyMiddleware(claimer IdempotencyClaimer, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || claimer == nil {
			c.Next()
			return
		}
		p, ok := handler.Principal(c)
		if !ok {
			c.Next()
			return
		}
		claimKey := strconv.Itoa(p.ID) + ":" + key
		fresh, err := claimer.Claim(c.Request.Context(), claimKey)
		if err != nil {
			logger.WithTrace(c.Request.Context(), log).Warn("Idempotency check failed, allowing request",
				zap.String("idempotency_key", key),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !fresh {
			handler.RespondError(c, log, apperr.Conflict("request with idempotency key %q already processed", key))
			return
		}
		c.Next()
		if c.Writer.Status() < http.StatusBadRequest {
			return
		}
		if err := claimer.Release(context.WithoutCancel(c.Request.Context()), claimKey); err != nil {
			logger.WithTrace(c.Request.Context(), log).Warn("Failed to release idempotency key",
				zap.String("idempotency_key", key),
				zap.Error(err),
			)
		}
	}
}
