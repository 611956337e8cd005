package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ventureops/internal/repository"
	"ventureops/pkg/apperr"
	"ventureops/pkg/logger"
	"ventureops/pkg/rbac"
)

// PrincipalKey is the gin context key holding the resolved rbac.Principal.
const PrincipalKey = "principal"

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindInvalidState, apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as {"error", "code"[, "details"]}. Unclassified
// errors are logged and hidden behind a generic message.
func RespondError(c *gin.Context, log *zap.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithTrace(c.Request.Context(), log).Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error", "code": "INTERNAL"})
		return
	}
	body := gin.H{"error": err.Error(), "code": string(apperr.KindOf(err))}
	var appErr *apperr.Error
	if errors.As(err, &appErr) && len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(status, body)
}

// Principal returns the principal set by the auth middleware.
func Principal(c *gin.Context) (rbac.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return rbac.Principal{}, false
	}
	p, ok := v.(rbac.Principal)
	return p, ok
}

func mustPrincipal(c *gin.Context, log *zap.Logger) (rbac.Principal, bool) {
	p, ok := Principal(c)
	if !ok {
		RespondError(c, log, apperr.Unauthorized("user not authenticated"))
	}
	return p, ok
}

func pathID(c *gin.Context, log *zap.Logger) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		RespondError(c, log, apperr.Validationf("id", "invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

// parsePage reads skip/limit. Absent values take the repository defaults;
// limit is capped at repository.MaxLimit.
func parsePage(c *gin.Context, log *zap.Logger) (repository.Page, bool) {
	var page repository.Page
	details := map[string]string{}
	if raw := c.Query("skip"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			details["skip"] = "must be a non-negative integer"
		}
		page.Skip = v
	}
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			details["limit"] = "must be a positive integer"
		}
		page.Limit = v
	}
	if len(details) > 0 {
		RespondError(c, log, apperr.Validation("invalid pagination", details))
		return repository.Page{}, false
	}
	return page.Normalize(), true
}

func bindJSON(c *gin.Context, log *zap.Logger, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, log, apperr.Validationf("body", "invalid request body: %v", err))
		return false
	}
	return true
}
