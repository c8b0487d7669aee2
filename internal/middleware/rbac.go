package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/leave-decision-api/internal/models"
	appErrors "github.com/noah-isme/leave-decision-api/pkg/errors"
	"github.com/noah-isme/leave-decision-api/pkg/response"
)

// PermissionChecker answers role based permission questions.
type PermissionChecker interface {
	Allowed(roles []string, resource, action string) (bool, error)
}

// RBAC enforces role-based access control for routes. The pseudo role SELF
// admits the user whose id matches the :id path parameter.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	roles := make([]models.UserRole, 0, len(allowed))
	for _, a := range allowed {
		if a == "SELF" {
			allowSelf = true
			continue
		}
		roles = append(roles, models.UserRole(a))
	}

	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if claims.HasRole(roles...) {
			c.Next()
			return
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// RequirePermission admits callers holding a role that grants action on
// resource in the permission matrix.
func RequirePermission(checker PermissionChecker, logger *zap.Logger, resource, action string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		roles := make([]string, len(claims.Roles))
		for i, r := range claims.Roles {
			roles[i] = string(r)
		}
		allowed, err := checker.Allowed(roles, resource, action)
		if err != nil {
			logger.Error("permission check failed", zap.String("resource", resource), zap.String("action", action), zap.Error(err))
			response.Error(c, appErrors.ErrInternal)
			c.Abort()
			return
		}
		if !allowed {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "missing permission "+resource+":"+action))
			c.Abort()
			return
		}
		c.Next()
	}
}
