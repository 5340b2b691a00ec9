package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/response"
)

// SelfAccess lets a user reach /:id routes addressing their own user id.
const SelfAccess = "SELF"

// RBAC enforces role-based access control for routes.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{}, len(allowed))
	for _, a := range allowed {
		if a == SelfAccess {
			allowSelf = true
			continue
		}
		allowedRoles[models.UserRole(a)] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
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

// Role groups used by the router.
var (
	// Managers write reference data and schedules.
	Managers = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin}
	// Exporters may export any timetable; faculty are filtered in the service.
	Exporters = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff, models.RoleFaculty}
)
