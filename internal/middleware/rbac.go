package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/sgta/sgta-api/internal/models"
	appErrors "github.com/sgta/sgta-api/pkg/errors"
	"github.com/sgta/sgta-api/pkg/response"
)

// SelfParam lets a role list admit callers whose user id equals the route param.
const SelfParam = "SELF"

// RBAC enforces role-based access control for routes. Passing "SELF:<param>"
// admits callers whose id matches that path parameter.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowedRoles := make(map[models.UserRole]struct{})
	selfParams := make([]string, 0)
	for _, a := range allowed {
		switch {
		case a == SelfParam:
			selfParams = append(selfParams, "id")
		case len(a) > len(SelfParam)+1 && a[:len(SelfParam)+1] == SelfParam+":":
			selfParams = append(selfParams, a[len(SelfParam)+1:])
		default:
			allowedRoles[models.UserRole(a)] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		claims, ok := CurrentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		for _, param := range selfParams {
			if target := c.Param(param); target != "" && target == claims.UserID {
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
