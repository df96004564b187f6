package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/scholarhub/journal-req-api/internal/models"
	appErrors "github.com/scholarhub/journal-req-api/pkg/errors"
	"github.com/scholarhub/journal-req-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes. The caller's
// role must be one of the allowed roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
