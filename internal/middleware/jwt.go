package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
	"github.com/noah-isme/classroom-snapshot-api/pkg/logger"
	"github.com/noah-isme/classroom-snapshot-api/pkg/response"
)

// ContextTenantKey is the gin context key storing tenant claims.
const ContextTenantKey = "currentTenant"

type tokenValidator interface {
	ValidateToken(token string) (*models.TenantClaims, error)
}

// JWT protects routes by requiring a valid bearer token naming a teacher.
func JWT(auth tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextTenantKey, claims)
		c.Set(logger.TenantKey, claims.TeacherID)
		c.Next()
	}
}

// TenantFromContext returns the claims stored by JWT.
func TenantFromContext(c *gin.Context) (*models.TenantClaims, bool) {
	value, exists := c.Get(ContextTenantKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.TenantClaims)
	return claims, ok && claims != nil
}
