package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-snapshot-api/internal/middleware"
	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

func tenantFromContext(c *gin.Context) (models.Tenant, error) {
	claims, ok := middleware.TenantFromContext(c)
	if !ok || claims.TeacherID == "" {
		return models.Tenant{}, appErrors.ErrUnauthorized
	}
	return claims.Tenant(), nil
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be a non-negative integer")
	}
	return value, nil
}
