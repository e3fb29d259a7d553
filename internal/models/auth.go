package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TenantClaims is the bearer token payload identifying the teacher (tenant).
type TenantClaims struct {
	TeacherID string `json:"teacher_id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Tenant is the resolved identity handed to services.
type Tenant struct {
	ID    string
	Email string
}

// Pagination describes a page of results.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Tenant returns the identity carried by the claims.
func (c *TenantClaims) Tenant() Tenant {
	return Tenant{ID: c.TeacherID, Email: c.Email}
}
