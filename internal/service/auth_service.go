package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/classroom-snapshot-api/internal/models"
	appErrors "github.com/noah-isme/classroom-snapshot-api/pkg/errors"
)

// AuthConfig defines how tenant tokens are signed and checked.
type AuthConfig struct {
	Secret string
	Issuer string
}

// AuthService resolves bearer tokens into tenants. Issuing login tokens is
// the identity provider's job; IssueToken exists for operators and tests.
type AuthService struct {
	config AuthConfig
	now    func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(config AuthConfig) *AuthService {
	return &AuthService{config: config, now: time.Now}
}

// ValidateToken parses and verifies an HS256 token.
func (s *AuthService) ValidateToken(tokenString string) (*models.TenantClaims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.TenantClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.TenantClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if strings.TrimSpace(claims.TeacherID) == "" {
		claims.TeacherID = claims.Subject
	}
	if strings.TrimSpace(claims.TeacherID) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token does not identify a teacher")
	}
	return claims, nil
}

// IssueToken signs a token for tenant valid for ttl.
func (s *AuthService) IssueToken(tenant models.Tenant, name string, ttl time.Duration) (string, error) {
	if tenant.ID == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "teacher id required")
	}
	issuedAt := s.now().UTC()
	claims := models.TenantClaims{
		TeacherID: tenant.ID,
		Email:     tenant.Email,
		Name:      name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenant.ID,
			Issuer:    s.config.Issuer,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
