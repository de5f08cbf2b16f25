package middleware

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// SubjectKey is the context key for the token subject
const SubjectKey contextKey = "subject"

// TokenValidator validates a raw bearer token and returns its claims
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (interface{}, error)
}

// AuthMiddleware provides JWT validation middleware
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware creates a new AuthMiddleware with Auth0 configuration
func NewAuthMiddleware(domain, audience string) (*AuthMiddleware, error) {
	issuerURL, err := url.Parse("https://" + domain + "/")
	if err != nil {
		return nil, err
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{audience},
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}

	return NewAuthMiddlewareWithValidator(jwtValidator), nil
}

// NewAuthMiddlewareWithValidator creates an AuthMiddleware around any validator
func NewAuthMiddlewareWithValidator(v TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: v}
}

// Authenticate returns an Echo middleware that requires a valid bearer token
func (m *AuthMiddleware) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return unauthorizedError(c, "missing authorization header")
			}

			// Check Bearer prefix
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				return unauthorizedError(c, "invalid authorization header format")
			}

			claims, err := m.validator.ValidateToken(c.Request().Context(), parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("Token validation failed")
				return unauthorizedError(c, "invalid token")
			}

			validatedClaims, ok := claims.(*validator.ValidatedClaims)
			if !ok {
				return unauthorizedError(c, "invalid claims")
			}

			ctx := context.WithValue(c.Request().Context(), SubjectKey, validatedClaims.RegisteredClaims.Subject)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// GetSubject extracts the token subject from the context
func GetSubject(c echo.Context) string {
	if sub, ok := c.Request().Context().Value(SubjectKey).(string); ok {
		return sub
	}
	return ""
}
