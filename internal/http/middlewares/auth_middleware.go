package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evergogreen/evergogreen/internal/auth"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// RequireAuth reads the raw signed token from the Authorization header.
// The header value IS the token; there is no "Bearer " prefix in this API.
// A missing header is a validation failure (400, field-tagged like the
// body validators report); a present but bad token is 401.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("Authorization")

		if raw == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"success": false,
				"errors": []gin.H{
					{"field": "authorization", "message": "Missing authentication token"},
				},
			})
			return
		}

		claims, err := m.jwt.Verify(raw)

		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Invalid authentication token",
			})
			return
		}

		c.Set(CtxClaims, claims)

		c.Next()
	}
}

// ClaimsFromContext returns the verified identity stashed by RequireAuth.
func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(CtxClaims)

	if !ok {
		return nil, false
	}

	claims, ok := v.(*auth.Claims)

	return claims, ok
}
