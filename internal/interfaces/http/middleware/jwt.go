package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clinic/terminal/internal/infrastructure/auth"
	"github.com/clinic/terminal/internal/interfaces/http/dto"
)

// JWT context keys
const (
	JWTClaimsKey  = "jwt_claims"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// JWTAuth validates the local session token and stores its claims in
// the gin context. Tokens issued from the credential cache pass the
// same check as online ones.
func JWTAuth(jwtService *auth.JWTService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(AuthHeaderKey)
		if !strings.HasPrefix(header, BearerPrefix) {
			abortUnauthorized(c, "INVALID_TOKEN", "Missing bearer token")
			return
		}
		tokenString := strings.TrimPrefix(header, BearerPrefix)
		if tokenString == "" {
			abortUnauthorized(c, "INVALID_TOKEN", "Missing bearer token")
			return
		}

		claims, err := jwtService.Validate(tokenString)
		if err != nil {
			logger.Warn("token rejected",
				zap.String("path", c.Request.URL.Path),
				zap.Error(err))
			if err == auth.ErrExpiredToken {
				abortUnauthorized(c, "TOKEN_EXPIRED", "Session expired, sign in again")
			} else {
				abortUnauthorized(c, "INVALID_TOKEN", "Invalid session token")
			}
			return
		}

		c.Set(JWTClaimsKey, claims)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponse(code, message))
}

// GetClaims retrieves the session claims stored by JWTAuth.
func GetClaims(c *gin.Context) *auth.Claims {
	if v, exists := c.Get(JWTClaimsKey); exists {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
