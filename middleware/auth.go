package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"shop-svc/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const callerKey = "caller"

type Authenticator interface {
	Authenticate(ctx context.Context, tokenString string) (service.Caller, error)
}

// AuthMiddleware requires a valid bearer token for an existing user and stores the caller in
// the gin context.
func AuthMiddleware(tokens Authenticator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(tokenString) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "No token, authorization denied"})
			return
		}

		caller, err := tokens.Authenticate(c.Request.Context(), strings.TrimSpace(tokenString))
		if err != nil {
			if errors.Is(err, service.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token is not valid"})
				return
			}
			logger.Error("Failed to authenticate request",
				zap.String("trace_id", GetTraceID(c.Request.Context())),
				zap.Error(err),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
			return
		}

		c.Set(callerKey, caller)
		c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CurrentCaller(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "No token, authorization denied"})
			return
		}
		if !caller.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Access denied. Admin only."})
			return
		}
		c.Next()
	}
}

func CurrentCaller(c *gin.Context) (service.Caller, bool) {
	value, exists := c.Get(callerKey)
	if !exists {
		return service.Caller{}, false
	}
	caller, ok := value.(service.Caller)
	return caller, ok
}
