package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

const operatorKey = "operator"

// OperatorResolver resolves an operator name from a bearer token. Identity
// management itself lives outside this service; only the boundary check
// happens here.
type OperatorResolver interface {
	ResolveOperator(ctx context.Context, token string) (string, error)
}

// OperatorFromContext returns the authenticated operator, if present.
func OperatorFromContext(c *gin.Context) (string, bool) {
	operator := c.GetString(operatorKey)
	return operator, operator != ""
}

// Auth enforces bearer token authentication.
func Auth(resolver OperatorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		operator, err := resolver.ResolveOperator(c.Request.Context(), token)
		if err != nil || operator == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid bearer token"})
			return
		}

		c.Set(operatorKey, operator)
		c.Next()
	}
}

// RequestLogger logs one line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
