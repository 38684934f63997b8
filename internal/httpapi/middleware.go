package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/baiirun/taskflow/internal/auth"
	"github.com/baiirun/taskflow/internal/model"
)

const claimsKey = "claims"

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		}
		if claims := claimsFrom(c); claims != nil {
			attrs = append(attrs, "user_id", claims.UserID)
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", attrs...)
			return
		}
		logger.Debug("request", attrs...)
	}
}

// authMiddleware requires "Authorization: Bearer <token>" and stores the
// validated claims on the context.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortJSON(c, http.StatusUnauthorized, "Authorization header is required")
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortJSON(c, http.StatusUnauthorized, "Invalid authorization header format. Use: Bearer <token>")
			return
		}

		claims, err := s.tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, auth.ErrExpiredToken) {
				msg = "Token has expired"
			}
			abortJSON(c, http.StatusUnauthorized, msg)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil || model.Role(claims.Role) != model.RoleAdmin {
			abortJSON(c, http.StatusForbidden, "Forbidden")
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// actor returns the acting user id. Only called behind authMiddleware.
func actor(c *gin.Context) string {
	if claims := claimsFrom(c); claims != nil {
		return claims.UserID
	}
	return ""
}

func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
