package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/camera-remote/ccb/internal/audit"
	"github.com/camera-remote/ccb/internal/auth"
)

// requestLogger assigns the correlation id and logs each request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Correlation-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationKey, id)
		c.Header("X-Correlation-ID", id)

		start := time.Now()
		c.Next()

		evt := s.deps.Logger.Debug()
		if c.Writer.Status() >= 500 {
			evt = s.deps.Logger.Warn()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("correlationId", id).
			Msg("http request")
	}
}

// auditUser tags the request context with the token subject.
func auditUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := auth.ClaimsFromGin(c); claims != nil {
			c.Request = c.Request.WithContext(audit.WithUser(c.Request.Context(), claims.Subject))
		}
		c.Next()
	}
}
