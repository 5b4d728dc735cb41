package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/railzwaylabs/interviewledger/internal/audit/domain"
	"go.uber.org/zap"
)

const (
	headerActorID   = "X-Actor-Id"
	headerActorType = "X-Actor-Type"
)

// ActorFromHeaders records who is calling so audit entries can name them.
// Authentication happens in front of this service.
func (s *Server) ActorFromHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerActorID))
		if id == "" {
			c.Next()
			return
		}

		actorType := auditdomain.ActorTypeOperator
		if strings.EqualFold(strings.TrimSpace(c.GetHeader(headerActorType)), auditdomain.ActorTypeAPI) {
			actorType = auditdomain.ActorTypeAPI
		}
		ctx := auditdomain.WithActor(c.Request.Context(), auditdomain.Actor{Type: actorType, ID: id})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
		}
		if c.Writer.Status() >= 500 {
			s.log.Error("request failed", fields...)
			return
		}
		s.log.Debug("request", fields...)
	}
}
