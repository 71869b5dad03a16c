package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/auditctx"
)

// requestContext returns the request context. Public routes have no authenticated actor, so the
// caller's address and user agent are attached for the audit trail.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}

	ctx := c.Request.Context()
	if _, ok := auditctx.FromContext(ctx); ok {
		return ctx
	}
	return auditctx.WithActor(ctx, auditctx.Actor{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
}
