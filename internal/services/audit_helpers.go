package services

import (
	"context"

	"go.uber.org/zap"
)

// recordAudit logs the supplied entry while tolerating audit failures.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	bestEffort("audit", "record audit entry", audit.Log(ctx, entry), zap.String("action", entry.Action))
}
