package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/services"
	"github.com/charlesng35/gatekeep/pkg/pagination"
	"github.com/charlesng35/gatekeep/pkg/response"
)

type AuditHandler struct {
	svc *services.AuditService
}

func NewAuditHandler(svc *services.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// GET /api/audit
func (h *AuditHandler) List(c *gin.Context) {
	params := pagination.Parse(c)

	filters := services.AuditFilters{
		ActorID:  strings.TrimSpace(c.Query("actorId")),
		Action:   strings.TrimSpace(c.Query("action")),
		Result:   strings.TrimSpace(c.Query("result")),
		Resource: strings.TrimSpace(c.Query("resource")),
	}
	window, err := parseDateRange(c, "createdAt")
	if err != nil {
		response.Error(c, err)
		return
	}
	filters.Since, filters.Until = window.From, window.To

	logs, total, err := h.svc.List(requestContext(c), filters, params.Limit, params.Offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, logs, response.NewMeta(params.Page, params.Limit, total))
}
