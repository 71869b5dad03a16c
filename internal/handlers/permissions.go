package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/middleware"
	"github.com/charlesng35/gatekeep/internal/permissions"
	"github.com/charlesng35/gatekeep/internal/services"
	"github.com/charlesng35/gatekeep/pkg/response"
)

type PermissionHandler struct {
	svc      *services.PermissionService
	resolver *permissions.Resolver
}

func NewPermissionHandler(svc *services.PermissionService, resolver *permissions.Resolver) *PermissionHandler {
	return &PermissionHandler{svc: svc, resolver: resolver}
}

type entityPayload struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

// GET /api/permissions/entities
func (h *PermissionHandler) Entities(c *gin.Context) {
	entities := h.svc.Entities()
	payload := make([]entityPayload, 0, len(entities))
	for _, entity := range entities {
		payload = append(payload, entityPayload{
			Name:        entity.Name,
			Description: entity.Description,
			Actions:     permissions.Actions(),
		})
	}
	response.Success(c, http.StatusOK, payload)
}

// GET /api/permissions/me
func (h *PermissionHandler) Mine(c *gin.Context) {
	granted, err := h.resolver.Permissions(requestContext(c), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, granted.Names())
}

// POST /api/permissions
func (h *PermissionHandler) Create(c *gin.Context) {
	var input services.CreatePermissionInput
	if !bindJSON(c, &input) {
		return
	}

	perm, err := h.svc.Create(requestContext(c), middleware.UserID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusCreated, "Permission created", perm)
}

// GET /api/permissions
func (h *PermissionHandler) List(c *gin.Context) {
	filter := services.PermissionFilter{
		Entity: strings.TrimSpace(c.Query("entity")),
		Name:   strings.TrimSpace(c.Query("name")),
	}
	active, err := parseBoolQuery(c, "isActive")
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.IsActive = active

	page, err := h.svc.Query(requestContext(c), filter, queryOptions(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, page)
}

// GET /api/permissions/:id
func (h *PermissionHandler) Get(c *gin.Context) {
	perm, err := h.svc.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perm)
}

// PUT /api/permissions/:id
func (h *PermissionHandler) Update(c *gin.Context) {
	var input services.UpdatePermissionInput
	if !bindJSON(c, &input) {
		return
	}

	perm, err := h.svc.Update(requestContext(c), middleware.UserID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Permission updated", perm)
}

// DELETE /api/permissions/:id
func (h *PermissionHandler) Delete(c *gin.Context) {
	perm, err := h.svc.Delete(requestContext(c), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Permission deleted", perm)
}
