package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/middleware"
	"github.com/charlesng35/gatekeep/internal/services"
	"github.com/charlesng35/gatekeep/pkg/response"
)

type RoleHandler struct {
	service *services.RoleService
}

func NewRoleHandler(service *services.RoleService) *RoleHandler {
	return &RoleHandler{service: service}
}

type setPermissionsRequest struct {
	PermissionIDs []string `json:"permissionIds"`
}

// POST /api/roles
func (h *RoleHandler) Create(c *gin.Context) {
	var input services.CreateRoleInput
	if !bindJSON(c, &input) {
		return
	}

	role, err := h.service.Create(requestContext(c), middleware.UserID(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusCreated, "Role created", role)
}

// GET /api/roles
func (h *RoleHandler) List(c *gin.Context) {
	filter := services.RoleFilter{
		Name:      strings.TrimSpace(c.Query("name")),
		CreatedBy: strings.TrimSpace(c.Query("createdBy")),
	}

	page, err := h.service.Query(requestContext(c), filter, queryOptions(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, page)
}

// GET /api/roles/:id
func (h *RoleHandler) Get(c *gin.Context) {
	role, err := h.service.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// PUT /api/roles/:id
func (h *RoleHandler) Update(c *gin.Context) {
	var input services.UpdateRoleInput
	if !bindJSON(c, &input) {
		return
	}

	role, err := h.service.Update(requestContext(c), middleware.UserID(c), c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Role updated", role)
}

// PUT /api/roles/:id/permissions
func (h *RoleHandler) SetPermissions(c *gin.Context) {
	var req setPermissionsRequest
	if !bindJSON(c, &req) {
		return
	}

	role, err := h.service.SetPermissions(requestContext(c), middleware.UserID(c), c.Param("id"), req.PermissionIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Role permissions updated", role)
}

// DELETE /api/roles/:id
func (h *RoleHandler) Delete(c *gin.Context) {
	role, err := h.service.Delete(requestContext(c), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Role deleted", role)
}
