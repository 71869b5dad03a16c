package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/gatekeep/internal/middleware"
	"github.com/charlesng35/gatekeep/internal/services"
	"github.com/charlesng35/gatekeep/pkg/response"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var input services.CreateUserInput
	if !bindBody(c, &input) {
		return
	}
	file, err := readPicture(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.Create(requestContext(c), middleware.UserID(c), input, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusCreated, "User created", result.User)
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	filter, err := userFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, err := h.service.Query(requestContext(c), middleware.UserID(c), filter, queryOptions(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	writePage(c, page)
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(requestContext(c), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PUT /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var input services.UpdateUserInput
	if !bindBody(c, &input) {
		return
	}
	file, err := readPicture(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	user, err := h.service.Update(requestContext(c), middleware.UserID(c), c.Param("id"), input, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "User updated", user)
}

// DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	user, err := h.service.Delete(requestContext(c), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "User deleted", user)
}

func userFilter(c *gin.Context) (services.UserFilter, error) {
	filter := services.UserFilter{
		Name:      strings.TrimSpace(c.Query("name")),
		CreatedBy: strings.TrimSpace(c.Query("createdBy")),
		UpdatedBy: strings.TrimSpace(c.Query("updatedBy")),
	}

	active, err := parseBoolQuery(c, "isActive")
	if err != nil {
		return filter, err
	}
	filter.IsActive = active

	if filter.CreatedAt, err = parseDateRange(c, "createdAt"); err != nil {
		return filter, err
	}
	if filter.UpdatedAt, err = parseDateRange(c, "updatedAt"); err != nil {
		return filter, err
	}
	return filter, nil
}
