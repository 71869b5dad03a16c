package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/gatekeep/internal/auth"
	"github.com/charlesng35/gatekeep/internal/middleware"
	"github.com/charlesng35/gatekeep/internal/permissions"
	"github.com/charlesng35/gatekeep/internal/services"
	"github.com/charlesng35/gatekeep/internal/views"
	"github.com/charlesng35/gatekeep/pkg/errors"
	"github.com/charlesng35/gatekeep/pkg/response"
)

// AuthHandler manages registration, login and the token-driven account flows.
type AuthHandler struct {
	users    *services.UserService
	tokens   *iauth.TokenService
	resolver *permissions.Resolver
}

func NewAuthHandler(users *services.UserService, tokens *iauth.TokenService, resolver *permissions.Resolver) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, resolver: resolver}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password" validate:"required"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type meResponse struct {
	*views.UserView
	Permissions []string `json:"permissions"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var input services.CreateUserInput
	if !bindBody(c, &input) {
		return
	}
	// Self-registration always lands in the default role.
	input.RoleID = ""

	file, err := readPicture(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.users.Create(requestContext(c), "", input, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusCreated, "Registration successful", result)
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.users.Login(requestContext(c), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Login successful", result)
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	tokens, err := h.tokens.RefreshAuth(requestContext(c), strings.TrimSpace(req.RefreshToken))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tokens)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.tokens.Logout(requestContext(c), strings.TrimSpace(req.RefreshToken)); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Logged out", nil)
}

// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.users.RequestPasswordReset(requestContext(c), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Password reset email sent", nil)
}

// POST /api/auth/reset-password?token=...
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	token := firstNonEmpty(req.Token, c.Query("token"))
	if token == "" {
		response.Error(c, errors.NewValidation("token", "token is required"))
		return
	}

	if err := h.users.ResetPassword(requestContext(c), token, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Password has been reset", nil)
}

// POST /api/auth/verify-email?token=...
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req tokenRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	token := firstNonEmpty(req.Token, c.Query("token"))
	if token == "" {
		response.Error(c, errors.NewValidation("token", "token is required"))
		return
	}

	user, err := h.users.MarkEmailVerified(requestContext(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Email verified", user)
}

// POST /api/auth/send-verification-email
func (h *AuthHandler) SendVerificationEmail(c *gin.Context) {
	if err := h.users.SendVerificationEmail(requestContext(c), middleware.UserID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Verification email sent", nil)
}

// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.users.ChangePassword(requestContext(c), middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMessage(c, http.StatusOK, "Password changed", nil)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.UserID(c)
	ctx := requestContext(c)

	user, err := h.users.Get(ctx, userID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	granted, err := h.resolver.Permissions(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, meResponse{UserView: user, Permissions: granted.Names()})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
