package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/gatekeep/internal/auth"
	"github.com/charlesng35/gatekeep/internal/handlers/testutil"
	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/internal/permissions"
	"github.com/charlesng35/gatekeep/internal/views"
)

type authPayload struct {
	User   views.UserView   `json:"user"`
	Tokens iauth.AuthTokens `json:"tokens"`
}

func registerPayload(email string) map[string]string {
	return map[string]string{
		"name":     "Jane Doe",
		"email":    email,
		"phone":    "+12015550999",
		"password": testutil.Password,
	}
}

func TestAuthHandler_RegisterAndMe(t *testing.T) {
	env := testutil.NewEnv(t)

	body := registerPayload("Jane@Example.com")
	body["roleId"] = env.RoleID(models.RoleAdmin)
	resp := env.Request(http.MethodPost, "/api/auth/register", body, "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created authPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &created)
	require.Equal(t, "jane@example.com", created.User.Email)
	require.NotEmpty(t, created.User.Username)
	require.NotNil(t, created.User.Role)
	require.Equal(t, models.RoleDefault, created.User.Role.Name, "self-registration must ignore roleId")
	require.NotEmpty(t, created.Tokens.Access.Token)
	require.NotEmpty(t, created.Tokens.Refresh.Token)

	sent, ok := env.Notifier.Last("registered")
	require.True(t, ok)
	require.Equal(t, created.User.ID, sent.UserID)

	resp = env.Request(http.MethodGet, "/api/auth/me", nil, created.Tokens.Access.Token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var me struct {
		ID          string   `json:"id"`
		Permissions []string `json:"permissions"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &me)
	require.Equal(t, created.User.ID, me.ID)
	require.Empty(t, me.Permissions)
}

func TestAuthHandler_RegisterRejectsDuplicateEmail(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodPost, "/api/auth/register", registerPayload("dup@example.com"), "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodPost, "/api/auth/register", registerPayload("dup@example.com"), "")
	require.Equal(t, http.StatusConflict, resp.Code)
	decoded := testutil.DecodeResponse(t, resp)
	require.False(t, decoded.Success)
	require.Equal(t, "DUPLICATE_EMAIL", decoded.Error.Code)
}

func TestAuthHandler_RegisterValidatesPayload(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"name":     "J",
		"email":    "not-an-email",
		"phone":    "123",
		"password": "weak",
	}, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)

	decoded := testutil.DecodeResponse(t, resp)
	require.Equal(t, "VALIDATION_FAILED", decoded.Error.Code)
	require.NotEmpty(t, decoded.Error.Fields)
}

func TestAuthHandler_RegisterWithPicture(t *testing.T) {
	env := testutil.NewEnv(t)

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
	resp := env.RequestMultipart(http.MethodPost, "/api/auth/register", registerPayload("pic@example.com"), png, "")
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created authPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &created)
	require.NotNil(t, created.User.Picture)
	require.Len(t, env.Storage.Uploads, 1)
	require.Equal(t, "image/png", env.Storage.Uploads[0].ContentType)
}

func TestAuthHandler_RegisterRejectsNonImagePicture(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.RequestMultipart(http.MethodPost, "/api/auth/register", registerPayload("txt@example.com"), []byte("plain text, not an image"), "")
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
	require.Empty(t, env.Storage.Uploads)
}

func TestAuthHandler_LoginFailures(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Login User", "")

	resp := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    user.User.Email,
		"password": "Wr0ng!Pass",
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, "INVALID_CREDENTIALS", testutil.DecodeResponse(t, resp).Error.Code)

	resp = env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "missing@example.com",
		"password": testutil.Password,
	}, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthHandler_LoginLocksAfterRepeatedFailures(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Lock User", "")

	for i := 0; i < 5; i++ {
		env.Request(http.MethodPost, "/api/auth/login", map[string]string{
			"email":    user.User.Email,
			"password": "Wr0ng!Pass",
		}, "")
	}

	resp := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    user.User.Email,
		"password": testutil.Password,
	}, "")
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Equal(t, "ACCOUNT_LOCKED", testutil.DecodeResponse(t, resp).Error.Code)
}

func TestAuthHandler_RefreshRotatesAndLogoutRevokes(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Refresh User", "")
	refresh := user.Tokens.Refresh.Token

	resp := env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": refresh}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var rotated iauth.AuthTokens
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &rotated)
	require.NotEqual(t, refresh, rotated.Refresh.Token)

	resp = env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": refresh}, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code, "a rotated refresh token must not be reusable")

	resp = env.Request(http.MethodPost, "/api/auth/logout", map[string]string{"refreshToken": rotated.Refresh.Token}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodPost, "/api/auth/logout", map[string]string{"refreshToken": rotated.Refresh.Token}, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
	require.Equal(t, "TOKEN_NOT_FOUND", testutil.DecodeResponse(t, resp).Error.Code)
}

func TestAuthHandler_RefreshRejectsAccessToken(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Access User", "")

	resp := env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": user.Tokens.Access.Token}, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthHandler_PasswordResetFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Reset User", "")

	resp := env.Request(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": user.User.Email}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	sent, ok := env.Notifier.Last("reset")
	require.True(t, ok)
	require.Equal(t, user.User.ID, sent.UserID)

	const next = "N3w!Passw0rd"
	resp = env.Request(http.MethodPost, "/api/auth/reset-password?token="+sent.Token, map[string]string{"password": next}, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodPost, "/api/auth/reset-password", map[string]string{"token": sent.Token, "password": next}, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code, "reset tokens are single use")

	require.NotEmpty(t, env.Login(user.User.Email, next))

	resp = env.Request(http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": user.Tokens.Refresh.Token}, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code, "a reset revokes outstanding refresh tokens")
}

func TestAuthHandler_ForgotPasswordUnknownEmail(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ghost@example.com"}, "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAuthHandler_EmailVerificationFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Verify User", "")

	resp := env.Request(http.MethodPost, "/api/auth/send-verification-email", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.Request(http.MethodPost, "/api/auth/send-verification-email", nil, user.Tokens.Access.Token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	sent, ok := env.Notifier.Last("verify")
	require.True(t, ok)

	resp = env.Request(http.MethodPost, "/api/auth/verify-email?token="+sent.Token, nil, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var verified views.UserView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &verified)
	require.True(t, verified.EmailVerified)

	resp = env.Request(http.MethodPost, "/api/auth/send-verification-email", nil, user.Tokens.Access.Token)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAuthHandler_VerifyEmailRequiresToken(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodPost, "/api/auth/verify-email", nil, "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.Equal(t, "VALIDATION_FAILED", testutil.DecodeResponse(t, resp).Error.Code)
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	env := testutil.NewEnv(t)
	user := env.CreateUser("Change User", "")
	token := user.Tokens.Access.Token

	resp := env.Request(http.MethodPost, "/api/auth/change-password", map[string]string{
		"currentPassword": "Wr0ng!Pass",
		"newPassword":     "N3w!Passw0rd",
	}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = env.Request(http.MethodPost, "/api/auth/change-password", map[string]string{
		"currentPassword": testutil.Password,
		"newPassword":     "N3w!Passw0rd",
	}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	require.NotEmpty(t, env.Login(user.User.Email, "N3w!Passw0rd"))
}

func TestAuthHandler_MeListsRolePermissions(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateAdmin()

	resp := env.Request(http.MethodGet, "/api/auth/me", nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var me struct {
		Permissions []string `json:"permissions"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &me)
	require.Contains(t, me.Permissions, permissions.Name(permissions.EntityUser, permissions.ActionCreate))
	require.Contains(t, me.Permissions, permissions.Name(permissions.EntityAudit, permissions.ActionView))
}

func TestAuthHandler_RejectsMissingOrMalformedToken(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/api/auth/me", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = env.Request(http.MethodGet, "/api/auth/me", nil, "garbage")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}
