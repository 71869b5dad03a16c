package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatekeep/internal/handlers/testutil"
	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/internal/views"
)

func TestUserHandler_RequiresPermission(t *testing.T) {
	env := testutil.NewEnv(t)
	member := env.CreateUser("Plain Member", "")

	resp := env.Request(http.MethodGet, "/api/users", nil, member.Tokens.Access.Token)
	require.Equal(t, http.StatusForbidden, resp.Code)
	require.Equal(t, "FORBIDDEN", testutil.DecodeResponse(t, resp).Error.Code)

	resp = env.Request(http.MethodGet, "/api/users", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestUserHandler_CreateAssignsRoleAndCreator(t *testing.T) {
	env := testutil.NewEnv(t)
	admin, token := env.CreateAdmin()

	resp := env.Request(http.MethodPost, "/api/users", map[string]string{
		"name":     "Created User",
		"email":    "created@example.com",
		"phone":    "+12015550888",
		"password": testutil.Password,
		"roleId":   env.RoleID(models.RoleAdmin),
	}, token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var user views.UserView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &user)
	require.Equal(t, models.RoleAdmin, user.Role.Name)
	require.NotNil(t, user.CreatedBy)
	require.Equal(t, admin.User.ID, user.CreatedBy.ID)
}

func TestUserHandler_CreateRejectsUnknownRole(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateAdmin()

	resp := env.Request(http.MethodPost, "/api/users", map[string]string{
		"name":     "Orphan User",
		"email":    "orphan@example.com",
		"phone":    "+12015550777",
		"password": testutil.Password,
		"roleId":   "rol_00000000000000000000000000",
	}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
}

func TestUserHandler_ListFiltersAndPaginates(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateAdmin()
	env.CreateUser("Alice Example", "")
	env.CreateUser("Bob Example", "")
	env.CreateUser("Carol Sample", "")

	resp := env.Request(http.MethodGet, "/api/users?limit=2&page=1&sortBy=name:asc", nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	decoded := testutil.DecodeResponse(t, resp)
	require.NotNil(t, decoded.Meta)
	require.EqualValues(t, 4, decoded.Meta.Total)
	require.Equal(t, 2, decoded.Meta.TotalPages)

	var page []views.UserView
	testutil.DecodeInto(t, decoded.Data, &page)
	require.Len(t, page, 2)
	require.Equal(t, "Admin User", page[0].Name)
	require.Equal(t, "Alice Example", page[1].Name)

	resp = env.Request(http.MethodGet, "/api/users?name=example", nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &page)
	require.Len(t, page, 2)

	resp = env.Request(http.MethodGet, "/api/users?name=nobody", nil, token)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.Request(http.MethodGet, "/api/users?isActive=maybe", nil, token)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestUserHandler_GetUpdateDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	admin, token := env.CreateAdmin()
	member := env.CreateUser("Member User", "")
	path := "/api/users/" + member.User.ID

	resp := env.Request(http.MethodGet, path, nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodPut, path, map[string]any{"name": "Renamed Member", "isActive": false}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var updated views.UserView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &updated)
	require.Equal(t, "Renamed Member", updated.Name)
	require.False(t, updated.IsActive)
	require.NotNil(t, updated.UpdatedBy)
	require.Equal(t, admin.User.ID, updated.UpdatedBy.ID)

	resp = env.Request(http.MethodDelete, path, nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodGet, path, nil, token)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUserHandler_UpdateRejectsTakenEmail(t *testing.T) {
	env := testutil.NewEnv(t)
	admin, token := env.CreateAdmin()
	member := env.CreateUser("Member User", "")

	resp := env.Request(http.MethodPut, "/api/users/"+member.User.ID, map[string]string{"email": admin.User.Email}, token)
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Equal(t, "DUPLICATE_EMAIL", testutil.DecodeResponse(t, resp).Error.Code)
}

func TestUserHandler_UpdateReplacesPicture(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateAdmin()
	member := env.CreateUser("Picture User", "")

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	resp := env.RequestMultipart(http.MethodPut, "/api/users/"+member.User.ID, map[string]string{"name": "Picture Owner"}, png, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var updated views.UserView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &updated)
	require.NotNil(t, updated.Picture)
	require.Empty(t, updated.Picture.FileID, "non-owners only see the shareable link")
	require.Empty(t, updated.Picture.DownloadLink)
	require.Equal(t, "https://drive.example.com/view/file-1", updated.Picture.ShareableLink)
	require.Equal(t, "Picture Owner", updated.Name)
	require.Len(t, env.Storage.Uploads, 1)
}

func TestUserHandler_OwnerSeesFullPicture(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateAdmin()
	member := env.CreateUser("Picture Owner", "")

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	resp := env.RequestMultipart(http.MethodPut, "/api/users/"+member.User.ID, map[string]string{"name": "Picture Owner Two"}, png, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodGet, "/api/auth/me", nil, member.Tokens.Access.Token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var me views.UserView
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &me)
	require.NotNil(t, me.Picture)
	require.Equal(t, "file-1", me.Picture.FileID)
	require.NotEmpty(t, me.Picture.DownloadLink)
}

func TestUserHandler_UnknownUser(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateAdmin()

	resp := env.Request(http.MethodGet, "/api/users/usr_missing", nil, token)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = env.Request(http.MethodDelete, "/api/users/usr_missing", nil, token)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUserHandler_DeactivatedUserLosesAccess(t *testing.T) {
	env := testutil.NewEnv(t)
	_, token := env.CreateAdmin()
	other, otherToken := env.CreateAdmin()

	resp := env.Request(http.MethodGet, "/api/users", nil, otherToken)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.Request(http.MethodPut, "/api/users/"+other.User.ID, map[string]any{"isActive": false}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodGet, "/api/users", nil, otherToken)
	require.Equal(t, http.StatusForbidden, resp.Code)
}
