package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/gatekeep/internal/ids"
	"github.com/charlesng35/gatekeep/internal/models"
	apperrors "github.com/charlesng35/gatekeep/pkg/errors"
)

func TestRoleRoundTripReportsPermissionNames(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	perms := f.createPermissions(t, "user-view", "user-modify", "role-view")

	created, err := f.roles.Create(ctx, "", CreateRoleInput{
		Name:          "Support",
		Description:   "Front line",
		PermissionIDs: []string{perms[0].ID, perms[1].ID, perms[0].ID},
	})
	require.NoError(t, err)
	require.True(t, ids.Valid(ids.PrefixRole, created.ID))

	fetched, err := f.roles.Get(ctx, created.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"user-view", "user-modify"}, fetched.Permissions)

	_, err = f.roles.Create(ctx, "", CreateRoleInput{Name: "Support"})
	require.ErrorIs(t, err, apperrors.ErrDuplicateField)
}

func TestRoleCreateRejectsUnknownPermissions(t *testing.T) {
	f := newFixture(t)

	_, err := f.roles.Create(context.Background(), "", CreateRoleInput{
		Name:          "Ghosts",
		PermissionIDs: []string{ids.New(ids.PrefixPermission)},
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.roles.Create(context.Background(), "", CreateRoleInput{Name: "ab"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestRoleUpdateInvalidatesResolverCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	perms := f.createPermissions(t, "user-view", "user-delete")

	role, err := f.roles.Create(ctx, "", CreateRoleInput{Name: "Editors", PermissionIDs: []string{perms[0].ID}})
	require.NoError(t, err)

	user := f.createUser(t, 1, "Editor")
	_, err = f.users.Update(ctx, "", user.User.ID, UpdateUserInput{RoleID: &role.ID}, nil)
	require.NoError(t, err)

	allowed, err := f.resolver.Check(ctx, user.User.ID, "user-delete")
	require.NoError(t, err)
	require.False(t, allowed)

	updated, err := f.roles.SetPermissions(ctx, "", role.ID, []string{perms[0].ID, perms[1].ID})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"user-view", "user-delete"}, updated.Permissions)

	allowed, err = f.resolver.Check(ctx, user.User.ID, "user-delete")
	require.NoError(t, err)
	require.True(t, allowed)

	_, err = f.roles.SetPermissions(ctx, "", role.ID, []string{perms[1].ID, perms[0].ID})
	require.ErrorIs(t, err, apperrors.ErrNoChange)
}

func TestRoleDeleteRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	role, err := f.roles.Create(ctx, "", CreateRoleInput{Name: "Temporary"})
	require.NoError(t, err)
	user := f.createUser(t, 1, "Member")
	_, err = f.users.Update(ctx, "", user.User.ID, UpdateUserInput{RoleID: &role.ID}, nil)
	require.NoError(t, err)

	_, err = f.roles.Delete(ctx, "", role.ID)
	require.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = f.users.Delete(ctx, "", user.User.ID)
	require.NoError(t, err)

	removed, err := f.roles.Delete(ctx, "", role.ID)
	require.NoError(t, err)
	require.Equal(t, "Temporary", removed.Name)

	_, err = f.roles.Get(ctx, role.ID)
	require.ErrorIs(t, err, ErrRoleNotFound)

	admin, err := f.roles.Query(ctx, RoleFilter{Name: models.RoleAdmin}, QueryOptions{})
	require.NoError(t, err)
	_, err = f.roles.Delete(ctx, "", admin.Items[0].ID)
	require.ErrorIs(t, err, ErrSystemRoleImmutable)

	rename := "Superusers"
	_, err = f.roles.Update(ctx, "", admin.Items[0].ID, UpdateRoleInput{Name: &rename})
	require.ErrorIs(t, err, ErrSystemRoleImmutable)
}

func TestDefaultRoleIsCreatedOnDemand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Where("name = ?", models.RoleDefault).Delete(&models.Role{}).Error)

	role, err := f.roles.DefaultRole(ctx)
	require.NoError(t, err)
	require.Equal(t, models.RoleDefault, role.Name)
	require.True(t, role.IsSystem)

	again, err := f.roles.Resolve(ctx, "")
	require.NoError(t, err)
	require.Equal(t, role.ID, again.ID)
}
