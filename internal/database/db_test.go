package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(db))
}

func TestAutoMigrateAndSeedData(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrateAndSeed(db))
	// Seeding twice must not duplicate the system roles.
	require.NoError(t, SeedData(db))

	var roles []models.Role
	require.NoError(t, db.Order("name").Find(&roles).Error)
	require.Len(t, roles, 2)
	require.Equal(t, models.RoleAdmin, roles[0].Name)
	require.Equal(t, models.RoleDefault, roles[1].Name)
	for _, role := range roles {
		require.True(t, role.IsSystem)
		require.Regexp(t, `^ROL[0-9A-HJKMNP-TV-Z]{26}$`, role.ID)
	}
}

func TestTimestampsAreUTC(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	role := models.Role{Name: "Auditor"}
	require.NoError(t, db.Create(&role).Error)
	require.Equal(t, time.UTC, role.CreatedAt.Location())
}

func TestAssignRolePermissions(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrateAndSeed(db))

	perms := []models.Permission{
		{Name: "user-create", Entity: "user", Action: "create", IsActive: true},
		{Name: "user-view", Entity: "user", Action: "view", IsActive: true},
	}
	require.NoError(t, db.Create(&perms).Error)

	ids := []string{perms[0].ID, perms[1].ID}
	require.NoError(t, AssignRolePermissions(db, models.RoleAdmin, ids))
	require.NoError(t, AssignRolePermissions(db, models.RoleAdmin, ids))

	var admin models.Role
	require.NoError(t, db.Preload("Permissions").Where("name = ?", models.RoleAdmin).First(&admin).Error)
	require.Len(t, admin.Permissions, 2)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString()),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = Close(db)
	})

	return db
}
