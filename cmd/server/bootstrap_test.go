package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/gatekeep/internal/app"
	"github.com/charlesng35/gatekeep/internal/drive"
	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/internal/notify"
)

func testConfig() *app.Config {
	cfg := &app.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	cfg.Auth.JWT.Secret = "bootstrap-test-secret"
	cfg.Tokens.Store = "database"
	return cfg
}

func TestBootstrapRuntimeServesHealth(t *testing.T) {
	cfg := testConfig()
	cfg.Bootstrap = app.BootstrapConfig{
		AdminName:     "Root Admin",
		AdminEmail:    "Root@Example.com",
		AdminPassword: "Str0ng!Pass",
		AdminPhone:    "+12015550100",
	}

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var admin models.User
	require.NoError(t, stack.DB.Take(&admin, "email = ?", "root@example.com").Error)
	var role models.Role
	require.NoError(t, stack.DB.Take(&role, "name = ?", models.RoleAdmin).Error)
	require.Equal(t, role.ID, admin.RoleID)

	var permCount int64
	require.NoError(t, stack.DB.Model(&models.Permission{}).Count(&permCount).Error)
	require.Positive(t, permCount)
}

func TestEnsureBootstrapAdminIsIdempotent(t *testing.T) {
	cfg := testConfig()
	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	boot := app.BootstrapConfig{
		AdminEmail:    "admin@example.com",
		AdminPassword: "Str0ng!Pass",
		AdminPhone:    "+12015550101",
	}
	ctx := context.Background()
	require.NoError(t, ensureBootstrapAdmin(ctx, stack.DB, stack.Services.Users, boot, zap.NewNop()))
	require.NoError(t, ensureBootstrapAdmin(ctx, stack.DB, stack.Services.Users, boot, zap.NewNop()))

	var count int64
	require.NoError(t, stack.DB.Model(&models.User{}).Where("email = ?", "admin@example.com").Count(&count).Error)
	require.EqualValues(t, 1, count)

	var admin models.User
	require.NoError(t, stack.DB.Take(&admin, "email = ?", "admin@example.com").Error)
	require.Equal(t, "Administrator", admin.Name)
}

func TestEnsureBootstrapAdminSkipsAndValidates(t *testing.T) {
	cfg := testConfig()
	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	ctx := context.Background()
	require.NoError(t, ensureBootstrapAdmin(ctx, stack.DB, stack.Services.Users, app.BootstrapConfig{}, zap.NewNop()))

	err = ensureBootstrapAdmin(ctx, stack.DB, stack.Services.Users, app.BootstrapConfig{AdminEmail: "admin@example.com"}, zap.NewNop())
	require.Error(t, err)

	var count int64
	require.NoError(t, stack.DB.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestInitialiseCollaboratorsFallBack(t *testing.T) {
	cfg := testConfig()
	stack := &runtimeStack{}

	notifier, err := initialiseNotifier(cfg, stack, zap.NewNop())
	require.NoError(t, err)
	require.IsType(t, notify.Noop{}, notifier)

	storage := initialiseStorage(context.Background(), cfg, zap.NewNop())
	require.IsType(t, drive.Disabled{}, storage)

	cfg.Storage.Drive.Enabled = true
	storage = initialiseStorage(context.Background(), cfg, zap.NewNop())
	require.IsType(t, drive.Disabled{}, storage, "missing credentials disable uploads")
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing", "config.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	err := run(context.Background(), []string{"--no-such-flag"})
	require.Error(t, err)
}

func TestRuntimeProbesSkipDisconnectedBackends(t *testing.T) {
	stack := &runtimeStack{}
	require.Empty(t, stack.probes())

	cfg := testConfig()
	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	report := stack.Services.Health.Evaluate(context.Background())
	require.True(t, report.Healthy())
	require.Len(t, report.Checks, 1)
	require.Equal(t, "database", report.Checks[0].Component)
}
