package api

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	iauth "github.com/charlesng35/gatekeep/internal/auth"
	"github.com/charlesng35/gatekeep/internal/drive"
	"github.com/charlesng35/gatekeep/internal/monitoring"
	"github.com/charlesng35/gatekeep/internal/notify"
	"github.com/charlesng35/gatekeep/internal/permissions"
	"github.com/charlesng35/gatekeep/internal/services"
	"github.com/charlesng35/gatekeep/internal/views"
)

// ServiceDeps are the collaborators shared by every domain service.
type ServiceDeps struct {
	Tokens   *iauth.TokenService
	Resolver *permissions.Resolver
	Storage  drive.Storage
	Notifier notify.Notifier
	Limits   services.AttemptLimits
	// Probes are readiness checks for external dependencies; the database check is always registered.
	Probes   []monitoring.Check
}

// Services groups the domain services behind the HTTP surface.
type Services struct {
	Tokens      *iauth.TokenService
	Resolver    *permissions.Resolver
	Audit       *services.AuditService
	Users       *services.UserService
	Roles       *services.RoleService
	Permissions *services.PermissionService
	Health      *monitoring.HealthManager
}

// NewServices builds the domain services on top of db.
func NewServices(db *gorm.DB, deps ServiceDeps) (*Services, error) {
	if db == nil {
		return nil, errors.New("database handle must be provided")
	}
	if deps.Tokens == nil {
		return nil, errors.New("token service must be provided")
	}
	if deps.Resolver == nil {
		return nil, errors.New("permission resolver must be provided")
	}

	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	assembler, err := views.NewAssembler(db)
	if err != nil {
		return nil, err
	}
	roles, err := services.NewRoleService(db, assembler, deps.Resolver, audit)
	if err != nil {
		return nil, fmt.Errorf("role service: %w", err)
	}
	perms, err := services.NewPermissionService(db, deps.Resolver, audit)
	if err != nil {
		return nil, fmt.Errorf("permission service: %w", err)
	}
	users, err := services.NewUserService(db, services.UserServiceDeps{
		Roles:    roles,
		Tokens:   deps.Tokens,
		Storage:  deps.Storage,
		Notifier: deps.Notifier,
		Views:    assembler,
		Audit:    audit,
		Limits:   deps.Limits,
	})
	if err != nil {
		return nil, fmt.Errorf("user service: %w", err)
	}

	health := monitoring.NewHealthManager(monitoring.Database(db, 0))
	for _, probe := range deps.Probes {
		health.Register(probe)
	}

	return &Services{
		Tokens:      deps.Tokens,
		Resolver:    deps.Resolver,
		Audit:       audit,
		Users:       users,
		Roles:       roles,
		Permissions: perms,
		Health:      health,
	}, nil
}
