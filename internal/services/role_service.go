package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/internal/views"
	apperrors "github.com/charlesng35/gatekeep/pkg/errors"
)

// PermissionCache is notified whenever a role's grants change.
type PermissionCache interface {
	Invalidate(ctx context.Context, roleIDs ...string)
	InvalidateAll(ctx context.Context)
}

// CreateRoleInput describes the payload accepted by RoleService.Create.
type CreateRoleInput struct {
	Name          string   `json:"name" validate:"required,min=3,max=50"`
	Description   string   `json:"description" validate:"max=255"`
	PermissionIDs []string `json:"permissionIds" validate:"omitempty,dive,entity_id"`
}

// UpdateRoleInput describes mutable fields on a role. Nil fields are left unchanged.
type UpdateRoleInput struct {
	Name          *string   `json:"name" validate:"omitempty,min=3,max=50"`
	Description   *string   `json:"description" validate:"omitempty,max=255"`
	PermissionIDs *[]string `json:"permissionIds" validate:"omitempty,dive,entity_id"`
}

// RoleFilter narrows role listings.
type RoleFilter struct {
	Name      string
	CreatedBy string
}

// RoleService manages roles and their permission sets.
type RoleService struct {
	db           *gorm.DB
	views        *views.Assembler
	cache        PermissionCache
	auditService *AuditService
}

// NewRoleService constructs a RoleService. cache may be nil.
func NewRoleService(db *gorm.DB, assembler *views.Assembler, cache PermissionCache, audit *AuditService) (*RoleService, error) {
	if db == nil {
		return nil, errors.New("role service: db is required")
	}
	if assembler == nil {
		return nil, errors.New("role service: view assembler is required")
	}
	return &RoleService{db: db, views: assembler, cache: cache, auditService: audit}, nil
}

// Create registers a role with the given permissions.
func (s *RoleService) Create(ctx context.Context, actor string, input CreateRoleInput) (*views.RoleView, error) {
	ctx = ensureContext(ctx)

	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	perms, err := s.loadPermissions(ctx, input.PermissionIDs)
	if err != nil {
		return nil, err
	}

	role := &models.Role{Name: input.Name, Description: input.Description, Permissions: perms}
	role.CreatedBy = actor
	role.UpdatedBy = actor

	if err := s.db.WithContext(ctx).Create(role).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, duplicateError(err, "name")
		}
		return nil, fmt.Errorf("role service: create role: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:  actor,
		Action:   "role.create",
		Resource: role.ID,
		Result:   "success",
		Metadata: map[string]any{"name": role.Name, "permission_ids": permissionIDs(perms)},
	})

	return s.views.Role(ctx, role)
}

// Get returns the assembled view of a role.
func (s *RoleService) Get(ctx context.Context, id string) (*views.RoleView, error) {
	role, err := s.load(ensureContext(ctx), id)
	if err != nil {
		return nil, err
	}
	return s.views.Role(ctx, role)
}

// Query lists roles. An empty page is reported as not found.
func (s *RoleService) Query(ctx context.Context, filter RoleFilter, opts QueryOptions) (*Page[views.RoleView], error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Role{})
	if name := strings.TrimSpace(filter.Name); name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if filter.CreatedBy != "" {
		query = query.Where("created_by = ?", filter.CreatedBy)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("role service: count roles: %w", err)
	}

	var roles []models.Role
	if err := applyQueryOptions(query, opts).Preload("Permissions").Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("role service: list roles: %w", err)
	}
	if len(roles) == 0 {
		return nil, apperrors.ErrNotFound.WithMessage("No roles found")
	}

	items, err := s.views.Roles(ctx, roles)
	if err != nil {
		return nil, err
	}
	params := opts.params()
	return &Page[views.RoleView]{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// Update changes name, description or permission set. A patch that changes nothing is rejected with ErrNoChange.
func (s *RoleService) Update(ctx context.Context, actor, id string, input UpdateRoleInput) (*views.RoleView, error) {
	ctx = ensureContext(ctx)

	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		input.Name = &trimmed
	}
	if input.Description != nil {
		trimmed := strings.TrimSpace(*input.Description)
		input.Description = &trimmed
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	role, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil && *input.Name != role.Name {
		if role.IsSystem {
			return nil, ErrSystemRoleImmutable.WithMessage("System roles cannot be renamed")
		}
		updates["name"] = *input.Name
	}
	if input.Description != nil && *input.Description != role.Description {
		updates["description"] = *input.Description
	}

	var perms []models.Permission
	replacePerms := false
	if input.PermissionIDs != nil {
		perms, err = s.loadPermissions(ctx, *input.PermissionIDs)
		if err != nil {
			return nil, err
		}
		replacePerms = !sameIDs(permissionIDs(role.Permissions), permissionIDs(perms))
	}

	if len(updates) == 0 && !replacePerms {
		return nil, apperrors.ErrNoChange
	}
	updates["updated_by"] = actor

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(role).Updates(updates).Error; err != nil {
			return err
		}
		if replacePerms {
			if err := tx.Model(role).Association("Permissions").Replace(perms); err != nil {
				return fmt.Errorf("role service: replace permissions: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return nil, duplicateError(err, "name")
		}
		return nil, fmt.Errorf("role service: update role: %w", err)
	}

	if replacePerms && s.cache != nil {
		s.cache.Invalidate(ctx, role.ID)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:  actor,
		Action:   "role.update",
		Resource: role.ID,
		Result:   "success",
		Metadata: map[string]any{"fields": mapKeys(updates), "permissions_replaced": replacePerms},
	})

	return s.Get(ctx, role.ID)
}

// SetPermissions replaces the role's permission set.
func (s *RoleService) SetPermissions(ctx context.Context, actor, id string, permissionIDs []string) (*views.RoleView, error) {
	if permissionIDs == nil {
		permissionIDs = []string{}
	}
	return s.Update(ctx, actor, id, UpdateRoleInput{PermissionIDs: &permissionIDs})
}

// Delete removes a role. System roles and roles still assigned to users are kept.
func (s *RoleService) Delete(ctx context.Context, actor, id string) (*views.RoleView, error) {
	ctx = ensureContext(ctx)

	role, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, ErrSystemRoleImmutable
	}

	var members int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("role_id = ?", role.ID).Count(&members).Error; err != nil {
		return nil, fmt.Errorf("role service: count members: %w", err)
	}
	if members > 0 {
		return nil, apperrors.ErrConflict.WithMessage(fmt.Sprintf("Role is assigned to %d user(s)", members))
	}

	view, err := s.views.Role(ctx, role)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(role).Association("Permissions").Clear(); err != nil {
			return err
		}
		return tx.Delete(role).Error
	})
	if err != nil {
		return nil, fmt.Errorf("role service: delete role: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, role.ID)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:  actor,
		Action:   "role.delete",
		Resource: role.ID,
		Result:   "success",
		Metadata: map[string]any{"name": role.Name},
	})

	return view, nil
}

// Resolve returns the role with id, or the Default role when id is empty.
func (s *RoleService) Resolve(ctx context.Context, id string) (*models.Role, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(id) == "" {
		return s.DefaultRole(ctx)
	}
	role, err := s.load(ctx, id)
	if errors.Is(err, ErrRoleNotFound) {
		return nil, apperrors.NewValidation("roleId", "Role not found")
	}
	return role, err
}

// DefaultRole returns the Default role, creating it when absent.
func (s *RoleService) DefaultRole(ctx context.Context) (*models.Role, error) {
	ctx = ensureContext(ctx)

	role := models.Role{Name: models.RoleDefault, Description: "Default role for new accounts", IsSystem: true}
	if err := s.db.WithContext(ctx).
		Where(models.Role{Name: models.RoleDefault}).
		Attrs(role).
		FirstOrCreate(&role).Error; err != nil {
		return nil, fmt.Errorf("role service: default role: %w", err)
	}
	return &role, nil
}

func (s *RoleService) load(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).Preload("Permissions").Take(&role, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("role service: load role: %w", err)
	}
	return &role, nil
}

// loadPermissions requires every id to reference an existing permission.
func (s *RoleService) loadPermissions(ctx context.Context, ids []string) ([]models.Permission, error) {
	ids = normaliseIDs(ids)
	if len(ids) == 0 {
		return []models.Permission{}, nil
	}

	var perms []models.Permission
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("role service: load permissions: %w", err)
	}
	if len(perms) != len(ids) {
		found := make(map[string]struct{}, len(perms))
		for _, perm := range perms {
			found[perm.ID] = struct{}{}
		}
		var missing []string
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil, apperrors.NewValidation("permissionIds", "Unknown permission(s): "+strings.Join(missing, ", "))
	}
	return perms, nil
}

func permissionIDs(perms []models.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, perm := range perms {
		out = append(out, perm.ID)
	}
	return out
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	return keys
}
