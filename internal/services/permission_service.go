package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/internal/permissions"
	apperrors "github.com/charlesng35/gatekeep/pkg/errors"
)

// CreatePermissionInput describes the payload accepted by PermissionService.Create.
type CreatePermissionInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
	IsActive    *bool  `json:"isActive"`
}

// UpdatePermissionInput describes mutable permission fields. Nil fields are left unchanged.
type UpdatePermissionInput struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
	IsActive    *bool   `json:"isActive"`
}

// PermissionFilter narrows permission listings.
type PermissionFilter struct {
	Entity   string
	Name     string
	IsActive *bool
}

// PermissionService manages permission definitions.
type PermissionService struct {
	db           *gorm.DB
	cache        PermissionCache
	auditService *AuditService
}

// NewPermissionService constructs a PermissionService. cache may be nil.
func NewPermissionService(db *gorm.DB, cache PermissionCache, audit *AuditService) (*PermissionService, error) {
	if db == nil {
		return nil, errors.New("permission service: db is required")
	}
	return &PermissionService{db: db, cache: cache, auditService: audit}, nil
}

// Entities lists the entity types permission names may refer to.
func (s *PermissionService) Entities() []permissions.Entity {
	return permissions.Entities()
}

// Create registers a permission. The name must be <entity>-<action> for a registered entity.
func (s *PermissionService) Create(ctx context.Context, actor string, input CreatePermissionInput) (*models.Permission, error) {
	ctx = ensureContext(ctx)

	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if err := validateInput(input); err != nil {
		return nil, err
	}

	entity, action, err := parsePermissionName(input.Name)
	if err != nil {
		return nil, err
	}

	perm := &models.Permission{
		Name:        input.Name,
		Entity:      entity,
		Action:      action,
		Description: input.Description,
		IsActive:    true,
	}
	if input.IsActive != nil {
		perm.IsActive = *input.IsActive
	}
	perm.CreatedBy = actor
	perm.UpdatedBy = actor

	if err := s.db.WithContext(ctx).Create(perm).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, duplicateError(err, "name")
		}
		return nil, fmt.Errorf("permission service: create permission: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:  actor,
		Action:   "permission.create",
		Resource: perm.ID,
		Result:   "success",
		Metadata: map[string]any{"name": perm.Name},
	})

	return perm, nil
}

// Get loads a permission by id.
func (s *PermissionService) Get(ctx context.Context, id string) (*models.Permission, error) {
	ctx = ensureContext(ctx)

	var perm models.Permission
	err := s.db.WithContext(ctx).Take(&perm, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("permission service: load permission: %w", err)
	}
	return &perm, nil
}

// Query lists permissions. An empty page is reported as not found.
func (s *PermissionService) Query(ctx context.Context, filter PermissionFilter, opts QueryOptions) (*Page[models.Permission], error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Model(&models.Permission{})
	if entity := strings.ToLower(strings.TrimSpace(filter.Entity)); entity != "" {
		query = query.Where("entity = ?", entity)
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("permission service: count permissions: %w", err)
	}

	var perms []models.Permission
	if err := applyQueryOptions(query, opts).Find(&perms).Error; err != nil {
		return nil, fmt.Errorf("permission service: list permissions: %w", err)
	}
	if len(perms) == 0 {
		return nil, apperrors.ErrNotFound.WithMessage("No permissions found")
	}

	params := opts.params()
	return &Page[models.Permission]{Items: perms, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// Update changes a permission. Renames are re-validated against the entity registry.
func (s *PermissionService) Update(ctx context.Context, actor, id string, input UpdatePermissionInput) (*models.Permission, error) {
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

	perm, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil && *input.Name != perm.Name {
		entity, action, err := parsePermissionName(*input.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = *input.Name
		updates["entity"] = entity
		updates["action"] = action
	}
	if input.Description != nil && *input.Description != perm.Description {
		updates["description"] = *input.Description
	}
	if input.IsActive != nil && *input.IsActive != perm.IsActive {
		updates["is_active"] = *input.IsActive
	}
	if len(updates) == 0 {
		return nil, apperrors.ErrNoChange
	}
	updates["updated_by"] = actor

	if err := s.db.WithContext(ctx).Model(perm).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, duplicateError(err, "name")
		}
		return nil, fmt.Errorf("permission service: update permission: %w", err)
	}

	_, renamed := updates["name"]
	_, toggled := updates["is_active"]
	if (renamed || toggled) && s.cache != nil {
		s.cache.InvalidateAll(ctx)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:  actor,
		Action:   "permission.update",
		Resource: perm.ID,
		Result:   "success",
		Metadata: map[string]any{"fields": mapKeys(updates)},
	})

	return s.Get(ctx, perm.ID)
}

// Delete removes a permission and strips it from every role that held it.
func (s *PermissionService) Delete(ctx context.Context, actor, id string) (*models.Permission, error) {
	ctx = ensureContext(ctx)

	perm, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(perm).Association("Roles").Clear(); err != nil {
			return err
		}
		return tx.Delete(perm).Error
	})
	if err != nil {
		return nil, fmt.Errorf("permission service: delete permission: %w", err)
	}

	if s.cache != nil {
		s.cache.InvalidateAll(ctx)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:  actor,
		Action:   "permission.delete",
		Resource: perm.ID,
		Result:   "success",
		Metadata: map[string]any{"name": perm.Name},
	})

	return perm, nil
}

func parsePermissionName(name string) (entity, action string, err error) {
	entity, action, err = permissions.Parse(name)
	switch {
	case errors.Is(err, permissions.ErrInvalidName):
		return "", "", apperrors.NewValidation("name", "Permission name must match <entity>-<"+strings.Join(permissions.Actions(), "|")+">")
	case errors.Is(err, permissions.ErrUnknownEntity):
		return "", "", apperrors.NewValidation("name", "Permission entity is not registered")
	case err != nil:
		return "", "", err
	}
	return entity, action, nil
}
