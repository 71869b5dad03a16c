package permissions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/cache"
	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/pkg/logger"
)

const cacheNamespace = "role-permissions"

// Set is a flat collection of granted permission names.
type Set map[string]struct{}

// Has reports whether name is granted.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the granted names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolver maps a user to the active permission names of their role.
type Resolver struct {
	db    *gorm.DB
	cache cache.Store
	ttl   time.Duration
}

// NewResolver constructs a resolver. store may be nil to disable caching.
func NewResolver(db *gorm.DB, store cache.Store, ttl time.Duration) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("permission resolver: db is required")
	}
	return &Resolver{db: db, cache: store, ttl: ttl}, nil
}

// Permissions returns the permission set of the user's role. Unknown, role-less, inactive or locked users get an empty set.
func (r *Resolver) Permissions(ctx context.Context, userID string) (Set, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Set{}, nil
	}

	var user models.User
	err := r.db.WithContext(ctx).Select("id", "role_id", "is_active", "is_locked").Take(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("permission resolver: load user: %w", err)
	}
	// Inactive or locked accounts hold no grants, even with an unexpired access token.
	if !user.IsActive || user.IsLocked {
		return Set{}, nil
	}

	return r.RolePermissions(ctx, user.RoleID)
}

// RolePermissions returns the active permission names granted to roleID.
func (r *Resolver) RolePermissions(ctx context.Context, roleID string) (Set, error) {
	ctx = ensureContext(ctx)

	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return Set{}, nil
	}

	if names, ok := r.cached(ctx, roleID); ok {
		return toSet(names), nil
	}

	var role models.Role
	err := r.db.WithContext(ctx).
		Preload("Permissions", "is_active = ?", true).
		Take(&role, "id = ?", roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("permission resolver: load role: %w", err)
	}

	names := make([]string, 0, len(role.Permissions))
	for _, perm := range role.Permissions {
		names = append(names, perm.Name)
	}
	r.store(ctx, roleID, names)

	return toSet(names), nil
}

// Check reports whether the user's role grants name.
func (r *Resolver) Check(ctx context.Context, userID, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, errors.New("permission resolver: permission name is required")
	}

	set, err := r.Permissions(ctx, userID)
	if err != nil {
		return false, err
	}
	return set.Has(name), nil
}

// Invalidate drops cached permission sets for the given roles.
func (r *Resolver) Invalidate(ctx context.Context, roleIDs ...string) {
	if r.cache == nil || len(roleIDs) == 0 {
		return
	}
	if err := r.cache.Delete(ensureContext(ctx), cacheNamespace, roleIDs...); err != nil {
		logger.WithModule("permissions").Warn("failed to invalidate role permissions", zap.Strings("roles", roleIDs), zap.Error(err))
	}
}

// InvalidateAll drops every cached permission set.
func (r *Resolver) InvalidateAll(ctx context.Context) {
	if r.cache == nil {
		return
	}
	if err := r.cache.DeleteNamespace(ensureContext(ctx), cacheNamespace); err != nil {
		logger.WithModule("permissions").Warn("failed to invalidate permission cache", zap.Error(err))
	}
}

func (r *Resolver) cached(ctx context.Context, roleID string) ([]string, bool) {
	if r.cache == nil {
		return nil, false
	}
	raw, ok, err := r.cache.Get(ctx, cacheNamespace, roleID)
	if err != nil || !ok {
		return nil, false
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, false
	}
	return names, true
}

func (r *Resolver) store(ctx context.Context, roleID string, names []string) {
	if r.cache == nil || r.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheNamespace, roleID, raw, r.ttl); err != nil {
		logger.WithModule("permissions").Debug("failed to cache role permissions", zap.String("role_id", roleID), zap.Error(err))
	}
}

func toSet(names []string) Set {
	set := make(Set, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
