package permissions

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/database"
	"github.com/charlesng35/gatekeep/internal/models"
)

// Sync persists one permission per registered entity and action, and grants all of them to the Admin role.
// Existing rows are left untouched so operators may deactivate or redescribe them.
func Sync(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("permission: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx := db.WithContext(ctx)
	entities := Entities()
	ids := make([]string, 0, len(entities)*len(actions))
	for _, entity := range entities {
		for _, action := range actions {
			name := Name(entity.Name, action)
			record := models.Permission{
				Name:        name,
				Entity:      entity.Name,
				Action:      action,
				Description: fmt.Sprintf("%s %s", action, entity.Name),
				IsActive:    true,
			}

			var stored models.Permission
			if err := tx.Where(models.Permission{Name: name}).Attrs(record).FirstOrCreate(&stored).Error; err != nil {
				return fmt.Errorf("permission: sync %s: %w", name, err)
			}
			ids = append(ids, stored.ID)
		}
	}

	if err := database.AssignRolePermissions(tx, models.RoleAdmin, ids); err != nil {
		return fmt.Errorf("permission: grant admin: %w", err)
	}
	return nil
}
