package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.Token{},
		&models.AuditLog{},
		&models.CacheEntry{},
	)
}

// SeedData provisions the system roles. Permissions are synced separately.
func SeedData(db *gorm.DB) error {
	roles := []models.Role{
		{
			Name:        models.RoleAdmin,
			Description: "Full system access",
			IsSystem:    true,
		},
		{
			Name:        models.RoleDefault,
			Description: "Assigned to users registered without an explicit role",
			IsSystem:    true,
		},
	}

	for _, role := range roles {
		if err := db.Where(models.Role{Name: role.Name}).Attrs(role).FirstOrCreate(&models.Role{}).Error; err != nil {
			return err
		}
	}

	return nil
}
