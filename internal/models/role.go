package models

import (
	"github.com/charlesng35/gatekeep/internal/ids"
	"gorm.io/gorm"
)

// Names of roles the system provisions itself.
const (
	RoleAdmin   = "Admin"
	RoleDefault = "Default"
)

type Role struct {
	BaseModel

	Name        string `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Description string `gorm:"size:255" json:"description"`
	IsSystem    bool   `gorm:"not null" json:"isSystem"`

	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	r.ensureID(ids.PrefixRole)
	return nil
}
