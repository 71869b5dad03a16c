package models

import (
	"github.com/charlesng35/gatekeep/internal/ids"
	"gorm.io/gorm"
)

// Permission is a named capability of the form <entity>-<action>.
type Permission struct {
	BaseModel

	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Entity      string `gorm:"size:50;not null;index" json:"entity"`
	Action      string `gorm:"size:20;not null" json:"action"`
	Description string `gorm:"size:255" json:"description"`
	IsActive    bool   `gorm:"not null" json:"isActive"`

	Roles []Role `gorm:"many2many:role_permissions;" json:"-"`
}

func (p *Permission) BeforeCreate(tx *gorm.DB) error {
	p.ensureID(ids.PrefixPermission)
	return nil
}
