package models

import (
	"time"

	"github.com/charlesng35/gatekeep/internal/ids"
)

// BaseModel provides shared identity and audit fields for persistent models.
type BaseModel struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	CreatedBy string    `gorm:"size:32;index" json:"createdBy"`
	UpdatedBy string    `gorm:"size:32;index" json:"updatedBy"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

// ensureID assigns a prefixed identifier when none is set.
func (m *BaseModel) ensureID(prefix string) {
	if m.ID == "" {
		m.ID = ids.New(prefix)
	}
}
