package models

import (
	"time"

	"github.com/charlesng35/gatekeep/internal/ids"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditLog struct {
	ID        string            `gorm:"primaryKey;size:32" json:"id"`
	ActorID   string            `gorm:"size:32;index" json:"actorId"`
	Action    string            `gorm:"size:64;not null;index" json:"action"`
	Resource  string            `gorm:"size:128;index" json:"resource"`
	Result    string            `gorm:"size:16;not null" json:"result"`
	IPAddress string            `gorm:"size:64" json:"ipAddress"`
	UserAgent string            `gorm:"size:255" json:"userAgent"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"index" json:"createdAt"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = ids.New(ids.PrefixAudit)
	}
	return nil
}
