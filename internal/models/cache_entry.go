package models

import (
	"time"
)

// CacheEntry is a database-backed cache row. Namespace groups keys for bulk eviction.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Namespace string    `gorm:"size:64;index"`
	Value     []byte
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
