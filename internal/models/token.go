package models

import (
	"time"

	"github.com/charlesng35/gatekeep/internal/ids"
	"gorm.io/gorm"
)

// TokenType distinguishes the purpose a bearer token was issued for.
type TokenType string

const (
	TokenTypeAccess        TokenType = "access"
	TokenTypeRefresh       TokenType = "refresh"
	TokenTypeResetPassword TokenType = "reset-password"
	TokenTypeVerifyEmail   TokenType = "verify-email"
)

// Valid reports whether t is a known token type.
func (t TokenType) Valid() bool {
	switch t {
	case TokenTypeAccess, TokenTypeRefresh, TokenTypeResetPassword, TokenTypeVerifyEmail:
		return true
	}
	return false
}

// Token is a persisted issuance record. Only the SHA-256 digest of the token is stored.
type Token struct {
	ID          string    `gorm:"primaryKey;size:32" json:"id"`
	TokenHash   string    `gorm:"size:64;not null;index" json:"-"`
	UserID      string    `gorm:"size:32;not null;index" json:"userId"`
	Type        TokenType `gorm:"size:32;not null;index" json:"type"`
	ExpiresAt   time.Time `gorm:"not null;index" json:"expiresAt"`
	Blacklisted bool      `gorm:"not null;index" json:"blacklisted"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (t *Token) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = ids.New(ids.PrefixToken)
	}
	return nil
}
