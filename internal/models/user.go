package models

import (
	"github.com/charlesng35/gatekeep/internal/ids"
	"gorm.io/gorm"
)

// Picture references an attachment held by the external object store.
type Picture struct {
	FileID        string `gorm:"size:128" json:"fileId,omitempty"`
	ShareableLink string `gorm:"size:512" json:"shareableLink,omitempty"`
	DownloadLink  string `gorm:"size:512" json:"downloadLink,omitempty"`
}

// IsZero reports whether no attachment is referenced.
func (p Picture) IsZero() bool {
	return p.FileID == "" && p.ShareableLink == "" && p.DownloadLink == ""
}

// User is a registered account. RoleID is a soft reference resolved at read time.
type User struct {
	BaseModel

	Name     string `gorm:"size:100;not null;index" json:"name"`
	Username string `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email    string `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Phone    string `gorm:"size:20;uniqueIndex;not null" json:"phone"`
	Password string `gorm:"not null" json:"-"`

	Picture Picture `gorm:"embedded;embeddedPrefix:picture_" json:"picture"`
	RoleID  string  `gorm:"size:32;index" json:"roleId"`

	EmailVerified bool `gorm:"not null" json:"emailVerified"`
	IsActive      bool `gorm:"not null;index" json:"isActive"`
	IsLocked      bool `gorm:"not null" json:"isLocked"`

	LoginAttempts          int `gorm:"not null;default:0" json:"-"`
	ResetPasswordAttempts  int `gorm:"not null;default:0" json:"-"`
	VerifyEmailAttempts    int `gorm:"not null;default:0" json:"-"`
	ChangeEmailAttempts    int `gorm:"not null;default:0" json:"-"`
	ChangePasswordAttempts int `gorm:"not null;default:0" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.ensureID(ids.PrefixUser)
	return nil
}
