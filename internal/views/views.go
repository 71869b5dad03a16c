package views

import (
	"time"
)

// Join names reported in Missing when a reference cannot be resolved.
const (
	JoinRole      = "role"
	JoinCreatedBy = "createdBy"
	JoinUpdatedBy = "updatedBy"
)

// Options tune how a user view is projected.
type Options struct {
	// ViewerID is the caller. A viewer looking at their own record gets the owner projection.
	ViewerID string
	// Owner forces the owner projection, e.g. for the account that was just registered.
	Owner bool
}

func (o Options) ownerOf(userID string) bool {
	return o.Owner || (o.ViewerID != "" && o.ViewerID == userID)
}

// UserSummary is the short form used for audit references.
type UserSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// RoleSummary is the role joined into a user view.
type RoleSummary struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions"`
}

// PictureView exposes the attachment links a viewer may see.
type PictureView struct {
	FileID        string `json:"fileId,omitempty"`
	ShareableLink string `json:"shareableLink,omitempty"`
	DownloadLink  string `json:"downloadLink,omitempty"`
}

// UserView is the sanitized, joined representation of a user.
type UserView struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Username      string       `json:"username"`
	Email         string       `json:"email"`
	Phone         string       `json:"phone"`
	Picture       *PictureView `json:"picture,omitempty"`
	RoleID        string       `json:"roleId"`
	Role          *RoleSummary `json:"role"`
	EmailVerified bool         `json:"emailVerified"`
	IsActive      bool         `json:"isActive"`
	IsLocked      bool         `json:"isLocked"`
	CreatedBy     *UserSummary `json:"createdBy"`
	UpdatedBy     *UserSummary `json:"updatedBy"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	// Missing lists joins whose reference did not resolve.
	Missing []string `json:"missing,omitempty"`
}

// Degraded reports whether any join failed to resolve.
func (v *UserView) Degraded() bool {
	return len(v.Missing) > 0
}

// RoleView is the joined representation of a role.
type RoleView struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	IsSystem      bool         `json:"isSystem"`
	Permissions   []string     `json:"permissions"`
	PermissionIDs []string     `json:"permissionIds"`
	CreatedBy     *UserSummary `json:"createdBy"`
	UpdatedBy     *UserSummary `json:"updatedBy"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	Missing       []string     `json:"missing,omitempty"`
}
