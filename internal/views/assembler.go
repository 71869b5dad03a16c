package views

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/models"
)

// Assembler joins users and roles with their references and projects them
// into response views. Joins run in a fixed order: role, createdBy, updatedBy,
// then projection. Unresolved references degrade the view instead of failing.
type Assembler struct {
	db *gorm.DB
}

func NewAssembler(db *gorm.DB) (*Assembler, error) {
	if db == nil {
		return nil, errors.New("views: db is required")
	}
	return &Assembler{db: db}, nil
}

// User assembles a single user view.
func (a *Assembler) User(ctx context.Context, user *models.User, opts Options) (*UserView, error) {
	if user == nil {
		return nil, errors.New("views: user is required")
	}
	return a.newLookup(ctx).user(user, opts)
}

// Users assembles views for a page of users, sharing lookups across records.
func (a *Assembler) Users(ctx context.Context, users []models.User, opts Options) ([]UserView, error) {
	l := a.newLookup(ctx)
	out := make([]UserView, 0, len(users))
	for i := range users {
		view, err := l.user(&users[i], opts)
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

// Role assembles a role view with its permission names.
func (a *Assembler) Role(ctx context.Context, role *models.Role) (*RoleView, error) {
	if role == nil {
		return nil, errors.New("views: role is required")
	}
	return a.newLookup(ctx).role(role)
}

// Roles assembles views for a page of roles.
func (a *Assembler) Roles(ctx context.Context, roles []models.Role) ([]RoleView, error) {
	l := a.newLookup(ctx)
	out := make([]RoleView, 0, len(roles))
	for i := range roles {
		view, err := l.role(&roles[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *view)
	}
	return out, nil
}

// lookup memoizes references resolved during one assembly.
type lookup struct {
	db    *gorm.DB
	users map[string]*UserSummary
	roles map[string]*RoleSummary
}

func (a *Assembler) newLookup(ctx context.Context) *lookup {
	if ctx == nil {
		ctx = context.Background()
	}
	return &lookup{
		db:    a.db.WithContext(ctx),
		users: make(map[string]*UserSummary),
		roles: make(map[string]*RoleSummary),
	}
}

func (l *lookup) user(user *models.User, opts Options) (*UserView, error) {
	view := &UserView{
		ID:            user.ID,
		Name:          user.Name,
		Username:      user.Username,
		Email:         user.Email,
		Phone:         user.Phone,
		RoleID:        user.RoleID,
		EmailVerified: user.EmailVerified,
		IsActive:      user.IsActive,
		IsLocked:      user.IsLocked,
		CreatedAt:     user.CreatedAt,
		UpdatedAt:     user.UpdatedAt,
	}

	role, err := l.roleSummary(user.RoleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		view.Missing = append(view.Missing, JoinRole)
	}
	view.Role = role

	if view.CreatedBy, err = l.join(user.CreatedBy, JoinCreatedBy, &view.Missing); err != nil {
		return nil, err
	}
	if view.UpdatedBy, err = l.join(user.UpdatedBy, JoinUpdatedBy, &view.Missing); err != nil {
		return nil, err
	}

	view.Picture = projectPicture(user.Picture, opts.ownerOf(user.ID))
	return view, nil
}

func (l *lookup) role(role *models.Role) (*RoleView, error) {
	perms := role.Permissions
	if perms == nil {
		if err := l.db.Model(role).Association("Permissions").Find(&perms); err != nil {
			return nil, fmt.Errorf("views: load role permissions: %w", err)
		}
	}

	view := &RoleView{
		ID:            role.ID,
		Name:          role.Name,
		Description:   role.Description,
		IsSystem:      role.IsSystem,
		Permissions:   make([]string, 0, len(perms)),
		PermissionIDs: make([]string, 0, len(perms)),
		CreatedAt:     role.CreatedAt,
		UpdatedAt:     role.UpdatedAt,
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	for _, perm := range perms {
		view.Permissions = append(view.Permissions, perm.Name)
		view.PermissionIDs = append(view.PermissionIDs, perm.ID)
	}

	var err error
	if view.CreatedBy, err = l.join(role.CreatedBy, JoinCreatedBy, &view.Missing); err != nil {
		return nil, err
	}
	if view.UpdatedBy, err = l.join(role.UpdatedBy, JoinUpdatedBy, &view.Missing); err != nil {
		return nil, err
	}
	return view, nil
}

// join resolves an audit reference. An empty reference is not reported missing.
func (l *lookup) join(id, name string, missing *[]string) (*UserSummary, error) {
	if id == "" {
		return nil, nil
	}
	summary, err := l.userSummary(id)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		*missing = append(*missing, name)
	}
	return summary, nil
}

func (l *lookup) userSummary(id string) (*UserSummary, error) {
	if cached, ok := l.users[id]; ok {
		return cached, nil
	}

	var user models.User
	err := l.db.Select("id", "name", "username", "email").First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		l.users[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("views: load user %s: %w", id, err)
	}

	summary := &UserSummary{ID: user.ID, Name: user.Name, Username: user.Username, Email: user.Email}
	l.users[id] = summary
	return summary, nil
}

func (l *lookup) roleSummary(id string) (*RoleSummary, error) {
	if id == "" {
		return nil, nil
	}
	if cached, ok := l.roles[id]; ok {
		return cached, nil
	}

	var role models.Role
	err := l.db.Preload("Permissions", "is_active = ?", true).First(&role, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		l.roles[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("views: load role %s: %w", id, err)
	}

	names := make([]string, 0, len(role.Permissions))
	for _, perm := range role.Permissions {
		names = append(names, perm.Name)
	}
	sort.Strings(names)

	summary := &RoleSummary{ID: role.ID, Name: role.Name, Description: role.Description, Permissions: names}
	l.roles[id] = summary
	return summary, nil
}

func projectPicture(p models.Picture, owner bool) *PictureView {
	if p.IsZero() {
		return nil
	}
	if !owner {
		if p.ShareableLink == "" {
			return nil
		}
		return &PictureView{ShareableLink: p.ShareableLink}
	}
	return &PictureView{FileID: p.FileID, ShareableLink: p.ShareableLink, DownloadLink: p.DownloadLink}
}
