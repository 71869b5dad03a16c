package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/auth"
	"github.com/charlesng35/gatekeep/internal/drive"
	"github.com/charlesng35/gatekeep/internal/ids"
	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/internal/notify"
	"github.com/charlesng35/gatekeep/internal/views"
	"github.com/charlesng35/gatekeep/pkg/crypto"
	apperrors "github.com/charlesng35/gatekeep/pkg/errors"
	"github.com/charlesng35/gatekeep/pkg/validator"
)

const maxUsernameAttempts = 5

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Name     string `json:"name" form:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" form:"email" validate:"required,email,max=254"`
	Phone    string `json:"phone" form:"phone" validate:"required,phone"`
	Password string `json:"password" form:"password" validate:"required,password"`
	RoleID   string `json:"roleId" form:"roleId" validate:"omitempty,entity_id"`
}

// UpdateUserInput enumerates mutable user attributes. Nil fields are left unchanged.
type UpdateUserInput struct {
	Name     *string `json:"name" form:"name" validate:"omitempty,min=2,max=100"`
	Email    *string `json:"email" form:"email" validate:"omitempty,email,max=254"`
	Phone    *string `json:"phone" form:"phone" validate:"omitempty,phone"`
	RoleID   *string `json:"roleId" form:"roleId" validate:"omitempty,entity_id"`
	IsActive *bool   `json:"isActive" form:"isActive"`
}

// UserFilter captures the optional predicates of a user listing.
type UserFilter struct {
	// Name matches as a case-insensitive substring.
	Name      string
	IsActive  *bool
	CreatedBy string
	UpdatedBy string
	CreatedAt DateRange
	UpdatedAt DateRange
}

// AuthResult is a user view together with a fresh token pair.
type AuthResult struct {
	User   *views.UserView  `json:"user"`
	Tokens *auth.AuthTokens `json:"tokens"`
}

// UserServiceDeps bundles the collaborators of a UserService.
type UserServiceDeps struct {
	Roles    *RoleService
	Tokens   *auth.TokenService
	Storage  drive.Storage
	Notifier notify.Notifier
	Views    *views.Assembler
	Audit    *AuditService
	Limits   AttemptLimits
}

// UserService manages the account lifecycle.
type UserService struct {
	db           *gorm.DB
	roles        *RoleService
	tokens       *auth.TokenService
	storage      drive.Storage
	notifier     notify.Notifier
	views        *views.Assembler
	auditService *AuditService
	limits       AttemptLimits
	usernames    func(name string) string
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, deps UserServiceDeps) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if deps.Roles == nil {
		return nil, errors.New("user service: role service is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("user service: token service is required")
	}
	if deps.Views == nil {
		return nil, errors.New("user service: view assembler is required")
	}
	if deps.Storage == nil {
		deps.Storage = drive.Disabled{}
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Noop{}
	}

	return &UserService{
		db:           db,
		roles:        deps.Roles,
		tokens:       deps.Tokens,
		storage:      deps.Storage,
		notifier:     deps.Notifier,
		views:        deps.Views,
		auditService: deps.Audit,
		limits:       deps.Limits.withDefaults(),
		usernames:    generateUsername,
	}, nil
}

// Create registers a user. actor is the creating account, or empty for self-registration.
// The order is: email check, upload, role resolution, hashing, insert, tokens, notification.
func (s *UserService) Create(ctx context.Context, actor string, input CreateUserInput, file *drive.File) (*AuthResult, error) {
	ctx = ensureContext(ctx)

	input.Name = strings.TrimSpace(input.Name)
	input.Email = normaliseEmail(input.Email)
	input.RoleID = strings.TrimSpace(input.RoleID)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	phone, err := normalisePhone(input.Phone)
	if err != nil {
		return nil, err
	}

	taken, err := s.emailTaken(ctx, input.Email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.ErrDuplicateEmail
	}

	var picture models.Picture
	if file != nil {
		uploaded, err := s.storage.Upload(ctx, *file)
		if err != nil {
			return nil, uploadError(err)
		}
		picture = *uploaded
	}

	role, err := s.roles.Resolve(ctx, input.RoleID)
	if err != nil {
		s.discardPicture(ctx, picture)
		return nil, err
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		s.discardPicture(ctx, picture)
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Name:     input.Name,
		Email:    input.Email,
		Phone:    phone,
		Password: hashed,
		Picture:  picture,
		RoleID:   role.ID,
		IsActive: true,
	}
	user.ID = ids.New(ids.PrefixUser)
	user.CreatedBy = actor
	if user.CreatedBy == "" {
		user.CreatedBy = user.ID
	}
	user.UpdatedBy = user.CreatedBy

	if err := s.insert(ctx, user); err != nil {
		s.discardPicture(ctx, picture)
		return nil, err
	}

	tokens, err := s.tokens.GenerateAuthTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	verifyToken, _, err := s.tokens.GenerateVerifyEmailToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	bestEffort("users", "registration notification",
		s.notifier.UserRegistered(ctx, user, verifyToken), zap.String("user_id", user.ID))

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:  user.CreatedBy,
		Action:   "user.create",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{"email": user.Email, "role_id": user.RoleID},
	})

	view, err := s.views.User(ctx, user, views.Options{ViewerID: actor, Owner: actor == ""})
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: view, Tokens: tokens}, nil
}

// Get returns the assembled view of a user as seen by viewer.
func (s *UserService) Get(ctx context.Context, viewer, id string) (*views.UserView, error) {
	ctx = ensureContext(ctx)

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.views.User(ctx, user, views.Options{ViewerID: viewer})
}

// Query lists users. An empty page is reported as not found.
func (s *UserService) Query(ctx context.Context, viewer string, filter UserFilter, opts QueryOptions) (*Page[views.UserView], error) {
	ctx = ensureContext(ctx)

	query := applyUserFilter(s.db.WithContext(ctx).Model(&models.User{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	if err := applyQueryOptions(query, opts).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list users: %w", err)
	}
	if len(users) == 0 {
		return nil, apperrors.ErrNotFound.WithMessage("No users found")
	}

	items, err := s.views.Users(ctx, users, views.Options{ViewerID: viewer})
	if err != nil {
		return nil, err
	}
	params := opts.params()
	return &Page[views.UserView]{Items: items, Total: total, Page: params.Page, Limit: params.Limit}, nil
}

// Update patches a user. Any successful update clears emailVerified.
// A failed upload leaves the stored picture untouched.
func (s *UserService) Update(ctx context.Context, actor, id string, input UpdateUserInput, file *drive.File) (*views.UserView, error) {
	ctx = ensureContext(ctx)

	if input.Name != nil {
		trimmed := strings.TrimSpace(*input.Name)
		input.Name = &trimmed
	}
	if input.Email != nil {
		email := normaliseEmail(*input.Email)
		input.Email = &email
	}
	if input.RoleID != nil {
		roleID := strings.TrimSpace(*input.RoleID)
		input.RoleID = &roleID
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil && *input.Name != user.Name {
		updates["name"] = *input.Name
	}
	if input.Email != nil && *input.Email != user.Email {
		taken, err := s.emailTaken(ctx, *input.Email, user.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperrors.ErrDuplicateEmail
		}
		if actor == user.ID {
			if user.ChangeEmailAttempts >= s.limits.ChangeEmail {
				return nil, apperrors.ErrRateLimit.WithMessage("Too many email changes")
			}
			updates["change_email_attempts"] = gorm.Expr("change_email_attempts + ?", 1)
		}
		updates["email"] = *input.Email
	}
	if input.Phone != nil {
		phone, err := normalisePhone(*input.Phone)
		if err != nil {
			return nil, err
		}
		if phone != user.Phone {
			updates["phone"] = phone
		}
	}
	if input.RoleID != nil && *input.RoleID != "" && *input.RoleID != user.RoleID {
		role, err := s.roles.Resolve(ctx, *input.RoleID)
		if err != nil {
			return nil, err
		}
		updates["role_id"] = role.ID
	}
	if input.IsActive != nil && *input.IsActive != user.IsActive {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) == 0 && file == nil {
		return nil, apperrors.ErrNoChange
	}

	previous := user.Picture
	var uploaded models.Picture
	if file != nil {
		pic, err := s.storage.Upload(ctx, *file)
		if err != nil {
			return nil, uploadError(err)
		}
		uploaded = *pic
		updates["picture_file_id"] = uploaded.FileID
		updates["picture_shareable_link"] = uploaded.ShareableLink
		updates["picture_download_link"] = uploaded.DownloadLink
	}

	updates["email_verified"] = false
	updates["updated_by"] = firstNonBlank(actor, user.ID)

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		s.discardPicture(ctx, uploaded)
		if isUniqueConstraintError(err) {
			return nil, duplicateError(err, "username", "email", "phone")
		}
		return nil, fmt.Errorf("user service: update user: %w", err)
	}

	if file != nil && previous.FileID != "" && previous.FileID != uploaded.FileID {
		s.discardPicture(ctx, previous)
	}
	if active, ok := updates["is_active"].(bool); ok && !active {
		bestEffort("users", "revoke tokens of deactivated user",
			s.tokens.RevokeUserTokens(ctx, user.ID), zap.String("user_id", user.ID))
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:  actor,
		Action:   "user.update",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{"fields": mapKeys(updates), "picture_replaced": file != nil},
	})

	return s.Get(ctx, actor, user.ID)
}

// Delete removes a user and returns the removed record. Tokens and the attachment are cleaned up best effort.
func (s *UserService) Delete(ctx context.Context, actor, id string) (*views.UserView, error) {
	ctx = ensureContext(ctx)

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	view, err := s.views.User(ctx, user, views.Options{ViewerID: actor})
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Delete(user).Error; err != nil {
		return nil, fmt.Errorf("user service: delete user: %w", err)
	}

	bestEffort("users", "revoke tokens of deleted user",
		s.tokens.RevokeUserTokens(ctx, user.ID), zap.String("user_id", user.ID))
	s.discardPicture(ctx, user.Picture)

	recordAudit(s.auditService, ctx, AuditEntry{
		ActorID:  actor,
		Action:   "user.delete",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{"email": user.Email},
	})

	return view, nil
}

func (s *UserService) load(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", strings.TrimSpace(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

func (s *UserService) emailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	query := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email)
	if exceptID != "" {
		query = query.Where("id <> ?", exceptID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("user service: check email: %w", err)
	}
	return count > 0, nil
}

// insert persists user, regenerating the username on collisions.
func (s *UserService) insert(ctx context.Context, user *models.User) error {
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		candidate := s.usernames(user.Name)

		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return fmt.Errorf("user service: check username: %w", err)
		}
		if count > 0 {
			continue
		}

		user.Username = candidate
		err := s.db.WithContext(ctx).Create(user).Error
		if err == nil {
			return nil
		}
		if !isUniqueConstraintError(err) {
			return fmt.Errorf("user service: create user: %w", err)
		}
		if violatedColumn(err, "username", "email", "phone") != "username" {
			return duplicateError(err, "username", "email", "phone")
		}
	}
	return apperrors.ErrDuplicateField.
		WithMessage("Could not generate a unique username").
		WithFields([]apperrors.FieldError{{Field: "username", Message: "username is already taken"}})
}

// discardPicture deletes an attachment that is no longer referenced.
func (s *UserService) discardPicture(ctx context.Context, picture models.Picture) {
	if picture.FileID == "" {
		return
	}
	bestEffort("users", "delete attachment", s.storage.Delete(ctx, picture.FileID), zap.String("file_id", picture.FileID))
}

func applyUserFilter(query *gorm.DB, filter UserFilter) *gorm.DB {
	if name := strings.TrimSpace(filter.Name); name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedBy != "" {
		query = query.Where("created_by = ?", filter.CreatedBy)
	}
	if filter.UpdatedBy != "" {
		query = query.Where("updated_by = ?", filter.UpdatedBy)
	}
	query = applyDateRange(query, "created_at", filter.CreatedAt)
	return applyDateRange(query, "updated_at", filter.UpdatedAt)
}

func applyDateRange(query *gorm.DB, column string, r DateRange) *gorm.DB {
	from, to := r.bounds()
	if from != nil {
		query = query.Where(column+" >= ?", *from)
	}
	if to != nil {
		query = query.Where(column+" < ?", *to)
	}
	return query
}

func uploadError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && errors.Is(appErr, apperrors.ErrUploadFailed) {
		return appErr
	}
	return apperrors.ErrUploadFailed.WithInternal(err)
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalisePhone(raw string) (string, error) {
	phone, err := validator.NormalizePhone(raw)
	if err != nil {
		return "", apperrors.NewValidation("phone", "phone must be a valid phone number")
	}
	return phone, nil
}

// generateUsername derives a slug from name plus a random suffix.
func generateUsername(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 40 {
		slug = strings.Trim(slug[:40], "-")
	}
	if slug == "" {
		slug = "user"
	}
	return slug + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
