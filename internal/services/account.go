package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/internal/views"
	"github.com/charlesng35/gatekeep/pkg/crypto"
	apperrors "github.com/charlesng35/gatekeep/pkg/errors"
	"github.com/charlesng35/gatekeep/pkg/metrics"
	"github.com/charlesng35/gatekeep/pkg/validator"
)

// DefaultAttemptLimit applies to every counter left at zero.
const DefaultAttemptLimit = 5

// AttemptLimits caps the per-account attempt counters.
type AttemptLimits struct {
	Login          int
	ResetPassword  int
	VerifyEmail    int
	ChangeEmail    int
	ChangePassword int
}

func (l AttemptLimits) withDefaults() AttemptLimits {
	for _, v := range []*int{&l.Login, &l.ResetPassword, &l.VerifyEmail, &l.ChangeEmail, &l.ChangePassword} {
		if *v <= 0 {
			*v = DefaultAttemptLimit
		}
	}
	return l
}

// Authenticate checks credentials. Failed attempts are counted and the account
// is locked once the login limit is reached.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", normaliseEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	if user.IsLocked {
		metrics.AuthAttempts.WithLabelValues("locked").Inc()
		return nil, apperrors.ErrAccountLocked
	}
	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrAccountDisabled
	}

	if !crypto.VerifyPassword(user.Password, password) {
		locked, err := s.countFailure(ctx, &user, "login_attempts", user.LoginAttempts, s.limits.Login)
		if err != nil {
			return nil, err
		}
		recordAudit(s.auditService, ctx, AuditEntry{ActorID: user.ID, Action: "auth.login", Resource: user.ID, Result: "failure"})
		if locked {
			metrics.AuthAttempts.WithLabelValues("locked").Inc()
			return nil, apperrors.ErrAccountLocked
		}
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if user.LoginAttempts > 0 {
		if err := s.db.WithContext(ctx).Model(&user).UpdateColumn("login_attempts", 0).Error; err != nil {
			return nil, fmt.Errorf("user service: reset login attempts: %w", err)
		}
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	recordAudit(s.auditService, ctx, AuditEntry{ActorID: user.ID, Action: "auth.login", Resource: user.ID, Result: "success"})
	return &user, nil
}

// Login authenticates and issues a token pair.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	tokens, err := s.tokens.GenerateAuthTokens(ctx, user)
	if err != nil {
		return nil, err
	}
	view, err := s.views.User(ctx, user, views.Options{Owner: true})
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: view, Tokens: tokens}, nil
}

// ChangePassword replaces the password after checking the current one.
// Other sessions are signed out.
func (s *UserService) ChangePassword(ctx context.Context, id, current, next string) error {
	ctx = ensureContext(ctx)

	if err := checkPassword("newPassword", next); err != nil {
		return err
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if user.ChangePasswordAttempts >= s.limits.ChangePassword {
		return apperrors.ErrRateLimit.WithMessage("Too many password change attempts")
	}

	if !crypto.VerifyPassword(user.Password, current) {
		if _, err := s.countFailure(ctx, user, "change_password_attempts", user.ChangePasswordAttempts, 0); err != nil {
			return err
		}
		return apperrors.NewValidation("currentPassword", "Current password is incorrect")
	}
	if current == next {
		return apperrors.ErrNoChange.WithMessage("New password must differ from the current one")
	}

	if err := s.setPassword(ctx, user, next, map[string]any{"change_password_attempts": 0}); err != nil {
		return err
	}

	recordAudit(s.auditService, ctx, AuditEntry{ActorID: user.ID, Action: "user.password_change", Resource: user.ID, Result: "success"})
	return nil
}

// RequestPasswordReset issues a reset token and notifies the account holder.
func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", normaliseEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound.WithMessage("No users found with this email")
	}
	if err != nil {
		return fmt.Errorf("user service: load user: %w", err)
	}
	if user.ResetPasswordAttempts >= s.limits.ResetPassword {
		return apperrors.ErrRateLimit.WithMessage("Too many password reset requests")
	}

	token, _, err := s.tokens.GenerateResetPasswordToken(ctx, user.Email)
	if err != nil {
		return err
	}
	if err := s.bump(ctx, &user, "reset_password_attempts"); err != nil {
		return err
	}

	bestEffort("users", "password reset notification",
		s.notifier.PasswordResetRequested(ctx, &user, token, s.tokens.ResetPasswordTTL()), zap.String("user_id", user.ID))
	recordAudit(s.auditService, ctx, AuditEntry{ActorID: user.ID, Action: "auth.password_reset_request", Resource: user.ID, Result: "success"})
	return nil
}

// ResetPassword consumes a reset token and sets a new password. The reset also
// clears the login lock and revokes every outstanding token.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	ctx = ensureContext(ctx)

	if err := checkPassword("password", password); err != nil {
		return err
	}

	record, err := s.tokens.Consume(ctx, token, models.TokenTypeResetPassword)
	if err != nil {
		return err
	}
	user, err := s.load(ctx, record.UserID)
	if err != nil {
		return err
	}

	if err := s.setPassword(ctx, user, password, map[string]any{
		"reset_password_attempts": 0,
		"login_attempts":          0,
		"is_locked":               false,
	}); err != nil {
		return err
	}

	recordAudit(s.auditService, ctx, AuditEntry{ActorID: user.ID, Action: "auth.password_reset", Resource: user.ID, Result: "success"})
	return nil
}

// SendVerificationEmail issues a fresh verification token for an unverified account.
func (s *UserService) SendVerificationEmail(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return apperrors.NewBadRequest("Email is already verified")
	}
	if user.VerifyEmailAttempts >= s.limits.VerifyEmail {
		return apperrors.ErrRateLimit.WithMessage("Too many verification requests")
	}

	token, _, err := s.tokens.GenerateVerifyEmailToken(ctx, user.ID)
	if err != nil {
		return err
	}
	if err := s.bump(ctx, user, "verify_email_attempts"); err != nil {
		return err
	}

	bestEffort("users", "verification notification",
		s.notifier.VerificationRequested(ctx, user, token, s.tokens.VerifyEmailTTL()), zap.String("user_id", user.ID))
	return nil
}

// MarkEmailVerified consumes a verification token and flags the email as verified.
func (s *UserService) MarkEmailVerified(ctx context.Context, token string) (*views.UserView, error) {
	ctx = ensureContext(ctx)

	record, err := s.tokens.Consume(ctx, token, models.TokenTypeVerifyEmail)
	if err != nil {
		return nil, err
	}
	user, err := s.load(ctx, record.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]any{
		"email_verified":        true,
		"verify_email_attempts": 0,
		"change_email_attempts": 0,
	}).Error; err != nil {
		return nil, fmt.Errorf("user service: mark email verified: %w", err)
	}
	bestEffort("users", "revoke verification tokens",
		s.tokens.RevokeUserTokens(ctx, user.ID, models.TokenTypeVerifyEmail), zap.String("user_id", user.ID))

	recordAudit(s.auditService, ctx, AuditEntry{ActorID: user.ID, Action: "auth.verify_email", Resource: user.ID, Result: "success"})
	return s.views.User(ctx, user, views.Options{Owner: true})
}

func (s *UserService) setPassword(ctx context.Context, user *models.User, password string, extra map[string]any) error {
	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}

	updates := map[string]any{"password": hashed}
	for key, value := range extra {
		updates[key] = value
	}
	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("user service: update password: %w", err)
	}

	bestEffort("users", "revoke tokens after password change",
		s.tokens.RevokeUserTokens(ctx, user.ID, models.TokenTypeRefresh, models.TokenTypeResetPassword),
		zap.String("user_id", user.ID))
	return nil
}

// countFailure increments column and locks the account once limit is reached. A zero limit never locks.
func (s *UserService) countFailure(ctx context.Context, user *models.User, column string, current, limit int) (bool, error) {
	updates := map[string]any{column: current + 1}
	locked := limit > 0 && current+1 >= limit
	if locked {
		updates["is_locked"] = true
	}
	if err := s.db.WithContext(ctx).Model(user).UpdateColumns(updates).Error; err != nil {
		return false, fmt.Errorf("user service: record failed attempt: %w", err)
	}
	return locked, nil
}

func (s *UserService) bump(ctx context.Context, user *models.User, column string) error {
	if err := s.db.WithContext(ctx).Model(user).UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error; err != nil {
		return fmt.Errorf("user service: increment %s: %w", column, err)
	}
	return nil
}

func checkPassword(field, password string) error {
	if err := validator.CheckPassword(password); err != nil {
		return apperrors.NewValidation(field, strings.TrimSpace(field+" "+err.Error()))
	}
	return nil
}
