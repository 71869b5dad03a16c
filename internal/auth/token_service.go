package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/models"
	"github.com/charlesng35/gatekeep/pkg/crypto"
	apperrors "github.com/charlesng35/gatekeep/pkg/errors"
	"github.com/charlesng35/gatekeep/pkg/metrics"
)

// Fallback validity windows used when the configuration leaves them unset.
const (
	DefaultAccessTTL        = 30 * time.Minute
	DefaultRefreshTTL       = 30 * 24 * time.Hour
	DefaultResetPasswordTTL = 10 * time.Minute
	DefaultVerifyEmailTTL   = 10 * time.Minute
)

// TokenConfig bundles the configuration required to build a TokenService.
type TokenConfig struct {
	Secret           string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	ResetPasswordTTL time.Duration
	VerifyEmailTTL   time.Duration
	Clock            func() time.Time
}

// IssuedToken is a signed token and the instant it stops being valid.
type IssuedToken struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

// AuthTokens is the pair handed out on login, registration and refresh.
type AuthTokens struct {
	Access  IssuedToken `json:"access"`
	Refresh IssuedToken `json:"refresh"`
}

// TokenService issues, verifies and revokes bearer tokens.
type TokenService struct {
	db    *gorm.DB
	store TokenStore
	cfg   TokenConfig
	now   func() time.Time
}

// NewTokenService constructs a TokenService. Users are resolved through db; issuance records live in store.
func NewTokenService(db *gorm.DB, store TokenStore, cfg TokenConfig) (*TokenService, error) {
	if db == nil {
		return nil, errors.New("token service: db is required")
	}
	if store == nil {
		return nil, errors.New("token service: store is required")
	}
	if cfg.Secret == "" {
		return nil, errEmptySecret
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.ResetPasswordTTL <= 0 {
		cfg.ResetPasswordTTL = DefaultResetPasswordTTL
	}
	if cfg.VerifyEmailTTL <= 0 {
		cfg.VerifyEmailTTL = DefaultVerifyEmailTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{db: db, store: store, cfg: cfg, now: now}, nil
}

// ResetPasswordTTL reports the validity window of reset tokens.
func (s *TokenService) ResetPasswordTTL() time.Duration { return s.cfg.ResetPasswordTTL }

// VerifyEmailTTL reports the validity window of verification tokens.
func (s *TokenService) VerifyEmailTTL() time.Duration { return s.cfg.VerifyEmailTTL }

// GenerateAuthTokens issues an unpersisted access token and a persisted refresh token.
func (s *TokenService) GenerateAuthTokens(ctx context.Context, user *models.User) (*AuthTokens, error) {
	if user == nil || user.ID == "" {
		return nil, apperrors.ErrInternalServer.WithInternal(errEmptySubject)
	}

	access, err := s.issue(ctx, user.ID, models.TokenTypeAccess, s.cfg.AccessTTL, false)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issue(ctx, user.ID, models.TokenTypeRefresh, s.cfg.RefreshTTL, true)
	if err != nil {
		return nil, err
	}

	return &AuthTokens{Access: access, Refresh: refresh}, nil
}

// ValidateAccessToken checks signature, expiry and type without consulting the store.
func (s *TokenService) ValidateAccessToken(token string) (*Claims, error) {
	claims, err := ParseToken(token, s.cfg.Secret, s.now)
	if err != nil {
		return nil, apperrors.ErrUnauthorized.WithMessage("Invalid or expired token").WithInternal(err)
	}
	if claims.Type != models.TokenTypeAccess {
		return nil, apperrors.ErrUnauthorized.WithMessage("Invalid token type")
	}
	return claims, nil
}

// VerifyToken requires a valid signature and a live persisted record of the same type and subject.
func (s *TokenService) VerifyToken(ctx context.Context, token string, tokenType models.TokenType) (*models.Token, error) {
	claims, err := ParseToken(token, s.cfg.Secret, s.now)
	if err != nil {
		return nil, apperrors.ErrUnauthorized.WithMessage("Invalid or expired token").WithInternal(err)
	}
	if claims.Type != tokenType {
		return nil, apperrors.ErrTokenNotFound
	}

	record, err := s.store.FindActive(ensureContext(ctx), crypto.HashToken(token), tokenType, claims.Subject)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, apperrors.ErrTokenNotFound
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	if !record.ExpiresAt.After(s.now()) {
		return nil, apperrors.ErrTokenNotFound
	}
	return record, nil
}

// Consume verifies a single-use token and blacklists it.
func (s *TokenService) Consume(ctx context.Context, token string, tokenType models.TokenType) (*models.Token, error) {
	record, err := s.VerifyToken(ctx, token, tokenType)
	if err != nil {
		return nil, err
	}
	if err := s.store.Blacklist(ensureContext(ctx), record.TokenHash); err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return record, nil
}

// RefreshAuth rotates a refresh token: the presented one is blacklisted and a new pair issued.
func (s *TokenService) RefreshAuth(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	record, err := s.Consume(ctx, refreshToken, models.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.loadUser(ctx, "id = ?", record.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUnauthorized.WithMessage("Please authenticate")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}
	if user.IsLocked {
		return nil, apperrors.ErrAccountLocked
	}

	return s.GenerateAuthTokens(ctx, user)
}

// Logout blacklists the supplied refresh token.
func (s *TokenService) Logout(ctx context.Context, refreshToken string) error {
	_, err := s.Consume(ctx, refreshToken, models.TokenTypeRefresh)
	return err
}

// GenerateResetPasswordToken issues a reset token for the account registered under email.
func (s *TokenService) GenerateResetPasswordToken(ctx context.Context, email string) (string, *models.User, error) {
	user, err := s.loadUser(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", nil, apperrors.ErrNotFound.WithMessage("No users found with this email")
		}
		return "", nil, err
	}

	if err := s.store.DeleteByUser(ensureContext(ctx), user.ID, models.TokenTypeResetPassword); err != nil {
		return "", nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	issued, err := s.issue(ctx, user.ID, models.TokenTypeResetPassword, s.cfg.ResetPasswordTTL, true)
	if err != nil {
		return "", nil, err
	}
	return issued.Token, user, nil
}

// GenerateVerifyEmailToken issues an email verification token for userID.
func (s *TokenService) GenerateVerifyEmailToken(ctx context.Context, userID string) (string, *models.User, error) {
	user, err := s.loadUser(ctx, "id = ?", userID)
	if err != nil {
		return "", nil, err
	}

	if err := s.store.DeleteByUser(ensureContext(ctx), user.ID, models.TokenTypeVerifyEmail); err != nil {
		return "", nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	issued, err := s.issue(ctx, user.ID, models.TokenTypeVerifyEmail, s.cfg.VerifyEmailTTL, true)
	if err != nil {
		return "", nil, err
	}
	return issued.Token, user, nil
}

// RevokeUserTokens removes the user's persisted tokens, limited to types when given.
func (s *TokenService) RevokeUserTokens(ctx context.Context, userID string, types ...models.TokenType) error {
	if err := s.store.DeleteByUser(ensureContext(ctx), userID, types...); err != nil {
		return apperrors.ErrInternalServer.WithInternal(err)
	}
	return nil
}

// PurgeExpired deletes expired and blacklisted records.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := s.store.PurgeExpired(ensureContext(ctx), s.now())
	if err != nil {
		return 0, err
	}
	metrics.TokensPurged.Add(float64(removed))
	return removed, nil
}

func (s *TokenService) issue(ctx context.Context, userID string, tokenType models.TokenType, ttl time.Duration, persist bool) (IssuedToken, error) {
	issuedAt := s.now().UTC().Truncate(time.Second)
	expires := issuedAt.Add(ttl)

	token, err := GenerateToken(userID, expires, tokenType, s.cfg.Secret, issuedAt)
	if err != nil {
		return IssuedToken{}, apperrors.ErrInternalServer.WithInternal(err)
	}

	if persist {
		record := &models.Token{
			TokenHash: crypto.HashToken(token),
			UserID:    userID,
			Type:      tokenType,
			ExpiresAt: expires,
		}
		if err := s.store.Save(ensureContext(ctx), record); err != nil {
			return IssuedToken{}, apperrors.ErrInternalServer.WithInternal(err)
		}
	}

	metrics.TokensIssued.WithLabelValues(string(tokenType)).Inc()
	return IssuedToken{Token: token, Expires: expires}, nil
}

func (s *TokenService) loadUser(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ensureContext(ctx)).Take(&user, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound.WithMessage("User not found")
	}
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(err)
	}
	return &user, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
