package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/gatekeep/internal/models"
)

// ErrRecordNotFound is returned by stores when no live record matches.
var ErrRecordNotFound = errors.New("token store: record not found")

// TokenStore persists issuance records keyed by the token digest.
type TokenStore interface {
	Save(ctx context.Context, token *models.Token) error
	// FindActive returns the non-blacklisted record matching hash, type and user.
	FindActive(ctx context.Context, hash string, tokenType models.TokenType, userID string) (*models.Token, error)
	// Blacklist marks every record with hash as blacklisted.
	Blacklist(ctx context.Context, hash string) error
	// DeleteByUser removes the user's records, limited to types when given.
	DeleteByUser(ctx context.Context, userID string, types ...models.TokenType) error
	// PurgeExpired removes records that expired before now or were blacklisted.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// DatabaseTokenStore implements TokenStore on the primary SQL database.
type DatabaseTokenStore struct {
	db *gorm.DB
}

// NewDatabaseTokenStore constructs a gorm-backed token store.
func NewDatabaseTokenStore(db *gorm.DB) (*DatabaseTokenStore, error) {
	if db == nil {
		return nil, errors.New("token store: db is required")
	}
	return &DatabaseTokenStore{db: db}, nil
}

func (s *DatabaseTokenStore) Save(ctx context.Context, token *models.Token) error {
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("token store: save: %w", err)
	}
	return nil
}

func (s *DatabaseTokenStore) FindActive(ctx context.Context, hash string, tokenType models.TokenType, userID string) (*models.Token, error) {
	var token models.Token
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND type = ? AND user_id = ? AND blacklisted = ?", hash, tokenType, userID, false).
		Order("created_at DESC").
		Take(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("token store: find: %w", err)
	}
	return &token, nil
}

func (s *DatabaseTokenStore) Blacklist(ctx context.Context, hash string) error {
	res := s.db.WithContext(ctx).
		Model(&models.Token{}).
		Where("token_hash = ? AND blacklisted = ?", hash, false).
		Update("blacklisted", true)
	if res.Error != nil {
		return fmt.Errorf("token store: blacklist: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *DatabaseTokenStore) DeleteByUser(ctx context.Context, userID string, types ...models.TokenType) error {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if len(types) > 0 {
		query = query.Where("type IN ?", types)
	}
	if err := query.Delete(&models.Token{}).Error; err != nil {
		return fmt.Errorf("token store: delete by user: %w", err)
	}
	return nil
}

func (s *DatabaseTokenStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at < ? OR blacklisted = ?", now.UTC(), true).
		Delete(&models.Token{})
	if res.Error != nil {
		return 0, fmt.Errorf("token store: purge: %w", res.Error)
	}
	return res.RowsAffected, nil
}
