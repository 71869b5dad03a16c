// Package mongostore keeps token issuance records in a MongoDB collection.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/charlesng35/gatekeep/internal/auth"
	"github.com/charlesng35/gatekeep/internal/ids"
	"github.com/charlesng35/gatekeep/internal/models"
)

// CollectionName is the collection tokens are written to.
const CollectionName = "tokens"

type document struct {
	ID          string    `bson:"_id"`
	TokenHash   string    `bson:"token_hash"`
	UserID      string    `bson:"user_id"`
	Type        string    `bson:"type"`
	ExpiresAt   time.Time `bson:"expires_at"`
	Blacklisted bool      `bson:"blacklisted"`
	CreatedAt   time.Time `bson:"created_at"`
}

func (d document) toModel() *models.Token {
	return &models.Token{
		ID:          d.ID,
		TokenHash:   d.TokenHash,
		UserID:      d.UserID,
		Type:        models.TokenType(d.Type),
		ExpiresAt:   d.ExpiresAt.UTC(),
		Blacklisted: d.Blacklisted,
		CreatedAt:   d.CreatedAt.UTC(),
	}
}

// Store implements auth.TokenStore on MongoDB.
type Store struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ auth.TokenStore = (*Store)(nil)

// New returns a store bound to the tokens collection of db.
func New(db *mongo.Database) (*Store, error) {
	if db == nil {
		return nil, errors.New("mongostore: database is required")
	}
	return &Store{collection: db.Collection(CollectionName), now: time.Now}, nil
}

// Connect dials uri and returns a store for database together with the client to close on shutdown.
func Connect(ctx context.Context, uri, database string) (*Store, *mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongostore: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongostore: ping: %w", err)
	}
	store, err := New(client.Database(database))
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return store, client, nil
}

// EnsureIndexes creates lookup indexes and a TTL index that lets MongoDB expire records on its own.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "token_hash", Value: 1}, {Key: "type", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("mongostore: ensure indexes: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, token *models.Token) error {
	if token.ID == "" {
		token.ID = ids.New(ids.PrefixToken)
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = s.now().UTC()
	}

	_, err := s.collection.InsertOne(ctx, document{
		ID:          token.ID,
		TokenHash:   token.TokenHash,
		UserID:      token.UserID,
		Type:        string(token.Type),
		ExpiresAt:   token.ExpiresAt,
		Blacklisted: token.Blacklisted,
		CreatedAt:   token.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("mongostore: save: %w", err)
	}
	return nil
}

func (s *Store) FindActive(ctx context.Context, hash string, tokenType models.TokenType, userID string) (*models.Token, error) {
	filter := bson.M{
		"token_hash":  hash,
		"type":        string(tokenType),
		"user_id":     userID,
		"blacklisted": false,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var doc document
	err := s.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, auth.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongostore: find: %w", err)
	}
	return doc.toModel(), nil
}

func (s *Store) Blacklist(ctx context.Context, hash string) error {
	res, err := s.collection.UpdateMany(ctx,
		bson.M{"token_hash": hash, "blacklisted": false},
		bson.M{"$set": bson.M{"blacklisted": true}},
	)
	if err != nil {
		return fmt.Errorf("mongostore: blacklist: %w", err)
	}
	if res.MatchedCount == 0 {
		return auth.ErrRecordNotFound
	}
	return nil
}

func (s *Store) DeleteByUser(ctx context.Context, userID string, types ...models.TokenType) error {
	filter := bson.M{"user_id": userID}
	if len(types) > 0 {
		values := make([]string, len(types))
		for i, t := range types {
			values[i] = string(t)
		}
		filter["type"] = bson.M{"$in": values}
	}
	if _, err := s.collection.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("mongostore: delete by user: %w", err)
	}
	return nil
}

func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.collection.DeleteMany(ctx, bson.M{
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$lt": now.UTC()}},
			bson.M{"blacklisted": true},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("mongostore: purge: %w", err)
	}
	return res.DeletedCount, nil
}
