package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/registration-service/internal/identity"
	"github.com/ayush/registration-service/internal/models"
)

// MongoStore handles account persistence in MongoDB.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("accounts")}
}

// EnsureIndexes creates the unique username index Insert relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "normalized_username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("normalized_username_unique"),
		},
		{
			Keys:    bson.D{{Key: "normalized_email", Value: 1}},
			Options: options.Index().SetName("normalized_email"),
		},
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByNormalizedUsername(ctx context.Context, normalized string) (*models.Account, error) {
	var a models.Account
	err := s.col.FindOne(ctx, bson.M{"normalized_username": normalized}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongo find account: %w", err)
	}
	return &a, nil
}

// Insert relies on the unique index: a duplicate key write error means
// another account already holds the normalized username.
func (s *MongoStore) Insert(ctx context.Context, a *models.Account) error {
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()
	if _, err := s.col.InsertOne(ctx, a); err != nil {
		a.ID = ""
		if mongo.IsDuplicateKeyError(err) {
			return identity.ErrDuplicateUsername
		}
		return fmt.Errorf("mongo insert account: %w", err)
	}
	return nil
}
