package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"papeleria/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Store is the user collection as seen by the rest of the API.
type Store interface {
	FindUser(ctx context.Context, userID string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	CreateUser(ctx context.Context, u models.User) error
	UpdateContact(ctx context.Context, userID string, c models.ContactUpdate) (models.User, error)
}

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

func (s *MongoStore) FindUser(ctx context.Context, userID string) (models.User, error) {
	return s.findOne(ctx, bson.M{"_id": userID})
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return s.findOne(ctx, bson.M{"email": NormalizeEmail(email)})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (models.User, error) {
	var u models.User
	err := s.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return u, ErrUserNotFound
	}
	if err != nil {
		return u, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, u models.User) error {
	if _, err := s.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdateContact overwrites the shipping contact fields. Last write wins;
// an email held by another user is ErrEmailTaken.
func (s *MongoStore) UpdateContact(ctx context.Context, userID string, c models.ContactUpdate) (models.User, error) {
	update := bson.M{"$set": bson.M{
		"email":        NormalizeEmail(c.Email),
		"address":      c.Address,
		"casa":         c.Unit,
		"phone_number": c.Phone,
		"updated_at":   time.Now(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var u models.User
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return u, ErrUserNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		return u, ErrEmailTaken
	}
	if err != nil {
		return u, fmt.Errorf("update user contact: %w", err)
	}
	return u, nil
}
