package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var (
	UserCollection    *mongo.Collection
	ProductCollection *mongo.Collection
	OrderCollection   *mongo.Collection
	Client            *mongo.Client
)

// Connect dials MongoDB, pings the primary and binds the collection handles.
func Connect(ctx context.Context, uri, database string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	Client = client
	UserCollection = client.Database(database).Collection("users")
	ProductCollection = client.Database(database).Collection("products")
	OrderCollection = client.Database(database).Collection("orders")
	return nil
}

// CreateIndexes sets up the lookups the API relies on.
func CreateIndexes(ctx context.Context) error {
	if _, err := UserCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"email": 1},
		Options: options.Index().SetUnique(true).SetName("unique_email"),
	}); err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	if _, err := OrderCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("user_orders"),
		},
		{
			Keys:    bson.M{"idempotencyKey": 1},
			Options: options.Index().SetName("idempotency_key").SetSparse(true),
		},
	}); err != nil {
		return fmt.Errorf("orders index: %w", err)
	}
	return nil
}

func Disconnect(ctx context.Context) error {
	if Client == nil {
		return nil
	}
	return Client.Disconnect(ctx)
}
