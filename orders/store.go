package orders

import (
	"context"
	"errors"
	"fmt"

	"papeleria/models"
	"papeleria/users"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Filter narrows order listings. Zero values mean "any".
type Filter struct {
	UserID string
	Status string
	Skip   int64
	Limit  int64
}

// Store persists orders and the user contact side effect of a checkout.
type Store interface {
	InsertOrder(ctx context.Context, o models.Order) error
	UpdateUserContact(ctx context.Context, userID string, c models.ContactUpdate) (models.User, error)
	FindOrder(ctx context.Context, orderID string) (models.Order, error)
	ListOrders(ctx context.Context, f Filter) ([]models.Order, error)
	UpdateOrder(ctx context.Context, orderID string, upd models.OrderUpdate) (models.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
	// RunInTx runs fn so that every write made through the ctx it receives
	// commits or aborts together.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type MongoStore struct {
	client *mongo.Client
	orders *mongo.Collection
	users  users.Store
}

func NewMongoStore(client *mongo.Client, orders *mongo.Collection, u users.Store) *MongoStore {
	return &MongoStore{client: client, orders: orders, users: u}
}

func (s *MongoStore) InsertOrder(ctx context.Context, o models.Order) error {
	if _, err := s.orders.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *MongoStore) UpdateUserContact(ctx context.Context, userID string, c models.ContactUpdate) (models.User, error) {
	return s.users.UpdateContact(ctx, userID, c)
}

func (s *MongoStore) FindOrder(ctx context.Context, orderID string) (models.Order, error) {
	var o models.Order
	err := s.orders.FindOne(ctx, bson.M{"_id": orderID}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return o, ErrOrderNotFound
	}
	if err != nil {
		return o, fmt.Errorf("find order: %w", err)
	}
	return o, nil
}

func (s *MongoStore) ListOrders(ctx context.Context, f Filter) ([]models.Order, error) {
	filter := bson.M{}
	if f.UserID != "" {
		filter["userId"] = f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}

	cursor, err := s.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer cursor.Close(ctx)

	out := []models.Order{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return out, nil
}

func (s *MongoStore) UpdateOrder(ctx context.Context, orderID string, upd models.OrderUpdate) (models.Order, error) {
	set := bson.M{}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.Products != nil {
		set["products"] = *upd.Products
	}
	if upd.Total != nil {
		set["total"] = *upd.Total
	}
	if len(set) == 0 {
		return s.FindOrder(ctx, orderID)
	}

	var o models.Order
	err := s.orders.FindOneAndUpdate(ctx, bson.M{"_id": orderID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return o, ErrOrderNotFound
	}
	if err != nil {
		return o, fmt.Errorf("update order: %w", err)
	}
	return o, nil
}

func (s *MongoStore) DeleteOrder(ctx context.Context, orderID string) error {
	res, err := s.orders.DeleteOne(ctx, bson.M{"_id": orderID})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// RunInTx needs a replica set or sharded cluster; standalone servers reject
// the transaction and the error surfaces to the caller.
func (s *MongoStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
