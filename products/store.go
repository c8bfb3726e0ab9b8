package products

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"papeleria/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrProductNotFound = errors.New("product not found")

type Store interface {
	List(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id string) (models.Product, error)
	Create(ctx context.Context, p models.Product) error
	Replace(ctx context.Context, p models.Product) error
	Delete(ctx context.Context, id string) error
}

type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(coll *mongo.Collection) *MongoStore {
	return &MongoStore{coll: coll}
}

func (s *MongoStore) List(ctx context.Context) ([]models.Product, error) {
	cursor, err := s.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"name": 1}))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer cursor.Close(ctx)

	out := []models.Product{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (models.Product, error) {
	var p models.Product
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return p, ErrProductNotFound
	}
	if err != nil {
		return p, fmt.Errorf("find product: %w", err)
	}
	return p, nil
}

func (s *MongoStore) Create(ctx context.Context, p models.Product) error {
	if _, err := s.coll.InsertOne(ctx, p); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *MongoStore) Replace(ctx context.Context, p models.Product) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.ProductID}, p)
	if err != nil {
		return fmt.Errorf("replace product: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

// MemoryStore serves the catalog from process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

func NewMemoryStore(seed ...models.Product) *MemoryStore {
	s := &MemoryStore{products: make(map[string]models.Product)}
	for _, p := range seed {
		s.products[p.ProductID] = p
	}
	return s
}

func (s *MemoryStore) List(context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return p, ErrProductNotFound
	}
	return p, nil
}

func (s *MemoryStore) Create(_ context.Context, p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ProductID] = p
	return nil
}

func (s *MemoryStore) Replace(_ context.Context, p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ProductID]; !ok {
		return ErrProductNotFound
	}
	s.products[p.ProductID] = p
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}
