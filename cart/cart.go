// Package cart holds the shopper's line items on the client side, mirrored
// to local durable storage after every change.
package cart

import (
	"encoding/json"
	"fmt"
	"sync"

	"papeleria/globals"
	"papeleria/models"

	"github.com/shopspring/decimal"
)

// StorageKey is the single storage slot holding the JSON array of items.
const StorageKey = "cart"

type Item struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Stock     int     `json:"stock"`
}

func (i Item) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Snapshot is what observers receive after each mutation.
type Snapshot struct {
	Items []Item
	Open  bool
}

type Store struct {
	mu        sync.Mutex
	items     []Item
	open      bool
	storage   Storage
	observers map[int]func(Snapshot)
	nextObs   int
}

// New hydrates a store from storage. Missing or unreadable data yields an
// empty cart.
func New(storage Storage) *Store {
	s := &Store{storage: storage, observers: make(map[int]func(Snapshot))}
	data, err := storage.Load(StorageKey)
	if err != nil {
		globals.Log.Warn().Err(err).Msg("cart: load from storage")
		return s
	}
	if len(data) == 0 {
		return s
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		globals.Log.Warn().Err(err).Msg("cart: discarding unreadable storage")
		return s
	}
	for _, it := range items {
		if it.ProductID == "" || s.index(it.ProductID) >= 0 {
			continue
		}
		if it.Quantity < 1 {
			it.Quantity = 1
		}
		s.items = append(s.items, it)
	}
	return s
}

func (s *Store) index(id string) int {
	for i := range s.items {
		if s.items[i].ProductID == id {
			return i
		}
	}
	return -1
}

// Add increments the line for p or inserts it with quantity 1, refreshing
// the price and stock snapshot. The cart panel is always opened.
func (s *Store) Add(p models.Product) error {
	s.mu.Lock()
	if i := s.index(p.ProductID); i >= 0 {
		s.items[i].Quantity++
		s.items[i].Name = p.Name
		s.items[i].Price = p.Price
		s.items[i].Stock = p.Stock
	} else {
		s.items = append(s.items, Item{
			ProductID: p.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  1,
			Stock:     p.Stock,
		})
	}
	s.open = true
	return s.commit()
}

// Remove deletes the line for id. Removing an absent id is a no-op.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return s.commit()
}

// SetQuantity sets the line for id to n, raising anything below 1 to 1.
// Stock bounds are the caller's concern.
func (s *Store) SetQuantity(id string, n int) error {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return nil
	}
	s.items[i].Quantity = n
	return s.commit()
}

func (s *Store) Clear() error {
	s.mu.Lock()
	s.items = nil
	return s.commit()
}

func (s *Store) Open() {
	s.mu.Lock()
	s.open = true
	s.notify()
}

func (s *Store) Close() {
	s.mu.Lock()
	s.open = false
	s.notify()
}

func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Items returns a copy of the current lines in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items...)
}

func (s *Store) Item(id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(id); i >= 0 {
		return s.items[i], true
	}
	return Item{}, false
}

// Count is the total number of units across all lines.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return total(s.items)
}

func total(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// Subscribe registers fn for snapshots after every change and returns a
// function that cancels the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// commit writes the items to storage and notifies observers. It must be
// called with mu held and releases it. The in-memory change stands even when
// the write fails.
func (s *Store) commit() error {
	items := s.items
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err == nil {
		err = s.storage.Save(StorageKey, data)
	}
	s.notify()
	if err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

// notify must be called with mu held and releases it before calling out.
func (s *Store) notify() {
	snap := Snapshot{Items: append([]Item(nil), s.items...), Open: s.open}
	fns := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
