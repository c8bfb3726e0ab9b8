package orders

import (
	"context"
	"sort"
	"sync"

	"papeleria/models"
	"papeleria/users"
)

// MemoryStore is an in-process Store. Transactions are serialized; a failed
// one puts back only the orders and users it wrote, so writes made outside
// the transaction survive its rollback.
type MemoryStore struct {
	txMu   sync.Mutex
	mu     sync.RWMutex
	orders map[string]models.Order
	users  *users.MemoryStore
}

// undoLog holds the pre-transaction value of every key a transaction wrote.
// A nil order pointer means the key did not exist.
type undoLog struct {
	orders map[string]*models.Order
	users  map[string]models.User
}

type undoKey struct{}

func undoFrom(ctx context.Context) *undoLog {
	u, _ := ctx.Value(undoKey{}).(*undoLog)
	return u
}

func NewMemoryStore(u *users.MemoryStore) *MemoryStore {
	return &MemoryStore{orders: make(map[string]models.Order), users: u}
}

// remember records the current value of orderID once per transaction.
// Callers hold s.mu.
func (s *MemoryStore) remember(ctx context.Context, orderID string) {
	undo := undoFrom(ctx)
	if undo == nil {
		return
	}
	if _, seen := undo.orders[orderID]; seen {
		return
	}
	if o, ok := s.orders[orderID]; ok {
		undo.orders[orderID] = &o
		return
	}
	undo.orders[orderID] = nil
}

func (s *MemoryStore) InsertOrder(ctx context.Context, o models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remember(ctx, o.OrderID)
	s.orders[o.OrderID] = o
	return nil
}

func (s *MemoryStore) UpdateUserContact(ctx context.Context, userID string, c models.ContactUpdate) (models.User, error) {
	if undo := undoFrom(ctx); undo != nil {
		if _, seen := undo.users[userID]; !seen {
			if prev, err := s.users.FindUser(ctx, userID); err == nil {
				undo.users[userID] = prev
			}
		}
	}
	return s.users.UpdateContact(ctx, userID, c)
}

func (s *MemoryStore) FindOrder(_ context.Context, orderID string) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *MemoryStore) ListOrders(_ context.Context, f Filter) ([]models.Order, error) {
	s.mu.RLock()
	out := []models.Order{}
	for _, o := range s.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, o)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Skip > 0 {
		if f.Skip >= int64(len(out)) {
			return []models.Order{}, nil
		}
		out = out[f.Skip:]
	}
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateOrder(ctx context.Context, orderID string, upd models.OrderUpdate) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return models.Order{}, ErrOrderNotFound
	}
	s.remember(ctx, orderID)
	if upd.Status != nil {
		o.Status = *upd.Status
	}
	if upd.Products != nil {
		o.Products = append([]models.LineItem(nil), (*upd.Products)...)
	}
	if upd.Total != nil {
		o.Total = *upd.Total
	}
	s.orders[orderID] = o
	return o, nil
}

func (s *MemoryStore) DeleteOrder(ctx context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[orderID]; !ok {
		return ErrOrderNotFound
	}
	s.remember(ctx, orderID)
	delete(s.orders, orderID)
	return nil
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	undo := &undoLog{orders: make(map[string]*models.Order), users: make(map[string]models.User)}
	if err := fn(context.WithValue(ctx, undoKey{}, undo)); err != nil {
		s.mu.Lock()
		for id, prev := range undo.orders {
			if prev == nil {
				delete(s.orders, id)
				continue
			}
			s.orders[id] = *prev
		}
		s.mu.Unlock()
		for _, prev := range undo.users {
			s.users.Put(prev)
		}
		return err
	}
	return nil
}

// Count reports how many orders are stored.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}
