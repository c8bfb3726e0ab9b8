// Package catalog caches the product list on the client and answers stock
// questions for quantity changes.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"papeleria/models"
)

var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrExceedsStock   = errors.New("quantity exceeds available stock")
	ErrBelowMinimum   = errors.New("quantity must be at least 1")
)

type Source interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// Inventory is fetched once from its Source, on first use or through Load.
type Inventory struct {
	src Source

	mu       sync.RWMutex
	loaded   bool
	order    []string
	products map[string]models.Product
}

func NewInventory(src Source) *Inventory {
	return &Inventory{src: src}
}

// Load fetches the catalog unless it is already cached.
func (inv *Inventory) Load(ctx context.Context) error {
	inv.mu.RLock()
	loaded := inv.loaded
	inv.mu.RUnlock()
	if loaded {
		return nil
	}
	return inv.Refresh(ctx)
}

// Refresh replaces the cache with a fresh fetch. On error the previous
// cache is kept.
func (inv *Inventory) Refresh(ctx context.Context) error {
	list, err := inv.src.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	byID := make(map[string]models.Product, len(list))
	order := make([]string, 0, len(list))
	for _, p := range list {
		if _, dup := byID[p.ProductID]; !dup {
			order = append(order, p.ProductID)
		}
		byID[p.ProductID] = p
	}

	inv.mu.Lock()
	inv.products = byID
	inv.order = order
	inv.loaded = true
	inv.mu.Unlock()
	return nil
}

func (inv *Inventory) Products(ctx context.Context) ([]models.Product, error) {
	if err := inv.Load(ctx); err != nil {
		return nil, err
	}
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	out := make([]models.Product, 0, len(inv.order))
	for _, id := range inv.order {
		out = append(out, inv.products[id])
	}
	return out, nil
}

func (inv *Inventory) Product(ctx context.Context, id string) (models.Product, error) {
	if err := inv.Load(ctx); err != nil {
		return models.Product{}, err
	}
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	p, ok := inv.products[id]
	if !ok {
		return models.Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	return p, nil
}

func (inv *Inventory) Stock(ctx context.Context, id string) (int, error) {
	p, err := inv.Product(ctx, id)
	if err != nil {
		return 0, err
	}
	return p.Stock, nil
}

// CheckQuantity reports whether n units of id fit the known stock.
func (inv *Inventory) CheckQuantity(ctx context.Context, id string, n int) error {
	stock, err := inv.Stock(ctx, id)
	if err != nil {
		return err
	}
	if n < 1 {
		return ErrBelowMinimum
	}
	if n > stock {
		return fmt.Errorf("%w: %d requested, %d available", ErrExceedsStock, n, stock)
	}
	return nil
}
