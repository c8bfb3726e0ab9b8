package storefront

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"papeleria/cart"
	"papeleria/catalog"
	"papeleria/globals"
	"papeleria/models"
	"papeleria/utils"
)

var (
	ErrMissingProfileField = errors.New("missing profile field")
	ErrEmptyCart           = errors.New("cart is empty")
)

// Profile is the shipping contact the shopper fills in at checkout.
type Profile struct {
	UserID  string
	Email   string
	Address string
	Unit    string
	Phone   string
	State   string
}

func (p Profile) missing() []string {
	var out []string
	for _, f := range []struct{ name, val string }{
		{"userId", p.UserID},
		{"email", p.Email},
		{"direccion", p.Address},
		{"telefono", p.Phone},
		{"state", p.State},
	} {
		if strings.TrimSpace(f.val) == "" {
			out = append(out, f.name)
		}
	}
	return out
}

type Options struct {
	// ClearCartOnSuccess empties the cart after the server accepts an order.
	// Off by default: the cart is kept until the shopper clears it.
	ClearCartOnSuccess bool
}

type Session struct {
	cart      *cart.Store
	inventory *catalog.Inventory
	client    *Client
	opts      Options
	newKey    func() string

	mu          sync.Mutex
	pendingKey  string
	pendingHash string
}

func NewSession(c *cart.Store, inv *catalog.Inventory, client *Client, opts Options) *Session {
	return &Session{cart: c, inventory: inv, client: client, opts: opts, newKey: utils.GetUUID}
}

func (s *Session) Cart() *cart.Store { return s.cart }

// AddToCart adds one unit of id unless that would exceed the known stock.
func (s *Session) AddToCart(ctx context.Context, id string) error {
	p, err := s.inventory.Product(ctx, id)
	if err != nil {
		return err
	}
	want := 1
	if it, ok := s.cart.Item(id); ok {
		want = it.Quantity + 1
	}
	if err := s.inventory.CheckQuantity(ctx, id, want); err != nil {
		return err
	}
	return s.cart.Add(p)
}

// ChangeQuantity sets the line for id to n. Values below 1 become 1; values
// above the known stock are refused and the cart is left as it was.
func (s *Session) ChangeQuantity(ctx context.Context, id string, n int) error {
	if _, ok := s.cart.Item(id); !ok {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if err := s.inventory.CheckQuantity(ctx, id, n); err != nil {
		return err
	}
	return s.cart.SetQuantity(id, n)
}

// BuildRequest turns the current cart and profile into a checkout request.
func (s *Session) BuildRequest(p Profile) (models.CreateOrderRequest, error) {
	if missing := p.missing(); len(missing) > 0 {
		return models.CreateOrderRequest{}, fmt.Errorf("%w: %s", ErrMissingProfileField, strings.Join(missing, ", "))
	}
	items := s.cart.Items()
	if len(items) == 0 {
		return models.CreateOrderRequest{}, ErrEmptyCart
	}

	lines := make([]models.LineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, models.LineItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price})
	}
	// The wire format carries total as a JSON number, so the exact decimal
	// sum is rounded to the nearest float64 here. The bool only says whether
	// that rounding happened.
	total, _ := s.cart.Total().Float64()
	unit := p.Unit
	return models.CreateOrderRequest{
		UserID:    p.UserID,
		Email:     p.Email,
		Casa:      &unit,
		Telefono:  p.Phone,
		Products:  lines,
		Total:     &total,
		Direccion: p.Address,
		State:     p.State,
	}, nil
}

// Checkout submits the cart as an order. A request that failed without a
// server answer keeps its Idempotency-Key, so retrying the same checkout
// cannot create a second order.
func (s *Session) Checkout(ctx context.Context, p Profile) (models.CreateOrderResponse, error) {
	req, err := s.BuildRequest(p)
	if err != nil {
		return models.CreateOrderResponse{}, err
	}
	key, hash := s.keyFor(req)

	resp, err := s.client.CreateOrder(ctx, req, key)
	var apiErr *APIError
	if err != nil && !errors.As(err, &apiErr) {
		return resp, err
	}
	s.settle(hash)
	if err != nil {
		return resp, err
	}

	if s.opts.ClearCartOnSuccess {
		if cerr := s.cart.Clear(); cerr != nil {
			globals.Log.Warn().Err(cerr).Msg("clear cart after checkout")
		}
	}
	return resp, nil
}

func (s *Session) keyFor(req models.CreateOrderRequest) (key, hash string) {
	data, _ := json.Marshal(req)
	sum := sha256.Sum256(data)
	hash = hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingKey == "" || s.pendingHash != hash {
		s.pendingKey = s.newKey()
		s.pendingHash = hash
	}
	return s.pendingKey, hash
}

func (s *Session) settle(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingHash == hash {
		s.pendingKey = ""
		s.pendingHash = ""
	}
}
