package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"papeleria/globals"
	"papeleria/models"
	"papeleria/users"
	"papeleria/utils"
)

var (
	ErrMissingData   = errors.New("missing required data")
	ErrInvalidData   = errors.New("invalid order data")
	ErrUserNotFound  = errors.New("user not found for update")
	ErrOrderNotFound = errors.New("order not found")
	ErrEmailInUse    = errors.New("email belongs to another account")
)

// MissingFieldsError lists the request fields that were absent.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingData, strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingData }

// Emitter is told about every order that was created or edited.
type Emitter interface {
	OrderCreated(ctx context.Context, o models.Order) error
	OrderUpdated(ctx context.Context, o models.Order) error
}

type Service struct {
	store  Store
	events Emitter
	atomic bool
	now    func() time.Time
	newID  func() string
}

// NewService builds the checkout service. With atomic set, the order insert
// and the user update share one transaction; otherwise they run as two
// independent writes and a failed user update leaves the order in place.
func NewService(store Store, events Emitter, atomic bool) *Service {
	return &Service{
		store:  store,
		events: events,
		atomic: atomic,
		now:    time.Now,
		newID:  utils.GetUUID,
	}
}

// Validate checks the checkout request before anything is written.
func Validate(req models.CreateOrderRequest) error {
	var missing []string
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	if blank(req.UserID) {
		missing = append(missing, "userId")
	}
	if blank(req.Email) {
		missing = append(missing, "email")
	}
	if req.Casa == nil {
		missing = append(missing, "casa")
	}
	if blank(req.Telefono) {
		missing = append(missing, "telefono")
	}
	if len(req.Products) == 0 {
		missing = append(missing, "products")
	}
	if req.Total == nil {
		missing = append(missing, "total")
	}
	if blank(req.Direccion) {
		missing = append(missing, "direccion")
	}
	if blank(req.State) {
		missing = append(missing, "state")
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}

	if *req.Total < 0 {
		return fmt.Errorf("%w: negative total", ErrInvalidData)
	}
	for i, p := range req.Products {
		if blank(p.Name) || p.Quantity < 1 || p.Price < 0 {
			return fmt.Errorf("%w: product %d", ErrInvalidData, i)
		}
	}
	return nil
}

// Create persists the order and copies the shipping contact onto the user.
// On ErrUserNotFound the returned order is non-empty only when it was
// persisted (non-atomic mode).
func (s *Service) Create(ctx context.Context, req models.CreateOrderRequest, idempotencyKey string) (models.CreateOrderResponse, error) {
	if err := Validate(req); err != nil {
		return models.CreateOrderResponse{}, err
	}
	email := users.NormalizeEmail(req.Email)

	order := models.Order{
		OrderID:   s.newID(),
		UserID:    req.UserID,
		Client:    email,
		CreatedAt: s.now(),
		Status:    models.DefaultOrderStatus,
		Total:     *req.Total,
		Products:  append([]models.LineItem(nil), req.Products...),
		Shipping: models.Shipping{
			Address: req.Direccion,
			Unit:    *req.Casa,
			Phone:   req.Telefono,
			State:   req.State,
		},
		IdempotencyKey: idempotencyKey,
	}
	contact := models.ContactUpdate{
		Email:   email,
		Address: req.Direccion,
		Unit:    *req.Casa,
		Phone:   req.Telefono,
	}

	var (
		user models.User
		err  error
	)
	if s.atomic {
		err = s.store.RunInTx(ctx, func(ctx context.Context) error {
			if err := s.store.InsertOrder(ctx, order); err != nil {
				return err
			}
			u, err := s.store.UpdateUserContact(ctx, req.UserID, contact)
			if err != nil {
				return err
			}
			user = u
			return nil
		})
		if err != nil {
			return models.CreateOrderResponse{}, classify(err)
		}
	} else {
		if err := s.store.InsertOrder(ctx, order); err != nil {
			return models.CreateOrderResponse{}, err
		}
		user, err = s.store.UpdateUserContact(ctx, req.UserID, contact)
		if errors.Is(err, users.ErrEmailTaken) {
			// the order must not outlive a rejected contact change
			if derr := s.store.DeleteOrder(ctx, order.OrderID); derr != nil {
				globals.Log.Error().Err(derr).Str("orderId", order.OrderID).Msg("remove order after email conflict")
			}
			return models.CreateOrderResponse{}, classify(err)
		}
		if err != nil {
			globals.Log.Warn().Err(err).Str("orderId", order.OrderID).Str("userId", req.UserID).
				Msg("order persisted but user update failed")
			return models.CreateOrderResponse{Pedido: order}, classify(err)
		}
	}

	if s.events != nil {
		if err := s.events.OrderCreated(ctx, order); err != nil {
			globals.Log.Warn().Err(err).Str("orderId", order.OrderID).Msg("publish order event")
		}
	}
	return models.CreateOrderResponse{Pedido: order, User: user}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, users.ErrUserNotFound):
		return fmt.Errorf("%w: %v", ErrUserNotFound, err)
	case errors.Is(err, users.ErrEmailTaken):
		return fmt.Errorf("%w: %v", ErrEmailInUse, err)
	}
	return err
}

func (s *Service) Get(ctx context.Context, orderID string) (models.Order, error) {
	return s.store.FindOrder(ctx, orderID)
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.Order, error) {
	return s.store.ListOrders(ctx, f)
}

// Update applies an admin edit.
func (s *Service) Update(ctx context.Context, orderID string, upd models.OrderUpdate) (models.Order, error) {
	if upd.Status != nil && strings.TrimSpace(*upd.Status) == "" {
		return models.Order{}, fmt.Errorf("%w: empty status", ErrInvalidData)
	}
	if upd.Total != nil && *upd.Total < 0 {
		return models.Order{}, fmt.Errorf("%w: negative total", ErrInvalidData)
	}
	if upd.Products != nil {
		for i, p := range *upd.Products {
			if strings.TrimSpace(p.Name) == "" || p.Quantity < 1 || p.Price < 0 {
				return models.Order{}, fmt.Errorf("%w: product %d", ErrInvalidData, i)
			}
		}
	}
	o, err := s.store.UpdateOrder(ctx, orderID, upd)
	if err != nil {
		return o, err
	}
	if s.events != nil {
		if err := s.events.OrderUpdated(ctx, o); err != nil {
			globals.Log.Warn().Err(err).Str("orderId", o.OrderID).Msg("publish order event")
		}
	}
	return o, nil
}

func (s *Service) Delete(ctx context.Context, orderID string) error {
	return s.store.DeleteOrder(ctx, orderID)
}
