package models

import "time"

// DefaultOrderStatus is assigned to every order that arrives without one.
const DefaultOrderStatus = "in preparation"

// LineItem is an order line as submitted by the storefront.
type LineItem struct {
	Name     string  `json:"name" bson:"name"`
	Quantity int     `json:"quantity" bson:"quantity"`
	Price    float64 `json:"price" bson:"price"`
}

// Shipping holds the delivery contact copied from the checkout request.
type Shipping struct {
	Address string `json:"direccion" bson:"direccion"`
	Unit    string `json:"casa,omitempty" bson:"casa,omitempty"`
	Phone   string `json:"telefono" bson:"telefono"`
	State   string `json:"state" bson:"state"`
}

// Order ("pedido") is a persisted checkout.
type Order struct {
	OrderID        string     `json:"orderId" bson:"_id"`
	UserID         string     `json:"userId" bson:"userId"`
	Client         string     `json:"client" bson:"client"`
	CreatedAt      time.Time  `json:"createdAt" bson:"createdAt"`
	Status         string     `json:"status" bson:"status"`
	Total          float64    `json:"total" bson:"total"`
	Products       []LineItem `json:"products" bson:"products"`
	Shipping       Shipping   `json:"shipping" bson:"shipping"`
	IdempotencyKey string     `json:"-" bson:"idempotencyKey,omitempty"`
}

// CreateOrderRequest is the checkout body. Pointer fields distinguish an
// absent value from a zero one.
type CreateOrderRequest struct {
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	Casa      *string    `json:"casa"`
	Telefono  string     `json:"telefono"`
	Products  []LineItem `json:"products"`
	Total     *float64   `json:"total"`
	Direccion string     `json:"direccion"`
	State     string     `json:"state"`
}

// CreateOrderResponse is returned with 201 on a successful checkout.
type CreateOrderResponse struct {
	Pedido Order `json:"pedido"`
	User   User  `json:"user"`
}

// OrderUpdate is the admin edit payload. Nil fields are left untouched.
type OrderUpdate struct {
	Status   *string     `json:"status"`
	Products *[]LineItem `json:"products"`
	Total    *float64    `json:"total"`
}

// OrderEvent is published on the order event channel.
type OrderEvent struct {
	Type    string    `json:"type"`
	OrderID string    `json:"orderId"`
	UserID  string    `json:"userId"`
	Client  string    `json:"client"`
	Status  string    `json:"status"`
	Total   float64   `json:"total"`
	At      time.Time `json:"at"`
}
