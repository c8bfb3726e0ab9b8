package storefront_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"papeleria/auth"
	"papeleria/cart"
	"papeleria/catalog"
	"papeleria/middleware"
	"papeleria/models"
	"papeleria/orders"
	"papeleria/products"
	"papeleria/ratelim"
	"papeleria/routes"
	"papeleria/storefront"
	"papeleria/users"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	srv    *httptest.Server
	orders *orders.MemoryStore
	users  *users.MemoryStore
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	secret := []byte("storefront-test")
	us := users.NewMemoryStore()
	store := orders.NewMemoryStore(us)
	catalogStore := products.NewMemoryStore(
		models.Product{ProductID: "p1", Name: "Cuaderno", Price: 10, Stock: 3},
		models.Product{ProductID: "p2", Name: "Lápiz", Price: 5, Stock: 10},
	)

	router := httprouter.New()
	routes.RoutesWrapper(router, middleware.NewGate(secret, us), ratelim.NewRateLimiter(1000, 1000), routes.Services{
		Auth:     auth.NewService(us, secret, time.Hour),
		Users:    users.NewHandler(us),
		Products: products.NewHandler(catalogStore),
		Orders:   orders.NewHandler(orders.NewService(store, nil, true), orders.NewMemoryIdempotency()),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &backend{srv: srv, orders: store, users: us}
}

func newSession(t *testing.T, b *backend, hc *http.Client, opts storefront.Options) (*storefront.Session, storefront.Profile) {
	t.Helper()
	client := storefront.NewClient(b.srv.URL, hc)
	reg, err := client.Register(t.Context(), "ana@example.com", "pw")
	require.NoError(t, err)

	sess := storefront.NewSession(cart.New(cart.NewMemoryStorage()), catalog.NewInventory(client), client, opts)
	profile := storefront.Profile{
		UserID:  reg.UserID,
		Email:   "ana@example.com",
		Address: "Av. Juárez 10",
		Phone:   "3312345678",
		State:   "Jalisco",
	}
	return sess, profile
}

func TestSessionStockBounds(t *testing.T) {
	b := newBackend(t)
	sess, _ := newSession(t, b, nil, storefront.Options{})
	ctx := t.Context()

	for i := 0; i < 3; i++ {
		require.NoError(t, sess.AddToCart(ctx, "p1"))
	}
	assert.ErrorIs(t, sess.AddToCart(ctx, "p1"), catalog.ErrExceedsStock)
	assert.ErrorIs(t, sess.AddToCart(ctx, "nope"), catalog.ErrUnknownProduct)

	assert.ErrorIs(t, sess.ChangeQuantity(ctx, "p1", 9), catalog.ErrExceedsStock)
	it, _ := sess.Cart().Item("p1")
	assert.Equal(t, 3, it.Quantity, "refused change leaves the line alone")

	require.NoError(t, sess.ChangeQuantity(ctx, "p1", 0))
	it, _ = sess.Cart().Item("p1")
	assert.Equal(t, 1, it.Quantity)
}

func TestCheckoutKeepsCartByDefault(t *testing.T) {
	b := newBackend(t)
	sess, profile := newSession(t, b, nil, storefront.Options{})
	ctx := t.Context()

	require.NoError(t, sess.AddToCart(ctx, "p1"))
	require.NoError(t, sess.AddToCart(ctx, "p1"))
	require.NoError(t, sess.AddToCart(ctx, "p2"))

	resp, err := sess.Checkout(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, 25.0, resp.Pedido.Total)
	assert.Equal(t, "ana@example.com", resp.Pedido.Client)
	assert.Equal(t, "3312345678", resp.User.PhoneNumber)
	assert.Equal(t, 1, b.orders.Count())
	assert.Len(t, sess.Cart().Items(), 2)
}

func TestCheckoutClearsWhenAsked(t *testing.T) {
	b := newBackend(t)
	sess, profile := newSession(t, b, nil, storefront.Options{ClearCartOnSuccess: true})

	require.NoError(t, sess.AddToCart(t.Context(), "p2"))
	_, err := sess.Checkout(t.Context(), profile)
	require.NoError(t, err)
	assert.Empty(t, sess.Cart().Items())
}

func TestCheckoutValidatesLocally(t *testing.T) {
	b := newBackend(t)
	sess, profile := newSession(t, b, nil, storefront.Options{})

	_, err := sess.Checkout(t.Context(), profile)
	assert.ErrorIs(t, err, storefront.ErrEmptyCart)

	require.NoError(t, sess.AddToCart(t.Context(), "p2"))
	profile.Phone = ""
	_, err = sess.Checkout(t.Context(), profile)
	assert.ErrorIs(t, err, storefront.ErrMissingProfileField)
	assert.ErrorContains(t, err, "telefono")
	assert.Zero(t, b.orders.Count())
}

func TestCheckoutSurfacesServerErrors(t *testing.T) {
	b := newBackend(t)
	sess, profile := newSession(t, b, nil, storefront.Options{})
	require.NoError(t, sess.AddToCart(t.Context(), "p2"))

	profile.UserID = "someone-else"
	_, err := sess.Checkout(t.Context(), profile)
	var apiErr *storefront.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

// lostReply delivers the first order request to the server and then
// pretends the connection dropped before the answer arrived.
type lostReply struct {
	next    http.RoundTripper
	dropped atomic.Bool
}

func (l *lostReply) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := l.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if req.Method == http.MethodPost && req.URL.Path == "/api/orders" && l.dropped.CompareAndSwap(false, true) {
		resp.Body.Close()
		return nil, errors.New("connection reset")
	}
	return resp, nil
}

func TestCheckoutRetryDoesNotDuplicate(t *testing.T) {
	b := newBackend(t)
	hc := &http.Client{Transport: &lostReply{next: http.DefaultTransport}}
	sess, profile := newSession(t, b, hc, storefront.Options{})
	require.NoError(t, sess.AddToCart(t.Context(), "p1"))

	_, err := sess.Checkout(t.Context(), profile)
	require.Error(t, err)
	assert.Equal(t, 1, b.orders.Count(), "first attempt reached the server")

	resp, err := sess.Checkout(t.Context(), profile)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Pedido.OrderID)
	assert.Equal(t, 1, b.orders.Count(), "retry replays the stored answer")

	// a settled checkout gets a fresh key
	_, err = sess.Checkout(t.Context(), profile)
	require.NoError(t, err)
	assert.Equal(t, 2, b.orders.Count())
}

func TestClientMyOrdersAndLogin(t *testing.T) {
	b := newBackend(t)
	sess, profile := newSession(t, b, nil, storefront.Options{})
	require.NoError(t, sess.AddToCart(t.Context(), "p2"))
	_, err := sess.Checkout(t.Context(), profile)
	require.NoError(t, err)

	client := storefront.NewClient(b.srv.URL, nil)
	_, err = client.MyOrders(t.Context())
	var apiErr *storefront.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, err = client.Login(t.Context(), "ana@example.com", "wrong")
	require.ErrorAs(t, err, &apiErr)

	res, err := client.Login(t.Context(), "ana@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, profile.UserID, res.UserID)

	mine, err := client.MyOrders(t.Context())
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestBuildRequestTotalIsNearestFloat(t *testing.T) {
	c := cart.New(cart.NewMemoryStorage())
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Add(models.Product{ProductID: "clip", Name: "Clip", Price: 0.1, Stock: 10}))
	}
	sess := storefront.NewSession(c, nil, nil, storefront.Options{})

	req, err := sess.BuildRequest(storefront.Profile{UserID: "u1", Email: "ana@example.com", Address: "Calle 1", Phone: "1", State: "Jalisco"})
	require.NoError(t, err)
	require.NotNil(t, req.Total)
	assert.Equal(t, 0.3, *req.Total, "decimal sum, not 0.1+0.1+0.1 in float")
}
