package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"papeleria/auth"
	"papeleria/middleware"
	"papeleria/models"
	"papeleria/orders"
	"papeleria/products"
	"papeleria/ratelim"
	"papeleria/users"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("routes-test-secret")

func newRouter(t *testing.T) (*httprouter.Router, *users.MemoryStore) {
	t.Helper()
	us := users.NewMemoryStore(models.User{UserID: "adm", Email: "admin@example.com", Role: models.RoleAdmin})
	store := orders.NewMemoryStore(us)
	gate := middleware.NewGate(secret, us)

	router := httprouter.New()
	RoutesWrapper(router, gate, ratelim.NewRateLimiter(1000, 1000), Services{
		Auth:     auth.NewService(us, secret, time.Hour),
		Users:    users.NewHandler(us),
		Products: products.NewHandler(products.NewMemoryStore(models.Product{ProductID: "p1", Name: "Cuaderno", Price: 10, Stock: 4})),
		Orders:   orders.NewHandler(orders.NewService(store, nil, true), orders.NewMemoryIdempotency()),
	})
	return router, us
}

func send(router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.0.2.1:5000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCheckoutThroughRouter(t *testing.T) {
	router, us := newRouter(t)

	rec := send(router, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "ana@example.com", "password": "s3cret"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))

	assert.Equal(t, http.StatusOK, send(router, http.MethodGet, "/api/products", "", nil).Code)

	order := map[string]any{
		"userId":    reg.UserID,
		"email":     "ana@example.com",
		"casa":      "",
		"telefono":  "3312345678",
		"products":  []map[string]any{{"name": "Cuaderno", "quantity": 2, "price": 10}},
		"total":     20,
		"direccion": "Av. Juárez 10",
		"state":     "Jalisco",
	}
	assert.Equal(t, http.StatusUnauthorized, send(router, http.MethodPost, "/api/orders", "", order).Code)

	rec = send(router, http.MethodPost, "/api/orders", reg.Token, order)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	u, err := us.FindUser(t.Context(), reg.UserID)
	require.NoError(t, err)
	assert.Equal(t, "3312345678", u.PhoneNumber)

	rec = send(router, http.MethodGet, "/api/users/me", reg.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "Av. Juárez 10", me.Address)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = send(router, http.MethodGet, "/api/orders", reg.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	assert.Len(t, mine, 1)
}

func TestAdminRoutesGated(t *testing.T) {
	router, _ := newRouter(t)

	userTok, err := auth.IssueToken(secret, "adm", models.RoleUser, time.Hour, time.Now())
	require.NoError(t, err)
	// role comes from the stored user, so this token still resolves to admin
	assert.Equal(t, http.StatusOK, send(router, http.MethodGet, "/api/admin/orders", userTok, nil).Code)

	rec := send(router, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bob@example.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var reg struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))

	assert.Equal(t, http.StatusForbidden, send(router, http.MethodGet, "/api/admin/orders", reg.Token, nil).Code)
	assert.Equal(t, http.StatusForbidden, send(router, http.MethodDelete, "/api/admin/products/p1", reg.Token, nil).Code)

	rec = send(router, http.MethodGet, "/api/admin/orders", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"unauthenticated"}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t)
	rec := send(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "200", rec.Body.String())
}

func register(t *testing.T, router http.Handler, email string) (token, userID string) {
	t.Helper()
	rec := send(router, http.MethodPost, "/api/auth/register", "", map[string]string{"email": email, "password": "s3cret"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	return reg.Token, reg.UserID
}

func checkoutBody(userID, email string) map[string]any {
	return map[string]any{
		"userId":    userID,
		"email":     email,
		"casa":      "",
		"telefono":  "3312345678",
		"products":  []map[string]any{{"name": "Cuaderno", "quantity": 1, "price": 10}},
		"total":     10,
		"direccion": "Av. Juárez 10",
		"state":     "Jalisco",
	}
}

func TestMixedCaseCheckoutEmailStillLogsIn(t *testing.T) {
	router, us := newRouter(t)
	token, userID := register(t, router, "ana@example.com")

	rec := send(router, http.MethodPost, "/api/orders", token, checkoutBody(userID, " Ana@Example.com"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	u, err := us.FindUser(t.Context(), userID)
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)

	rec = send(router, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestCheckoutCannotTakeAnotherAccountsEmail(t *testing.T) {
	router, us := newRouter(t)
	token, userID := register(t, router, "bob@example.com")

	rec := send(router, http.MethodPost, "/api/orders", token, checkoutBody(userID, "admin@example.com"))
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = send(router, http.MethodGet, "/api/orders", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	bob, err := us.FindUser(t.Context(), userID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", bob.Email)

	rec = send(router, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "bob@example.com", "password": "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
