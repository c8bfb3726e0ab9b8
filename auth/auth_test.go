package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"papeleria/middleware"
	"papeleria/models"
	"papeleria/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("auth-test")

func post(h func(http.ResponseWriter, *http.Request), body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	return rec
}

func TestIssueTokenClaims(t *testing.T) {
	now := time.Now()
	tok, err := IssueToken(secret, "u1", models.RoleAdmin, time.Hour, now)
	require.NoError(t, err)

	claims, err := middleware.ValidateJWT(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
	assert.WithinDuration(t, now.Add(time.Hour), claims.ExpiresAt.Time, time.Second)
}

func TestRegisterThenLogin(t *testing.T) {
	store := users.NewMemoryStore()
	svc := NewService(store, secret, time.Hour)

	register := func(w http.ResponseWriter, r *http.Request) { svc.Register(w, r, nil) }
	login := func(w http.ResponseWriter, r *http.Request) { svc.Login(w, r, nil) }

	rec := post(register, `{"email":" Ana@Example.com ","password":"pw","name":"Ana"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, models.RoleUser, created.Role)
	assert.NotEmpty(t, created.Token)

	stored, err := store.FindByEmail(t.Context(), "ana@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "pw", stored.PasswordHash)

	rec = post(register, `{"email":"ana@example.com","password":"again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = post(login, `{"email":"ana@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var logged tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logged))
	assert.Equal(t, created.UserID, logged.UserID)

	rec = post(login, `{"email":"ana@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(login, `{"email":"nobody@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(users.NewMemoryStore(), secret, time.Hour)
	register := func(w http.ResponseWriter, r *http.Request) { svc.Register(w, r, nil) }

	assert.Equal(t, http.StatusBadRequest, post(register, `{"email":"a@b.c"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(register, `not json`).Code)
}
