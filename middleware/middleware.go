package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"papeleria/globals"
	"papeleria/models"
	"papeleria/users"
	"papeleria/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
)

// ErrUnauthenticated is the single error reported to callers for every
// credential failure.
var ErrUnauthenticated = errors.New("unauthenticated")

// JWT claims
type Claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// UserLookup resolves the user referenced by a token.
type UserLookup interface {
	FindUser(ctx context.Context, userID string) (models.User, error)
}

// Gate resolves bearer tokens into identities.
type Gate struct {
	secret []byte
	users  UserLookup
}

func NewGate(secret []byte, users UserLookup) *Gate {
	return &Gate{secret: secret, users: users}
}

// ValidateJWT checks signature, algorithm and expiry of a raw token.
func ValidateJWT(secret []byte, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("empty token")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("unauthorized: invalid claims")
	}
	return claims, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// Resolve turns an Authorization header value into an identity. Every
// credential failure is collapsed into ErrUnauthenticated and the cause is
// logged; only a failing user lookup is returned as itself.
func (g *Gate) Resolve(ctx context.Context, header string) (models.Identity, error) {
	raw, ok := bearerToken(header)
	if !ok {
		globals.Log.Debug().Msg("auth: missing or malformed bearer header")
		return models.Identity{}, ErrUnauthenticated
	}
	claims, err := ValidateJWT(g.secret, raw)
	if err != nil {
		globals.Log.Debug().Err(err).Msg("auth: token rejected")
		return models.Identity{}, ErrUnauthenticated
	}
	user, err := g.users.FindUser(ctx, claims.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		globals.Log.Info().Str("userId", claims.UserID).Msg("auth: token user no longer exists")
		return models.Identity{}, ErrUnauthenticated
	}
	if err != nil {
		return models.Identity{}, fmt.Errorf("load token user: %w", err)
	}
	role := user.Role
	if role == "" {
		role = claims.Role
	}
	return models.Identity{
		UserID:  user.UserID,
		Role:    role,
		IsAdmin: role == models.RoleAdmin,
	}, nil
}

func (g *Gate) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, err := g.Resolve(r.Context(), r.Header.Get("Authorization"))
		if errors.Is(err, ErrUnauthenticated) {
			utils.RespondWithError(w, http.StatusUnauthorized, ErrUnauthenticated.Error())
			return
		}
		if err != nil {
			globals.Log.Error().Err(err).Msg("authenticate")
			utils.RespondWithError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		ctx := context.WithValue(r.Context(), globals.IdentityKey, id)
		ctx = context.WithValue(ctx, globals.UserIDKey, id.UserID)
		next(w, r.WithContext(ctx), ps)
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		id, ok := utils.IdentityFromRequest(r)
		if !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, ErrUnauthenticated.Error())
			return
		}
		if !id.IsAdmin {
			utils.RespondWithError(w, http.StatusForbidden, "admin role required")
			return
		}
		next(w, r, ps)
	}
}

// Chain applies mws so that the first one listed runs first.
func Chain(mws ...func(httprouter.Handle) httprouter.Handle) func(httprouter.Handle) httprouter.Handle {
	return func(h httprouter.Handle) httprouter.Handle {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}
