package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"papeleria/globals"
	"papeleria/middleware"
	"papeleria/models"
	"papeleria/users"
	"papeleria/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"
)

// Service issues tokens for registered users.
type Service struct {
	users  users.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(store users.Store, secret []byte, ttl time.Duration) *Service {
	return &Service{users: store, secret: secret, ttl: ttl, now: time.Now}
}

// IssueToken signs an HS256 token carrying {userId, role} that expires after ttl.
func IssueToken(secret []byte, userID, role string, ttl time.Duration, now time.Time) (string, error) {
	claims := &middleware.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type tokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func (s *Service) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in credentials
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" || in.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		globals.Log.Error().Err(err).Msg("hash password")
		utils.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	now := s.now()
	user := models.User{
		UserID:       "u" + utils.GetUUID(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: string(hashed),
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			utils.RespondWithError(w, http.StatusConflict, "User already exists")
			return
		}
		globals.Log.Error().Err(err).Msg("register user")
		utils.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	s.respondWithToken(w, http.StatusCreated, user)
}

func (s *Service) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in credentials
	if err := utils.DecodeJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Email == "" || in.Password == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := s.users.FindByEmail(r.Context(), in.Email)
	if err != nil && !errors.Is(err, users.ErrUserNotFound) {
		globals.Log.Error().Err(err).Msg("login lookup")
		utils.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	s.respondWithToken(w, http.StatusOK, user)
}

func (s *Service) respondWithToken(w http.ResponseWriter, status int, u models.User) {
	token, err := IssueToken(s.secret, u.UserID, u.Role, s.ttl, s.now())
	if err != nil {
		globals.Log.Error().Err(err).Msg("sign token")
		utils.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	utils.RespondWithJSON(w, status, tokenResponse{Token: token, UserID: u.UserID, Role: u.Role})
}
