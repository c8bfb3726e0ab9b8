package users

import (
	"errors"
	"net/http"

	"papeleria/globals"
	"papeleria/utils"

	"github.com/julienschmidt/httprouter"
)

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// Me returns the caller's profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID := utils.GetUserIDFromRequest(r)
	u, err := h.store.FindUser(r.Context(), userID)
	if errors.Is(err, ErrUserNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		globals.Log.Error().Err(err).Str("userId", userID).Msg("load profile")
		utils.RespondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u)
}
