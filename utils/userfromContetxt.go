package utils

import (
	"net/http"

	"papeleria/globals"
	"papeleria/models"
)

func GetUserIDFromRequest(r *http.Request) string {
	requestingUserID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || requestingUserID == "" {
		return ""
	}
	return requestingUserID
}

// IdentityFromRequest returns the identity attached by the auth gate.
func IdentityFromRequest(r *http.Request) (models.Identity, bool) {
	id, ok := r.Context().Value(globals.IdentityKey).(models.Identity)
	return id, ok && id.UserID != ""
}
