package models

// Identity is the authenticated caller resolved by the auth gate.
type Identity struct {
	UserID  string
	Role    string
	IsAdmin bool
}
