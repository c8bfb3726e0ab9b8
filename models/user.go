package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	UserID       string    `json:"userid" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	Name         string    `json:"name,omitempty" bson:"name,omitempty"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         string    `json:"role" bson:"role"`
	PhoneNumber  string    `json:"phone_number,omitempty" bson:"phone_number,omitempty"`
	Address      string    `json:"address,omitempty" bson:"address,omitempty"`
	Unit         string    `json:"casa,omitempty" bson:"casa,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at"`
}

// ContactUpdate carries the shipping contact fields copied back onto a user
// when an order is placed.
type ContactUpdate struct {
	Email   string
	Address string
	Unit    string
	Phone   string
}
