package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User holds the structure for the users collection in mongo
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"fullName" json:"fullName"`
	Email        string             `bson:"email" json:"email"`
	Phone        string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Role         Role               `bson:"role" json:"role"`
	Address      string             `bson:"address,omitempty" json:"address,omitempty"`
	Pincode      string             `bson:"pincode,omitempty" json:"pincode,omitempty"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

// UserCreate is the payload for registering or creating an account
type UserCreate struct {
	FullName string `json:"fullName" validate:"required,min=2,max=80"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,min=6,max=20"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     Role   `json:"role" validate:"omitempty,oneof=citizen admin cleaner"`
	Address  string `json:"address,omitempty" validate:"max=200"`
	Pincode  string `json:"pincode,omitempty" validate:"omitempty,len=6,numeric"`
}

// Normalize trims the free text fields and lowercases the email
func (u *UserCreate) Normalize() {
	u.FullName = strings.TrimSpace(u.FullName)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Phone = strings.TrimSpace(u.Phone)
	u.Address = strings.TrimSpace(u.Address)
	u.Pincode = strings.TrimSpace(u.Pincode)
}

// CleanerOption is the admin facing summary of a cleaner account
type CleanerOption struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	// OpenAssignments counts the cleaner's reports still waiting to be cleaned
	OpenAssignments int64 `json:"openAssignments"`
}

// LoginRequest is the payload for password login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries a freshly issued access token
type LoginResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        User      `json:"user"`
}

// DeleteResponse confirms a removal
type DeleteResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}
