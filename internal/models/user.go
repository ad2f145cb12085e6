package models

import "time"

// User is an account record. The password digest never leaves the process.
type User struct {
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	EncryptedEmail string    `json:"encryptedEmail,omitempty"`
	IsPro          bool      `json:"isPro"`
	FirstName      *string   `json:"firstName,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
